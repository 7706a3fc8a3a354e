// Package auth issues and validates the JWT access tokens used by the
// HTTP API.
//
// Tokens are HS256-signed with the configured secret and carry a role.
// They are issued by "gpioled" for the audience "gpioled-api" and must
// have an expiry; 30 seconds of clock skew is tolerated.
// Roles map statically to permissions:
//
//	viewer    device:read
//	operator  device:read, device:operate
//	admin     device:read, device:operate, audit:read
//
// There is no user store; tokens are minted offline with `gpioledctl token`.
package auth
