// Package api implements the HTTP REST API and WebSocket server for gpioled.
//
// This package provides:
//   - GET /api/v1/health, unauthenticated
//   - GET /api/v1/device and PUT /api/v1/device/state for reading and switching the LED
//   - GET /api/v1/audit for paging through the audit trail
//   - a WebSocket hub that relays device events to subscribed clients
//
// # Security
//
// Every route except health and the WebSocket upgrade requires an HS256
// bearer token (see package auth). The token's role decides what the caller
// may do: viewers read, operators also switch the LED, admins also read the
// audit log. WebSocket connections authenticate with a single-use ticket
// from POST /api/v1/auth/ws-ticket so the JWT never appears in a URL.
//
// # Commands
//
// PUT /device/state writes the control byte through an ordinary interface
// session, exactly as a node client would. The API never touches the pin
// directly.
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api
