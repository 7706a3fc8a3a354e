package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultAccessTokenTTL is used when a non-positive TTL is given (minutes).
const DefaultAccessTokenTTL = 15

// Registered claim values every gpioled token carries.
const (
	TokenIssuer   = "gpioled"
	TokenAudience = "gpioled-api"
)

// clockSkew is the leeway allowed on exp, nbf and iat.
const clockSkew = 30 * time.Second

// Claims are the JWT claims of an access token.
type Claims struct {
	jwt.RegisteredClaims
	Role Role `json:"role"`
}

// GenerateAccessToken creates a signed HS256 access token.
//
// Parameters:
//   - subject: Who the token is issued to, recorded as user_id in audit entries
//   - role: Authorisation tier; must be a valid role
//   - secret: HMAC signing key
//   - ttlMinutes: Lifetime; DefaultAccessTokenTTL when not positive
func GenerateAccessToken(subject string, role Role, secret string, ttlMinutes int) (string, error) {
	switch {
	case subject == "":
		return "", fmt.Errorf("%w: empty subject", ErrTokenInvalid)
	case secret == "":
		return "", fmt.Errorf("%w: empty signing secret", ErrTokenInvalid)
	case !IsValidRole(role):
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	if ttlMinutes <= 0 {
		ttlMinutes = DefaultAccessTokenTTL
	}

	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    TokenIssuer,
			Audience:  jwt.ClaimStrings{TokenAudience},
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(ttlMinutes) * time.Minute)),
			ID:        uuid.NewString(),
		},
		Role: role,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("signing access token: %w", err)
	}
	return signed, nil
}

// parser accepts only HS256 tokens issued by gpioled for the API, with an
// expiry.
var parser = jwt.NewParser(
	jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	jwt.WithIssuer(TokenIssuer),
	jwt.WithAudience(TokenAudience),
	jwt.WithExpirationRequired(),
	jwt.WithIssuedAt(),
	jwt.WithLeeway(clockSkew),
)

// ParseToken verifies tokenString and returns its claims. Every failure
// wraps ErrTokenInvalid; an expired token also matches ErrTokenExpired.
func ParseToken(tokenString, secret string) (*Claims, error) {
	claims := &Claims{}
	_, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, ErrTokenExpired)
	case err != nil:
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	case claims.Subject == "":
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	case !IsValidRole(claims.Role):
		return nil, fmt.Errorf("%w: role %q", ErrTokenInvalid, claims.Role)
	}
	return claims, nil
}
