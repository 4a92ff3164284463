package auth

import (
	"strings"

	"storefront-service/internal/apperr"

	"github.com/golang-jwt/jwt/v4"
)

// Principal is the authenticated caller, constructed once per request by the
// verifier and passed into handlers. Never mutated downstream.
type Principal struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role"`
}

type claims struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Verifier validates bearer tokens issued by the external auth service.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) (*Verifier, error) {
	if secret == "" {
		return nil, apperr.New(apperr.CodeConfiguration, "JWT secret is not configured")
	}
	return &Verifier{secret: []byte(secret)}, nil
}

// Verify parses and validates a bearer token, returning the principal.
func (v *Verifier) Verify(token string) (*Principal, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, apperr.New(apperr.CodeUnauthorized, "missing bearer token")
	}

	var c claims
	parsed, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, apperr.Newf(apperr.CodeUnauthorized, "unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, apperr.New(apperr.CodeUnauthorized, "invalid or expired token")
	}
	if c.UserID == 0 {
		return nil, apperr.New(apperr.CodeUnauthorized, "token carries no user id")
	}

	role := c.Role
	if role == "" {
		role = "customer"
	}
	return &Principal{UserID: c.UserID, Role: role}, nil
}
