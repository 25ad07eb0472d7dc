package claims

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type Role string

const (
	RoleStudent    Role = "student"
	RoleInstructor Role = "instructor"
	RoleAdmin      Role = "admin"
)

type Claims struct {
	UserID string
	Email  string
	Role   Role
	Expiry time.Time
}

type tokenClaims struct {
	Email string `json:"email,omitempty"`
	Role  Role   `json:"role"`
	jwt.RegisteredClaims
}

func (t tokenClaims) claims() Claims {
	c := Claims{UserID: t.Subject, Email: t.Email, Role: t.Role}
	if t.ExpiresAt != nil {
		c.Expiry = t.ExpiresAt.Time
	}
	return c
}

// FromToken reads the claims of a bearer token without checking its
// signature. The client has no key; it only needs the role and expiry to
// decide where to route. The backend remains the one verifying tokens.
func FromToken(raw string) (Claims, error) {
	var tc tokenClaims
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &tc); err != nil {
		return Claims{}, fmt.Errorf("decoding token claims: %w", err)
	}
	return tc.claims(), nil
}

// Sign issues an HS256 token for c.
func Sign(secret []byte, c Claims, ttl time.Duration) (string, error) {
	now := time.Now()
	tc := tokenClaims{
		Email: c.Email,
		Role:  c.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   c.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, tc).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return s, nil
}

// Parse verifies an HS256 token and returns its claims.
func Parse(secret []byte, raw string) (Claims, error) {
	var tc tokenClaims
	_, err := jwt.ParseWithClaims(raw, &tc, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return Claims{}, fmt.Errorf("parsing token: %w", err)
	}
	return tc.claims(), nil
}

type ctxKey int

const claimsKey ctxKey = 1

func Set(ctx context.Context, claims Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

func Get(ctx context.Context) (Claims, error) {
	v, ok := ctx.Value(claimsKey).(Claims)
	if !ok {
		return Claims{}, errors.New("claim value missing from context")
	}
	return v, nil
}

func IsAdmin(ctx context.Context) bool {
	c, err := Get(ctx)
	if err != nil {
		return false
	}

	return c.Role == RoleAdmin
}
