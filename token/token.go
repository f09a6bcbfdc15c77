// Package token signs and verifies the bearer tokens issued by login.
// Tokens are HS256-signed JWTs whose claims carry the username and user id.
package token

import (
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/c360/bookshelf/errors"
	"github.com/c360/bookshelf/store"
)

// Claims is the signed token payload
type Claims struct {
	Username string `json:"username"`
	UserID   string `json:"id"`
	jwt.RegisteredClaims
}

// Service signs and verifies tokens with a shared secret
type Service struct {
	secret []byte
	ttl    time.Duration
}

// NewService creates a token service. A zero ttl produces non-expiring
// tokens.
func NewService(secret string, ttl time.Duration) (*Service, error) {
	if secret == "" {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Service", "NewService",
			"signing secret is required")
	}
	return &Service{secret: []byte(secret), ttl: ttl}, nil
}

// Sign issues a token for the given user
func (s *Service) Sign(user store.User) (string, error) {
	claims := Claims{
		Username: user.Username,
		UserID:   user.ID.Hex(),
	}
	if s.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(s.ttl))
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", errors.WrapFatal(err, "Service", "Sign", "sign token")
	}
	return signed, nil
}

// Verify parses and validates a token, returning its claims.
// Any failure - bad signature, wrong algorithm, expiry, garbage input -
// maps to ErrMalformedToken.
func (s *Service) Verify(raw string) (Claims, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(raw, &claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil || !parsed.Valid {
		return Claims{}, errors.WrapInvalid(errors.ErrMalformedToken, "Service", "Verify",
			"parse token")
	}
	if claims.UserID == "" {
		return Claims{}, errors.WrapInvalid(errors.ErrMalformedToken, "Service", "Verify",
			"claims missing user id")
	}
	return claims, nil
}
