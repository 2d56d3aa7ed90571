package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrAuthDisabled = errors.New("auth disabled")
	ErrInvalidToken = errors.New("invalid token")
	ErrInvalidKey   = errors.New("invalid api key")
)

// JWTService handles token signing and verification.
type JWTService struct {
	secret []byte
	expiry time.Duration
}

// NewJWTService builds a JWT helper with the given secret and expiry.
func NewJWTService(secret string, expiry time.Duration) *JWTService {
	return &JWTService{secret: []byte(secret), expiry: expiry}
}

// Claims carries the tenant binding and the admin capability alongside
// the registered subject.
type Claims struct {
	TenantID string `json:"tenant_id"`
	Admin    bool   `json:"admin,omitempty"`
	jwt.RegisteredClaims
}

// Generate issues a signed token for the identity.
func (s *JWTService) Generate(id *Identity) (string, error) {
	if s == nil || len(s.secret) == 0 {
		return "", ErrAuthDisabled
	}
	if id == nil || strings.TrimSpace(id.TenantID) == "" {
		return "", errors.New("tenant id required")
	}

	claims := Claims{
		TenantID: id.TenantID,
		Admin:    id.Admin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.expiry)),
		},
	}
	if s.expiry <= 0 {
		claims.ExpiresAt = nil
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Validate parses a token and returns the identity embedded in it.
func (s *JWTService) Validate(token string) (*Identity, error) {
	if s == nil || len(s.secret) == 0 {
		return nil, ErrAuthDisabled
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if strings.TrimSpace(claims.TenantID) == "" {
		return nil, ErrInvalidToken
	}
	return &Identity{
		UserID:   strings.TrimSpace(claims.Subject),
		TenantID: claims.TenantID,
		Admin:    claims.Admin,
	}, nil
}
