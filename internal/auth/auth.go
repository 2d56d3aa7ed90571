// Package auth resolves caller identity: JWT bearer tokens and static
// API keys, both carrying the caller's tenant. Every resolved identity
// is pinned to exactly one tenant; the admin capability allows scoped
// cross-tenant access, which the gateway audits.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
	"time"
)

// Identity is a resolved caller.
type Identity struct {
	// UserID identifies the caller for audit entries.
	UserID string

	// TenantID is the caller's home tenant.
	TenantID string

	// Admin grants audited cross-tenant access.
	Admin bool
}

// Config configures authentication.
type Config struct {
	// JWTSecret signs and verifies HS256 tokens. Empty disables JWT auth.
	JWTSecret string `yaml:"jwt_secret"`

	// TokenExpiry is the lifetime of issued tokens. Zero means no expiry.
	TokenExpiry time.Duration `yaml:"token_expiry"`

	// APIKeys are static keys for service-to-service callers.
	APIKeys []APIKeyConfig `yaml:"api_keys"`
}

// APIKeyConfig declares a static API key and its identity.
type APIKeyConfig struct {
	Key      string `yaml:"key"`
	UserID   string `yaml:"user_id"`
	TenantID string `yaml:"tenant_id"`
	Admin    bool   `yaml:"admin"`
}

// Service validates JWTs and API keys.
type Service struct {
	jwt     *JWTService
	apiKeys map[string]*Identity
}

// NewService constructs an auth service from static configuration.
func NewService(cfg Config) *Service {
	service := &Service{apiKeys: buildAPIKeyMap(cfg.APIKeys)}
	if strings.TrimSpace(cfg.JWTSecret) != "" {
		service.jwt = NewJWTService(cfg.JWTSecret, cfg.TokenExpiry)
	}
	return service
}

// Enabled reports whether auth checks should run. A disabled service
// admits every request as an anonymous single-tenant caller; this is
// the local dev mode.
func (s *Service) Enabled() bool {
	return s != nil && (s.jwt != nil || len(s.apiKeys) > 0)
}

// GenerateJWT issues a signed token for the identity.
func (s *Service) GenerateJWT(id *Identity) (string, error) {
	if s == nil || s.jwt == nil {
		return "", ErrAuthDisabled
	}
	return s.jwt.Generate(id)
}

// ValidateJWT validates a token and returns the embedded identity.
func (s *Service) ValidateJWT(token string) (*Identity, error) {
	if s == nil || s.jwt == nil {
		return nil, ErrAuthDisabled
	}
	return s.jwt.Validate(token)
}

// ValidateAPIKey validates a static key in constant time.
func (s *Service) ValidateAPIKey(key string) (*Identity, error) {
	if s == nil || len(s.apiKeys) == 0 {
		return nil, ErrAuthDisabled
	}
	hashed := hashKey(key)
	for stored, id := range s.apiKeys {
		if subtle.ConstantTimeCompare([]byte(stored), []byte(hashed)) == 1 {
			copied := *id
			return &copied, nil
		}
	}
	return nil, ErrInvalidKey
}

func buildAPIKeyMap(keys []APIKeyConfig) map[string]*Identity {
	out := make(map[string]*Identity, len(keys))
	for _, k := range keys {
		if strings.TrimSpace(k.Key) == "" || strings.TrimSpace(k.TenantID) == "" {
			continue
		}
		out[hashKey(k.Key)] = &Identity{
			UserID:   k.UserID,
			TenantID: k.TenantID,
			Admin:    k.Admin,
		}
	}
	return out
}

func hashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
