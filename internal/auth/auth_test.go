package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/papertrove/papertrove/internal/observability"
)

func TestJWTRoundTrip(t *testing.T) {
	service := NewService(Config{JWTSecret: "test-secret", TokenExpiry: time.Hour})

	token, err := service.GenerateJWT(&Identity{UserID: "user-1", TenantID: "tenant-a", Admin: true})
	if err != nil {
		t.Fatalf("GenerateJWT() error = %v", err)
	}

	id, err := service.ValidateJWT(token)
	if err != nil {
		t.Fatalf("ValidateJWT() error = %v", err)
	}
	if id.UserID != "user-1" || id.TenantID != "tenant-a" || !id.Admin {
		t.Errorf("identity = %+v", id)
	}
}

func TestJWTRejectsWrongSecret(t *testing.T) {
	issuer := NewService(Config{JWTSecret: "secret-a"})
	verifier := NewService(Config{JWTSecret: "secret-b"})

	token, err := issuer.GenerateJWT(&Identity{UserID: "user-1", TenantID: "tenant-a"})
	if err != nil {
		t.Fatalf("GenerateJWT() error = %v", err)
	}
	if _, err := verifier.ValidateJWT(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("ValidateJWT() error = %v, want ErrInvalidToken", err)
	}
}

func TestJWTRequiresTenant(t *testing.T) {
	service := NewService(Config{JWTSecret: "test-secret"})
	if _, err := service.GenerateJWT(&Identity{UserID: "user-1"}); err == nil {
		t.Error("GenerateJWT() without tenant succeeded")
	}
}

func TestValidateAPIKey(t *testing.T) {
	service := NewService(Config{APIKeys: []APIKeyConfig{
		{Key: "abc123", UserID: "svc-1", TenantID: "tenant-a"},
	}})

	id, err := service.ValidateAPIKey("abc123")
	if err != nil {
		t.Fatalf("ValidateAPIKey() error = %v", err)
	}
	if id.TenantID != "tenant-a" || id.Admin {
		t.Errorf("identity = %+v", id)
	}

	if _, err := service.ValidateAPIKey("wrong"); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("ValidateAPIKey(wrong) error = %v, want ErrInvalidKey", err)
	}
}

func TestMiddlewareDisabledAdmitsAnonymous(t *testing.T) {
	var got *Identity
	handler := Middleware(nil, observability.NewNopLogger())(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = IdentityFromContext(r.Context())
		}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got == nil || got.TenantID != AnonymousTenant {
		t.Errorf("identity = %+v, want anonymous tenant", got)
	}
}

func TestMiddlewareRejectsMissingCredentials(t *testing.T) {
	service := NewService(Config{JWTSecret: "test-secret"})
	handler := Middleware(service, observability.NewNopLogger())(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Error("handler reached without credentials")
		}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestMiddlewareResolvesBearer(t *testing.T) {
	service := NewService(Config{JWTSecret: "test-secret"})
	token, err := service.GenerateJWT(&Identity{UserID: "user-1", TenantID: "tenant-a"})
	if err != nil {
		t.Fatalf("GenerateJWT() error = %v", err)
	}

	var got *Identity
	handler := Middleware(service, observability.NewNopLogger())(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = IdentityFromContext(r.Context())
		}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got == nil || got.TenantID != "tenant-a" {
		t.Errorf("identity = %+v", got)
	}
}
