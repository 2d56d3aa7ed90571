package auth

import (
	"net/http"
	"strings"

	"github.com/papertrove/papertrove/internal/observability"
)

// AnonymousTenant is the tenant assigned when auth is disabled. Local
// single-binary deployments run everything under it.
const AnonymousTenant = "default"

// Middleware resolves the caller identity from the Authorization header
// (Bearer JWT) or the X-API-Key header and attaches it to the request
// context. With auth disabled every request maps to the anonymous
// tenant.
func Middleware(service *Service, logger *observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if service == nil || !service.Enabled() {
				ctx := WithIdentity(r.Context(), &Identity{
					UserID:   "anonymous",
					TenantID: AnonymousTenant,
				})
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			if token := extractBearer(r); token != "" {
				id, err := service.ValidateJWT(token)
				if err != nil {
					logger.Warn(r.Context(), "jwt validation failed", "error", err)
					unauthorized(w)
					return
				}
				next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
				return
			}

			if apiKey := r.Header.Get("X-API-Key"); apiKey != "" {
				id, err := service.ValidateAPIKey(apiKey)
				if err != nil {
					logger.Warn(r.Context(), "api key validation failed", "error", err)
					unauthorized(w)
					return
				}
				next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
				return
			}

			unauthorized(w)
		})
	}
}

func extractBearer(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"unauthenticated"}`))
}
