package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/papertrove/papertrove/internal/auth"
	"github.com/papertrove/papertrove/pkg/models"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps the error taxonomy to HTTP statuses. Unknown errors
// become 500 without leaking internals.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	message := "internal error"

	switch {
	case errors.Is(err, models.ErrUnauthenticated):
		status, message = http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, models.ErrForbidden):
		status, message = http.StatusForbidden, "forbidden"
	case errors.Is(err, models.ErrNotFound):
		status, message = http.StatusNotFound, "not found"
	case errors.Is(err, models.ErrConflict):
		status, message = http.StatusConflict, "conflict"
	case errors.Is(err, models.ErrUnsupportedFormat):
		status, message = http.StatusUnsupportedMediaType, "unsupported format"
	case errors.Is(err, models.ErrTooLarge):
		status, message = http.StatusRequestEntityTooLarge, "file too large"
	case errors.Is(err, models.ErrValidation):
		status, message = http.StatusBadRequest, err.Error()
	case errors.Is(err, models.ErrProcessor):
		status, message = http.StatusUnprocessableEntity, "processing failed"
	}

	if status == http.StatusInternalServerError {
		s.logger.Error(r.Context(), "request failed",
			"method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": message})
}

// tenantFor resolves the effective tenant for the request. The caller's
// own tenant applies unless an admin passes ?tenant=; the override is
// audited as a cross-tenant access.
func (s *Server) tenantFor(r *http.Request, action string) (tenantID, callerID string, err error) {
	id := auth.IdentityFromContext(r.Context())
	if id == nil {
		return "", "", models.ErrUnauthenticated
	}

	override := r.URL.Query().Get("tenant")
	if override == "" || override == id.TenantID {
		return id.TenantID, id.UserID, nil
	}
	if !id.Admin {
		return "", "", models.ErrForbidden
	}
	if s.deps.Audit != nil {
		s.deps.Audit.RecordCrossTenant(r.Context(), id.TenantID, override, id.UserID, action, r.URL.Path)
	}
	return override, id.UserID, nil
}
