package observability

import (
	"context"
	"time"
)

// Audit actions recorded by the core. Every write and every cross-tenant
// access produces an entry.
const (
	AuditCreate      = "create"
	AuditUpdate      = "update"
	AuditDelete      = "delete"
	AuditDownload    = "download"
	AuditAdminAccess = "admin_cross_tenant_access"
)

// AuditLogger records audit entries as structured log records. Entries
// carry tenant, caller, action, and target so they can be filtered and
// retained independently of application logs.
type AuditLogger struct {
	logger *Logger
}

// NewAuditLogger creates an audit logger writing through the given
// structured logger.
func NewAuditLogger(logger *Logger) *AuditLogger {
	return &AuditLogger{logger: logger.WithFields("log", "audit")}
}

// Record writes one audit entry.
func (a *AuditLogger) Record(ctx context.Context, tenantID, callerID, action, targetID string) {
	a.logger.Info(ctx, "audit",
		"tenant_id", tenantID,
		"caller_id", callerID,
		"action", action,
		"target_id", targetID,
		"timestamp", time.Now().UTC().Format(time.RFC3339Nano),
	)
}

// RecordCrossTenant writes an audit entry for an administrator accessing
// another tenant's data. These are always recorded.
func (a *AuditLogger) RecordCrossTenant(ctx context.Context, callerTenant, targetTenant, callerID, action, targetID string) {
	a.logger.Warn(ctx, "audit",
		"tenant_id", targetTenant,
		"caller_tenant_id", callerTenant,
		"caller_id", callerID,
		"action", AuditAdminAccess,
		"underlying_action", action,
		"target_id", targetID,
		"timestamp", time.Now().UTC().Format(time.RFC3339Nano),
	)
}
