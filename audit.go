package gosession

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventIssueSuccess   = "issue_success"
	auditEventIssueFailure   = "issue_failure"
	auditEventRefreshSuccess = "refresh_success"
	auditEventRefreshInvalid = "refresh_invalid"
	auditEventRefreshReuse   = "refresh_reuse_detected"
	auditEventDeviceRejected = "device_binding_rejected"
	auditEventVerifyRejected = "verify_rejected"
	auditEventLogout         = "logout"
	auditEventLogoutAll      = "logout_everywhere"
	auditEventSessionEvicted = "session_evicted"
	auditEventFamilyRevoked  = "family_revoked"
	auditEventTenantRevoked  = "tenant_revoked"
)

// AuditErrorCode is the stable wire form of an engine error inside an
// audit event. Codes stay coarse on purpose; the anti-oracle rules that
// shape API errors apply to the audit stream too.
type AuditErrorCode string

const (
	auditErrInvalidCredential AuditErrorCode = "invalid_credential"
	auditErrAccountInactive   AuditErrorCode = "account_inactive"
	auditErrBlacklisted       AuditErrorCode = "token_blacklisted"
	auditErrSessionRevoked    AuditErrorCode = "session_revoked"
	auditErrDeviceMismatch    AuditErrorCode = "device_mismatch"
	auditErrConcurrency       AuditErrorCode = "concurrency_conflict"
	auditErrUnavailable       AuditErrorCode = "backend_unavailable"
	auditErrInternal          AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	subject string,
	tenantID string,
	familyID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Subject:   subject,
		TenantID:  tenantID,
		FamilyID:  familyID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrDeviceMismatch):
		return auditErrDeviceMismatch
	case errors.Is(err, ErrInvalidCredential):
		return auditErrInvalidCredential
	case errors.Is(err, ErrAccountInactive):
		return auditErrAccountInactive
	case errors.Is(err, ErrBlacklisted):
		return auditErrBlacklisted
	case errors.Is(err, ErrSessionRevoked):
		return auditErrSessionRevoked
	case errors.Is(err, ErrConcurrencyConflict):
		return auditErrConcurrency
	case errors.Is(err, ErrStoreUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
