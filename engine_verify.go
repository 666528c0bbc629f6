package gosession

import (
	"context"
	"log"
	"time"

	"github.com/MrEthical07/goSession/internal/flows"
)

// Verify checks an access token and returns the authenticated
// principal. The chain is decode, blacklist, family revocation
// (read-through cache), tenant status and credential version. Like
// Refresh, every rejection a caller could use to probe state collapses
// into ErrInvalidCredential.
func (e *Engine) Verify(ctx context.Context, accessToken string) (*Principal, error) {
	if e == nil || e.jwtManager == nil {
		return nil, ErrEngineNotReady
	}
	if e.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() {
			e.metrics.Observe(MetricVerifyLatency, time.Since(start))
		}()
	}

	result := flows.RunVerify(ctx, accessToken, flows.VerifyDeps{
		DecodeAccess:  e.jwtManager.DecodeAccess,
		Blacklisted:   e.blacklist.Contains,
		RevokedFamily: e.revocation.Revoked,
		FailOpen:      !e.config.ProductionMode && e.config.Blacklist.FailOpen,
		CheckTenant:   e.checkTenant,
		Warn:          log.Printf,
	})

	if result.Failure != flows.VerifyFailureNone {
		return nil, e.rejectVerify(ctx, result)
	}

	e.metricInc(MetricVerifySuccess)
	return &Principal{
		Subject:  result.Claims.Subject,
		TenantID: result.Claims.TenantID,
		Role:     result.Claims.Role,
	}, nil
}

func (e *Engine) rejectVerify(ctx context.Context, result flows.VerifyResult) error {
	subject, tenantID, familyID := "", "", ""
	if result.Claims != nil {
		subject = result.Claims.Subject
		tenantID = result.Claims.TenantID
		familyID = result.Claims.FamilyID
	}

	switch result.Failure {
	case flows.VerifyFailureBlacklisted:
		e.metricInc(MetricVerifyBlacklisted)
		e.metricInc(MetricVerifyFailure)
		e.emitAudit(ctx, auditEventVerifyRejected, false, subject, tenantID, familyID, ErrBlacklisted, nil)
		return ErrInvalidCredential

	case flows.VerifyFailureRevoked:
		e.metricInc(MetricVerifyRevoked)
		e.metricInc(MetricVerifyFailure)
		e.emitAudit(ctx, auditEventVerifyRejected, false, subject, tenantID, familyID, ErrSessionRevoked, nil)
		return ErrInvalidCredential

	case flows.VerifyFailureAccountInactive:
		e.metricInc(MetricVerifyFailure)
		e.emitAudit(ctx, auditEventVerifyRejected, false, subject, tenantID, familyID, ErrAccountInactive, nil)
		return ErrAccountInactive

	case flows.VerifyFailureRevocationLookup, flows.VerifyFailureTenant:
		err := wrapUnavailable(result.Err)
		e.metricInc(MetricVerifyFailure)
		e.emitAudit(ctx, auditEventVerifyRejected, false, subject, tenantID, familyID, err, nil)
		return err

	default:
		e.metricInc(MetricVerifyFailure)
		e.emitAudit(ctx, auditEventVerifyRejected, false, subject, tenantID, familyID, ErrInvalidCredential, func() map[string]string {
			return map[string]string{
				"reason": verifyFailureReason(result.Failure),
			}
		})
		return ErrInvalidCredential
	}
}

func verifyFailureReason(kind flows.VerifyFailureKind) string {
	switch kind {
	case flows.VerifyFailureDecode:
		return "decode_failed"
	case flows.VerifyFailureVersionMismatch:
		return "credential_version_mismatch"
	default:
		return "unknown"
	}
}
