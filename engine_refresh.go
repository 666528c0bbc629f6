package gosession

import (
	"context"
	"log"
	"time"

	"github.com/MrEthical07/goSession/internal"
	"github.com/MrEthical07/goSession/internal/flows"
)

// Refresh rotates a refresh token and returns a fresh pair. The old
// refresh token is dead after a successful call. Presenting an already
// rotated token is treated as theft: the whole family is revoked and
// the caller gets the same generic rejection as any other bad token.
//
// A session bound to a device requires deviceSecret on every rotation;
// an unbound session that presents one becomes bound.
func (e *Engine) Refresh(ctx context.Context, refreshToken, deviceSecret string) (*TokenPair, error) {
	if e == nil || e.store == nil || e.jwtManager == nil {
		return nil, ErrEngineNotReady
	}

	result := flows.RunRefresh(ctx, refreshToken, deviceSecret, flows.RefreshDeps{
		DecodeRefresh:        e.jwtManager.DecodeRefresh,
		CheckTenant:          e.checkTenant,
		HashDeviceSecret:     e.hasher.Sum,
		NewTokenID:           internal.NewTokenID,
		Store:                e.store,
		InvalidateRevocation: e.revocation.Invalidate,
		EncodeAccess:         e.jwtManager.EncodeAccess,
		EncodeRefresh:        e.jwtManager.EncodeRefresh,
		Now:                  time.Now,
		Warn:                 log.Printf,
	})

	if result.Failure != flows.RefreshFailureNone {
		return nil, e.rejectRefresh(ctx, result)
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, result.Subject, result.TenantID, result.FamilyID, nil, nil)

	return e.tokenPair(result.AccessToken, result.RefreshToken, result.FamilyID), nil
}

// rejectRefresh maps a flow failure onto the caller-visible error.
// Everything a malicious caller could probe with collapses into
// ErrInvalidCredential; only conditions the legitimate client must
// react to differently keep their own sentinel.
func (e *Engine) rejectRefresh(ctx context.Context, result flows.RefreshResult) error {
	switch result.Failure {
	case flows.RefreshFailureReuse:
		e.metricInc(MetricRefreshReuseDetected)
		e.metricInc(MetricSessionRevoked)
		e.emitAudit(ctx, auditEventRefreshReuse, false, result.Subject, result.TenantID, result.FamilyID, ErrInvalidCredential, nil)
		return ErrInvalidCredential

	case flows.RefreshFailureDeviceMismatch:
		e.metricInc(MetricDeviceRejected)
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventDeviceRejected, false, result.Subject, result.TenantID, result.FamilyID, ErrDeviceMismatch, nil)
		return ErrInvalidCredential

	case flows.RefreshFailureAccountInactive:
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, result.Subject, result.TenantID, result.FamilyID, ErrAccountInactive, nil)
		return ErrAccountInactive

	case flows.RefreshFailureTenant, flows.RefreshFailureStore, flows.RefreshFailureEncode:
		err := wrapUnavailable(result.Err)
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, result.Subject, result.TenantID, result.FamilyID, err, nil)
		return err

	default:
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, result.Subject, result.TenantID, result.FamilyID, ErrInvalidCredential, func() map[string]string {
			return map[string]string{
				"reason": refreshFailureReason(result.Failure),
			}
		})
		return ErrInvalidCredential
	}
}

func refreshFailureReason(kind flows.RefreshFailureKind) string {
	switch kind {
	case flows.RefreshFailureDecode:
		return "decode_failed"
	case flows.RefreshFailureVersionMismatch:
		return "credential_version_mismatch"
	case flows.RefreshFailureNotFound:
		return "family_not_found"
	case flows.RefreshFailureExpired:
		return "family_expired"
	case flows.RefreshFailureRevoked:
		return "family_revoked"
	default:
		return "unknown"
	}
}
