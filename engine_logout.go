package gosession

import (
	"context"
	"strconv"
	"time"
)

// Logout invalidates a single access token by blacklisting its token
// ID for the remainder of its life. The session family stays alive;
// the client's refresh token keeps working.
//
// An expired or forged token is accepted silently as long as the
// signature verifies: logging out twice must not error.
func (e *Engine) Logout(ctx context.Context, accessToken string) error {
	if e == nil || e.blacklist == nil {
		return ErrEngineNotReady
	}

	claims, err := e.jwtManager.DecodeForRevocation(accessToken)
	if err != nil {
		e.emitAudit(ctx, auditEventLogout, false, "", "", "", ErrInvalidCredential, nil)
		return ErrInvalidCredential
	}

	remaining := time.Until(claims.ExpiresAt)
	if remaining > 0 {
		if err := e.blacklist.Add(ctx, claims.TokenID, remaining); err != nil {
			wrapped := wrapUnavailable(err)
			e.emitAudit(ctx, auditEventLogout, false, claims.Subject, claims.TenantID, claims.FamilyID, wrapped, nil)
			return wrapped
		}
	}

	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogout, true, claims.Subject, claims.TenantID, claims.FamilyID, nil, nil)
	return nil
}

// LogoutEverywhere blacklists the presented access token and revokes
// its whole session family, killing the refresh token with it.
func (e *Engine) LogoutEverywhere(ctx context.Context, accessToken string) error {
	if e == nil || e.blacklist == nil || e.store == nil {
		return ErrEngineNotReady
	}

	claims, err := e.jwtManager.DecodeForRevocation(accessToken)
	if err != nil {
		e.emitAudit(ctx, auditEventLogoutAll, false, "", "", "", ErrInvalidCredential, nil)
		return ErrInvalidCredential
	}

	if remaining := time.Until(claims.ExpiresAt); remaining > 0 {
		if err := e.blacklist.Add(ctx, claims.TokenID, remaining); err != nil {
			wrapped := wrapUnavailable(err)
			e.emitAudit(ctx, auditEventLogoutAll, false, claims.Subject, claims.TenantID, claims.FamilyID, wrapped, nil)
			return wrapped
		}
	}

	if err := e.revokeFamily(ctx, claims.FamilyID); err != nil {
		e.emitAudit(ctx, auditEventLogoutAll, false, claims.Subject, claims.TenantID, claims.FamilyID, err, nil)
		return err
	}

	e.metricInc(MetricLogoutAll)
	e.emitAudit(ctx, auditEventLogoutAll, true, claims.Subject, claims.TenantID, claims.FamilyID, nil, nil)
	return nil
}

// RevokeFamily kills one session family by ID. Admin-facing: no token
// required. Idempotent.
func (e *Engine) RevokeFamily(ctx context.Context, familyID string) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}

	err := e.revokeFamily(ctx, familyID)
	e.emitAudit(ctx, auditEventFamilyRevoked, err == nil, "", "", familyID, err, nil)
	return err
}

// RevokeTenant kills every live session family of a tenant. Used for
// the tenant-wide kill switch alongside a credential version bump.
func (e *Engine) RevokeTenant(ctx context.Context, tenantID string) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}

	families, err := e.store.RevokeAllForTenant(ctx, tenantID)
	if err != nil {
		wrapped := wrapUnavailable(err)
		e.emitAudit(ctx, auditEventTenantRevoked, false, "", tenantID, "", wrapped, nil)
		return wrapped
	}
	for _, familyID := range families {
		e.revocation.Invalidate(ctx, familyID)
		e.metricInc(MetricSessionRevoked)
	}

	e.metricInc(MetricTenantRevocation)
	e.emitAudit(ctx, auditEventTenantRevoked, true, "", tenantID, "", nil, func() map[string]string {
		return map[string]string{
			"families_revoked": strconv.Itoa(len(families)),
		}
	})
	return nil
}

func (e *Engine) revokeFamily(ctx context.Context, familyID string) error {
	if err := e.store.Revoke(ctx, familyID); err != nil {
		return wrapUnavailable(err)
	}
	e.revocation.Invalidate(ctx, familyID)
	e.metricInc(MetricSessionRevoked)
	return nil
}
