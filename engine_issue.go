package gosession

import (
	"context"
	"log"
	"time"

	"github.com/MrEthical07/goSession/internal"
	"github.com/MrEthical07/goSession/internal/flows"
)

// Issue mints an access/refresh pair for an identity the caller has
// already authenticated. When req.FamilyID names a live family the
// pair is reissued into it; otherwise a new family is created. Issuing
// may evict the tenant's least-recently-used sessions to honor the
// concurrency cap.
func (e *Engine) Issue(ctx context.Context, req IssueRequest) (*TokenPair, error) {
	if e == nil || e.store == nil || e.jwtManager == nil {
		return nil, ErrEngineNotReady
	}
	if req.Subject == "" || req.TenantID == "" {
		return nil, ErrInvalidCredential
	}

	result := flows.RunIssue(ctx, flows.IssueRequest{
		Subject:          req.Subject,
		TenantID:         req.TenantID,
		Role:             req.Role,
		ExistingFamilyID: req.FamilyID,
		DeviceSecret:     req.DeviceSecret,
		IP:               clientIPFromContext(ctx),
		UserAgent:        userAgentFromContext(ctx),
	}, e.issueDeps())

	if result.Failure != flows.IssueFailureNone {
		err := e.mapIssueFailure(result)
		e.metricInc(MetricIssueFailure)
		e.emitAudit(ctx, auditEventIssueFailure, false, req.Subject, req.TenantID, "", err, nil)
		return nil, err
	}

	e.metricInc(MetricIssueSuccess)
	if !result.Reused {
		e.metricInc(MetricSessionCreated)
	}
	for _, familyID := range result.Evicted {
		e.metricInc(MetricSessionEvicted)
		e.emitAudit(ctx, auditEventSessionEvicted, true, req.Subject, req.TenantID, familyID, nil, nil)
	}
	e.emitAudit(ctx, auditEventIssueSuccess, true, req.Subject, req.TenantID, result.Session.FamilyID, nil, func() map[string]string {
		m := map[string]string{
			"device_bound": boolString(result.Session.DeviceBound),
		}
		if result.Reused {
			m["family_reused"] = "true"
		}
		return m
	})

	return e.tokenPair(result.AccessToken, result.RefreshToken, result.Session.FamilyID), nil
}

func (e *Engine) issueDeps() flows.IssueDeps {
	return flows.IssueDeps{
		CheckTenant:          e.checkTenant,
		HashDeviceSecret:     e.hasher.Sum,
		NewTokenID:           internal.NewTokenID,
		NewFamilyID:          internal.NewFamilyID,
		DeviceLabel:          internal.DeviceLabelFromUserAgent,
		Store:                e.store,
		InvalidateRevocation: e.revocation.Invalidate,
		EncodeAccess:         e.jwtManager.EncodeAccess,
		EncodeRefresh:        e.jwtManager.EncodeRefresh,
		RefreshTTL:           e.config.JWT.RefreshTTL,
		MaxSessionsPerTenant: e.config.Session.MaxSessionsPerTenant,
		Now:                  time.Now,
		Warn:                 log.Printf,
	}
}

func (e *Engine) mapIssueFailure(result flows.IssueResult) error {
	switch result.Failure {
	case flows.IssueFailureAccountInactive:
		return ErrAccountInactive
	case flows.IssueFailureTenant, flows.IssueFailureStore, flows.IssueFailureEncode:
		return wrapUnavailable(result.Err)
	default:
		return ErrInvalidCredential
	}
}
