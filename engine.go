package gosession

import (
	"context"
	"fmt"

	"github.com/MrEthical07/goSession/blacklist"
	"github.com/MrEthical07/goSession/internal/audit"
	"github.com/MrEthical07/goSession/internal/flows"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/pepper"
	"github.com/MrEthical07/goSession/session"
)

// Engine is the session-security core. Build one with the Builder,
// share it across goroutines, and Close it on shutdown to drain the
// audit pipeline.
type Engine struct {
	config     Config
	jwtManager *jwt.Manager
	store      session.Store
	hasher     *pepper.Hasher
	blacklist  *blacklist.Blacklist
	revocation *revocationCache
	tenants    TenantProvider
	audit      *audit.Dispatcher
	metrics    *Metrics
}

// Close flushes and stops the audit dispatcher. Safe on nil.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}

// AuditDropped reports how many audit events were dropped because the
// dispatcher buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a copy of the engine counters. Empty maps
// when metrics are disabled.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) checkTenant(ctx context.Context, tenantID string) (flows.TenantStatus, error) {
	if e.tenants == nil {
		// No provider configured: every tenant is active at version 1.
		return flows.TenantStatus{Active: true, Version: 1}, nil
	}
	status, err := e.tenants.ValidateTenant(ctx, tenantID)
	if err != nil {
		return flows.TenantStatus{}, err
	}
	return flows.TenantStatus{Active: status.Active, Version: status.Version}, nil
}

// wrapUnavailable folds backend errors into ErrStoreUnavailable while
// keeping the cause visible in logs and audit trails.
func wrapUnavailable(err error) error {
	if err == nil {
		return ErrStoreUnavailable
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func (e *Engine) tokenPair(access, refresh, familyID string) *TokenPair {
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(e.config.JWT.AccessTTL.Seconds()),
		FamilyID:     familyID,
	}
}
