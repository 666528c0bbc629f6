package flows

import "context"

// TenantStatus is the flow-level view of a tenant account: whether it
// can authenticate and its current credential version. Bumping the
// version invalidates every token issued under older versions.
type TenantStatus struct {
	Active  bool
	Version uint32
}

// TenantCheck resolves the current status of a tenant account.
type TenantCheck func(ctx context.Context, tenantID string) (TenantStatus, error)
