package gosession

import (
	"context"

	"github.com/MrEthical07/goSession/internal/audit"
)

// Principal is the verified identity behind an access token.
type Principal struct {
	Subject  string
	TenantID string
	Role     string
}

// TokenPair is the result of issuance and refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	FamilyID     string `json:"-"`
}

// IssueRequest describes one authenticated login. The engine does not
// authenticate; it mints credentials for an identity the host
// application has already verified.
type IssueRequest struct {
	Subject  string
	TenantID string
	Role     string

	// DeviceSecret, when present, binds (or matches) the session to the
	// calling device.
	DeviceSecret string

	// FamilyID keeps a re-login on a known device inside its existing
	// family when that family is still live; otherwise a new family is
	// created.
	FamilyID string
}

// TenantStatus is what the host application knows about a tenant
// account at this instant.
type TenantStatus struct {
	// Active gates all issuance and verification for the tenant.
	Active bool
	// Version is the tenant's credential version. Bumping it
	// invalidates every token issued under older versions.
	Version uint32
	// Reason optionally explains an inactive account for audit trails.
	Reason string
}

// TenantProvider is the collaborator the engine consults for account
// state. Implementations should answer from local data or a cache;
// the engine calls this on every issue, refresh, and verify.
type TenantProvider interface {
	ValidateTenant(ctx context.Context, tenantID string) (TenantStatus, error)
}

// TenantProviderFunc adapts a function to TenantProvider.
type TenantProviderFunc func(ctx context.Context, tenantID string) (TenantStatus, error)

func (f TenantProviderFunc) ValidateTenant(ctx context.Context, tenantID string) (TenantStatus, error) {
	return f(ctx, tenantID)
}

// AuditEvent is re-exported so host applications implementing sinks do
// not import internal packages.
type AuditEvent = audit.Event

// AuditSink receives engine audit events.
type AuditSink = audit.Sink

// NewChannelAuditSink returns a sink whose events are readable from a
// channel, mostly useful in tests and small deployments.
func NewChannelAuditSink(buffer int) *audit.ChannelSink {
	return audit.NewChannelSink(buffer)
}

// NewJSONAuditSink returns a sink writing one JSON event per line.
func NewJSONAuditSink(w interface{ Write([]byte) (int, error) }) *audit.JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}
