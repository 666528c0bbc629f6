package internaldefs

import (
	gosession "github.com/MrEthical07/goSession"
)

// CounterDef binds one engine counter to its exposition name.
type CounterDef struct {
	ID   gosession.MetricID
	Name string
	Help string
}

// HistogramDef binds one engine histogram to its exposition name.
type HistogramDef struct {
	ID   gosession.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in render order.
var CounterDefs = []CounterDef{
	{ID: gosession.MetricIssueSuccess, Name: "gosession_issue_success_total", Help: "Successful token issuances."},
	{ID: gosession.MetricIssueFailure, Name: "gosession_issue_failure_total", Help: "Failed token issuances."},
	{ID: gosession.MetricRefreshSuccess, Name: "gosession_refresh_success_total", Help: "Successful refresh rotations."},
	{ID: gosession.MetricRefreshFailure, Name: "gosession_refresh_failure_total", Help: "Failed refresh rotations."},
	{ID: gosession.MetricRefreshReuseDetected, Name: "gosession_refresh_reuse_detected_total", Help: "Rotated-token reuses treated as theft."},
	{ID: gosession.MetricDeviceRejected, Name: "gosession_device_rejected_total", Help: "Rotations rejected by device binding."},
	{ID: gosession.MetricVerifySuccess, Name: "gosession_verify_success_total", Help: "Access tokens that passed verification."},
	{ID: gosession.MetricVerifyFailure, Name: "gosession_verify_failure_total", Help: "Access tokens that failed verification."},
	{ID: gosession.MetricVerifyBlacklisted, Name: "gosession_verify_blacklisted_total", Help: "Verifications rejected by the blacklist."},
	{ID: gosession.MetricVerifyRevoked, Name: "gosession_verify_revoked_total", Help: "Verifications rejected by family revocation."},
	{ID: gosession.MetricSessionCreated, Name: "gosession_session_created_total", Help: "Created session families."},
	{ID: gosession.MetricSessionEvicted, Name: "gosession_session_evicted_total", Help: "Families evicted by the per-tenant cap."},
	{ID: gosession.MetricSessionRevoked, Name: "gosession_session_revoked_total", Help: "Revoked session families."},
	{ID: gosession.MetricLogout, Name: "gosession_logout_total", Help: "Single-token logout operations."},
	{ID: gosession.MetricLogoutAll, Name: "gosession_logout_all_total", Help: "Logout-everywhere operations."},
	{ID: gosession.MetricTenantRevocation, Name: "gosession_tenant_revocation_total", Help: "Tenant-wide revocation sweeps."},
}

// HistogramDefs lists every exported histogram in render order.
var HistogramDefs = []HistogramDef{
	{ID: gosession.MetricVerifyLatency, Name: "gosession_verify_latency_seconds", Help: "Verify latency histogram."},
}

// HistogramBounds holds the upper bucket bounds in seconds, matching
// the engine's fixed millisecond buckets.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// NormalizeBuckets pads or truncates a raw bucket slice to the fixed
// bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into the cumulative
// form Prometheus expects.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
