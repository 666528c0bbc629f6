// Package gosession provides a multi-tenant session-security engine
// built on paired JWT credentials: short-lived access tokens and
// rotating refresh tokens grouped into session families. Reuse of a
// rotated refresh token is treated as theft and revokes the whole
// family. Families can be bound to a device secret, capped per tenant
// with LRU eviction, and killed individually, per tenant, or via a
// credential version bump.
//
// The package is designed for concurrent server workloads: Engine
// methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// gosession is the public surface. It exposes [Engine], [Builder],
// [Config], and value types (TokenPair, Principal, MetricsSnapshot).
// Flow orchestration and audit dispatch live under internal/ and are
// never exported. Storage backends (Redis, Postgres) sit behind the
// session.Store interface.
//
// # What this package must NOT do
//
//   - Authenticate passwords or look up accounts; callers hand Issue an
//     identity they already trust.
//   - Expose backend clients or wire encodings in its public API.
//   - Leak session state through error values: refresh and verify
//     rejections collapse into ErrInvalidCredential.
//
// # Performance contract
//
// Verify is the hot path: one blacklist lookup plus a revocation-cache
// read, hitting the session store only on cache miss. Refresh performs
// exactly one atomic store round-trip for the rotation itself.
package gosession
