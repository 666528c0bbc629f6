// Package cache provides the small TTL key/value abstraction goSession
// uses for token blacklisting and revocation lookups. Two backends are
// included: an in-process map for tests and single-node deployments,
// and Redis for anything shared.
package cache

import (
	"context"
	"time"
)

// Cache is a TTL'd string key/value store. Implementations must be safe
// for concurrent use. Get distinguishes "absent" from "failed": a miss
// returns ("", false, nil) while a backend error returns a non-nil
// error so callers can apply their own failure policy.
type Cache interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
