// Package blacklist tracks revoked access-token ids for the remainder
// of their lifetime. Entries carry a TTL equal to the token's residual
// validity, so the set stays bounded without any sweeper.
package blacklist

import (
	"context"
	"time"

	"github.com/MrEthical07/goSession/cache"
)

// Policy decides how Contains answers when the backing store is
// unreachable.
type Policy uint8

const (
	// FailClosed treats a lookup failure as "blacklisted". Production
	// deployments use this: an outage must not let revoked tokens
	// through.
	FailClosed Policy = iota
	// FailOpen treats a lookup failure as "not blacklisted". Meant for
	// development, where availability beats strictness.
	FailOpen
)

func (p Policy) String() string {
	if p == FailOpen {
		return "fail-open"
	}
	return "fail-closed"
}

const keyPrefix = "bl:"

// Blacklist records revoked token ids in a Cache.
type Blacklist struct {
	cache  cache.Cache
	policy Policy
	warn   func(format string, args ...any)
}

// New returns a Blacklist over c with the given failure policy. warn is
// invoked on backend errors; pass nil to discard them.
func New(c cache.Cache, policy Policy, warn func(format string, args ...any)) *Blacklist {
	if warn == nil {
		warn = func(string, ...any) {}
	}
	return &Blacklist{cache: c, policy: policy, warn: warn}
}

// Add marks tokenID revoked for ttl. A non-positive ttl means the token
// has already expired and nothing is written.
func (b *Blacklist) Add(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return b.cache.Set(ctx, keyPrefix+tokenID, "1", ttl)
}

// Contains reports whether tokenID has been revoked. Backend failures
// are resolved by the configured policy.
func (b *Blacklist) Contains(ctx context.Context, tokenID string) bool {
	_, found, err := b.cache.Get(ctx, keyPrefix+tokenID)
	if err != nil {
		b.warn("blacklist lookup failed (%s): %v", b.policy, err)
		return b.policy == FailClosed
	}
	return found
}
