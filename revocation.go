package gosession

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goSession/cache"
	"github.com/MrEthical07/goSession/session"
)

const revocationKeyPrefix = "rv:"

// revocationCache answers "is this family revoked" with a short-TTL
// cache in front of the session store. A cached verdict is held for at
// most CacheTTL, which bounds how long a revoked family keeps passing
// verification. Invalidate is called on every revocation path so a
// node that performed the revocation sees it immediately.
type revocationCache struct {
	cache    cache.Cache
	store    session.Store
	ttl      time.Duration
	failOpen bool
	warn     func(string)
}

func newRevocationCache(c cache.Cache, store session.Store, ttl time.Duration, failOpen bool, warn func(string)) *revocationCache {
	if warn == nil {
		warn = func(string) {}
	}
	return &revocationCache{cache: c, store: store, ttl: ttl, failOpen: failOpen, warn: warn}
}

// Revoked reports whether the family is revoked or gone. A family the
// store no longer has counts as revoked. Backend failures follow the
// fail policy: fail-closed treats the family as revoked, fail-open
// trusts the token until the backend recovers.
func (r *revocationCache) Revoked(ctx context.Context, familyID string) (bool, error) {
	key := revocationKeyPrefix + familyID
	if v, ok, err := r.cache.Get(ctx, key); err == nil && ok {
		return v == "1", nil
	} else if err != nil {
		r.warn(fmt.Sprintf("revocation cache read failed: %v", err))
	}

	sess, err := r.store.Get(ctx, familyID)
	switch {
	case errors.Is(err, session.ErrNotFound):
		r.set(ctx, key, true)
		return true, nil
	case err != nil:
		if r.failOpen {
			r.warn(fmt.Sprintf("revocation lookup failed, failing open: %v", err))
			return false, nil
		}
		return true, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	revoked := sess.Revoked || sess.Expired(time.Now())
	r.set(ctx, key, revoked)
	return revoked, nil
}

// Invalidate drops the cached verdict for a family. Called whenever a
// family is revoked locally so the new state is visible without
// waiting out the TTL.
func (r *revocationCache) Invalidate(ctx context.Context, familyID string) {
	if err := r.cache.Delete(ctx, revocationKeyPrefix+familyID); err != nil {
		r.warn(fmt.Sprintf("revocation cache invalidate failed: %v", err))
	}
}

func (r *revocationCache) set(ctx context.Context, key string, revoked bool) {
	v := "0"
	if revoked {
		v = "1"
	}
	if err := r.cache.Set(ctx, key, v, r.ttl); err != nil {
		r.warn(fmt.Sprintf("revocation cache write failed: %v", err))
	}
}
