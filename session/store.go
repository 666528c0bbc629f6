package session

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goSession/pepper"
)

// ErrNotFound is returned when no session exists for the family id.
var ErrNotFound = errors.New("session not found")

// ErrUnavailable wraps backend failures so callers can fail closed.
var ErrUnavailable = errors.New("session store unavailable")

// ErrCorrupt is returned when a stored session cannot be decoded.
var ErrCorrupt = errors.New("session record corrupt")

// RotateOutcome is the result of the atomic compare-and-rotate.
type RotateOutcome uint8

const (
	// RotateOK means the presented token id was current and the family
	// now carries the next token id.
	RotateOK RotateOutcome = iota
	// RotateNotFound means no session exists for the family.
	RotateNotFound
	// RotateExpired means the family's absolute lifetime has passed.
	RotateExpired
	// RotateRevoked means the family was already revoked.
	RotateRevoked
	// RotateDeviceMismatch means the presented device digest does not
	// match the bound one. The family is left untouched.
	RotateDeviceMismatch
	// RotateReused means the presented token id was already rotated
	// out. The store has revoked the whole family in the same atomic
	// step.
	RotateReused
)

func (o RotateOutcome) String() string {
	switch o {
	case RotateOK:
		return "ok"
	case RotateNotFound:
		return "not_found"
	case RotateExpired:
		return "expired"
	case RotateRevoked:
		return "revoked"
	case RotateDeviceMismatch:
		return "device_mismatch"
	case RotateReused:
		return "reused"
	default:
		return "unknown"
	}
}

// RotateRequest carries the inputs of one rotation attempt.
type RotateRequest struct {
	FamilyID         string
	PresentedTokenID string
	NextTokenID      string

	// DeviceDigest is compared against the bound device hash. A bound
	// family rejects rotation unless HaveDevice is set and the digests
	// match; an unbound family is opportunistically bound on success.
	DeviceDigest pepper.Digest
	HaveDevice   bool

	Now time.Time
}

// ReissueRequest carries the inputs for refreshing the current token id
// of an already-authenticated family, as happens when a device logs in
// again while its session is still live.
type ReissueRequest struct {
	FamilyID     string
	NextTokenID  string
	DeviceDigest pepper.Digest
	HaveDevice   bool
	Now          time.Time
}

// Store persists sessions. Implementations must make Rotate atomic per
// family: the fetch, the checks, the token swap, and the theft
// revocation happen as one serialized step, so two racing rotations can
// never both succeed.
type Store interface {
	// Create persists a new family. The record's ExpiresAt bounds its
	// lifetime in the store.
	Create(ctx context.Context, sess *Session) error

	// Get returns the family read-only, or ErrNotFound.
	Get(ctx context.Context, familyID string) (*Session, error)

	// Rotate runs the compare-and-rotate. The returned session is the
	// post-rotation state and is only non-nil for RotateOK.
	Rotate(ctx context.Context, req RotateRequest) (RotateOutcome, *Session, error)

	// Reissue atomically installs a new current token id on a live
	// family. It fails with ErrNotFound when the family is absent,
	// expired, revoked, or bound to a different device.
	Reissue(ctx context.Context, req ReissueRequest) (*Session, error)

	// Revoke terminally revokes one family. Idempotent; revoking an
	// absent family is not an error.
	Revoke(ctx context.Context, familyID string) error

	// RevokeAllForTenant revokes every active family of a tenant and
	// returns the ids it revoked.
	RevokeAllForTenant(ctx context.Context, tenantID string) ([]string, error)

	// CountActive returns the number of live, unrevoked families for a
	// tenant.
	CountActive(ctx context.Context, tenantID string) (int, error)

	// OldestActive returns up to n live families ordered by
	// LastUsedAt ascending, for least-recently-used eviction.
	OldestActive(ctx context.Context, tenantID string, n int) ([]*Session, error)

	// Touch updates LastUsedAt without rotating.
	Touch(ctx context.Context, familyID string, now time.Time) error

	// DeleteExpired sweeps families whose lifetime has passed and
	// returns how many it removed. Backends with native expiry may only
	// prune their indexes here.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}
