package session

import (
	"time"

	"github.com/MrEthical07/goSession/pepper"
)

// Context captures where a session was created. Purely informational:
// it feeds audit trails and device listings, never authorization.
type Context struct {
	IP          string
	UserAgent   string
	DeviceLabel string
	Location    string
}

// Session is one refresh-token family. Exactly one refresh token id is
// current per family; presenting a superseded id is treated as theft.
type Session struct {
	FamilyID       string
	TenantID       string
	Subject        string
	Role           string
	AccountVersion uint32

	// RefreshTokenID is the id of the only refresh token that can
	// rotate this family.
	RefreshTokenID string

	// DeviceHash is the peppered digest of the client device secret.
	// Zero until DeviceBound is set; sticky afterwards.
	DeviceHash  pepper.Digest
	DeviceBound bool

	// Revoked is terminal. No rotation or verification ever succeeds
	// for a revoked family.
	Revoked bool

	CreatedAt  time.Time
	LastUsedAt time.Time
	ExpiresAt  time.Time

	Created Context
}

// Expired reports whether the family's absolute lifetime has passed.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// Usable reports whether the family can still rotate at now.
func (s *Session) Usable(now time.Time) bool {
	return !s.Revoked && !s.Expired(now)
}
