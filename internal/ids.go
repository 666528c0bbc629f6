// Package internal holds shared helpers for the goSession engine.
package internal

import (
	"crypto/rand"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// NewTokenID returns a fresh unique token id (jti).
func NewTokenID() string {
	return uuid.NewString()
}

// NewFamilyID returns a fresh family id. ULIDs sort by creation time,
// which keeps store listings and operator tooling readable.
func NewFamilyID() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}
