package flows

import (
	"context"

	"github.com/MrEthical07/goSession/jwt"
)

// VerifyFailureKind classifies verification failures for root-level
// mapping.
type VerifyFailureKind int

const (
	VerifyFailureNone VerifyFailureKind = iota
	VerifyFailureDecode
	VerifyFailureBlacklisted
	VerifyFailureRevoked
	VerifyFailureRevocationLookup
	VerifyFailureTenant
	VerifyFailureAccountInactive
	VerifyFailureVersionMismatch
)

// VerifyResult carries verified claims or a classified failure.
type VerifyResult struct {
	Failure VerifyFailureKind
	Err     error
	Claims  *jwt.Claims
}

// VerifyDeps captures verification dependencies.
type VerifyDeps struct {
	DecodeAccess func(string) (*jwt.Claims, error)
	Blacklisted  func(ctx context.Context, tokenID string) bool

	// RevokedFamily is the read-through revocation lookup: cache first,
	// session store on miss. A missing family counts as revoked.
	RevokedFamily func(ctx context.Context, familyID string) (bool, error)

	// FailOpen controls the answer when RevokedFamily errors out:
	// development profiles let the request through, production rejects.
	FailOpen bool

	CheckTenant TenantCheck
	Warn        func(string, ...any)
}

// RunVerify executes the access-token verification chain: decode,
// blacklist, family revocation, tenant status and credential version.
func RunVerify(ctx context.Context, accessToken string, deps VerifyDeps) VerifyResult {
	claims, err := deps.DecodeAccess(accessToken)
	if err != nil {
		return VerifyResult{Failure: VerifyFailureDecode, Err: err}
	}

	if deps.Blacklisted(ctx, claims.TokenID) {
		return VerifyResult{Failure: VerifyFailureBlacklisted, Claims: claims}
	}

	revoked, err := deps.RevokedFamily(ctx, claims.FamilyID)
	if err != nil {
		if !deps.FailOpen {
			return VerifyResult{Failure: VerifyFailureRevocationLookup, Err: err, Claims: claims}
		}
		if deps.Warn != nil {
			deps.Warn("goSession: revocation lookup failed, continuing fail-open: %v", err)
		}
	} else if revoked {
		return VerifyResult{Failure: VerifyFailureRevoked, Claims: claims}
	}

	status, err := deps.CheckTenant(ctx, claims.TenantID)
	if err != nil {
		return VerifyResult{Failure: VerifyFailureTenant, Err: err, Claims: claims}
	}
	if !status.Active {
		return VerifyResult{Failure: VerifyFailureAccountInactive, Claims: claims}
	}
	if claims.AccountVersion != status.Version {
		return VerifyResult{Failure: VerifyFailureVersionMismatch, Claims: claims}
	}

	return VerifyResult{Claims: claims}
}
