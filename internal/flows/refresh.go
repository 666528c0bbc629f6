package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/pepper"
	"github.com/MrEthical07/goSession/session"
)

// RefreshFailureKind classifies refresh flow failures for root-level
// mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureDecode
	RefreshFailureTenant
	RefreshFailureAccountInactive
	RefreshFailureVersionMismatch
	RefreshFailureNotFound
	RefreshFailureExpired
	RefreshFailureRevoked
	RefreshFailureDeviceMismatch
	RefreshFailureReuse
	RefreshFailureStore
	RefreshFailureEncode
)

// RefreshResult carries either the rotated token pair or failure
// metadata for audit and metrics.
type RefreshResult struct {
	Failure      RefreshFailureKind
	Err          error
	TenantID     string
	Subject      string
	FamilyID     string
	Session      *session.Session
	AccessToken  string
	RefreshToken string
}

// RefreshStore is the slice of the session store the refresh flow needs.
type RefreshStore interface {
	Rotate(ctx context.Context, req session.RotateRequest) (session.RotateOutcome, *session.Session, error)
}

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	DecodeRefresh        func(string) (*jwt.Claims, error)
	CheckTenant          TenantCheck
	HashDeviceSecret     func(string) pepper.Digest
	NewTokenID           func() string
	Store                RefreshStore
	InvalidateRevocation func(context.Context, string)
	EncodeAccess         func(jwt.Claims) (string, error)
	EncodeRefresh        func(jwt.Claims) (string, error)
	Now                  func() time.Time
	Warn                 func(string, ...any)
}

// RunRefresh executes the rotation protocol. The tenant is validated
// before the store is touched so a deactivated account cannot burn a
// rotation, and every store-side outcome maps to a distinct failure
// kind; collapsing them into the caller-visible generic error is the
// root package's job.
func RunRefresh(ctx context.Context, refreshToken, deviceSecret string, deps RefreshDeps) RefreshResult {
	claims, err := deps.DecodeRefresh(refreshToken)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureDecode, Err: err}
	}

	result := RefreshResult{
		TenantID: claims.TenantID,
		Subject:  claims.Subject,
		FamilyID: claims.FamilyID,
	}

	status, err := deps.CheckTenant(ctx, claims.TenantID)
	if err != nil {
		result.Failure = RefreshFailureTenant
		result.Err = err
		return result
	}
	if !status.Active {
		result.Failure = RefreshFailureAccountInactive
		return result
	}
	if claims.AccountVersion != status.Version {
		result.Failure = RefreshFailureVersionMismatch
		return result
	}

	req := session.RotateRequest{
		FamilyID:         claims.FamilyID,
		PresentedTokenID: claims.TokenID,
		NextTokenID:      deps.NewTokenID(),
		Now:              deps.Now(),
	}
	if deviceSecret != "" {
		req.DeviceDigest = deps.HashDeviceSecret(deviceSecret)
		req.HaveDevice = true
	}

	outcome, sess, err := deps.Store.Rotate(ctx, req)
	if err != nil {
		result.Failure = RefreshFailureStore
		result.Err = err
		return result
	}

	switch outcome {
	case session.RotateNotFound:
		result.Failure = RefreshFailureNotFound
		return result
	case session.RotateExpired:
		result.Failure = RefreshFailureExpired
		return result
	case session.RotateRevoked:
		result.Failure = RefreshFailureRevoked
		return result
	case session.RotateDeviceMismatch:
		result.Failure = RefreshFailureDeviceMismatch
		return result
	case session.RotateReused:
		// The store revoked the family in the same atomic step; drop
		// the cached revoked flag so verification sees it immediately.
		deps.InvalidateRevocation(ctx, claims.FamilyID)
		result.Failure = RefreshFailureReuse
		return result
	}

	result.Session = sess

	pairClaims := jwt.Claims{
		Subject:        sess.Subject,
		TenantID:       sess.TenantID,
		Role:           sess.Role,
		AccountVersion: status.Version,
		FamilyID:       sess.FamilyID,
	}

	accessClaims := pairClaims
	accessClaims.TokenID = deps.NewTokenID()
	access, err := deps.EncodeAccess(accessClaims)
	if err != nil {
		result.Failure = RefreshFailureEncode
		result.Err = err
		return result
	}

	refreshClaims := pairClaims
	refreshClaims.TokenID = sess.RefreshTokenID
	refresh, err := deps.EncodeRefresh(refreshClaims)
	if err != nil {
		result.Failure = RefreshFailureEncode
		result.Err = err
		return result
	}

	result.AccessToken = access
	result.RefreshToken = refresh
	return result
}
