package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/pepper"
	"github.com/MrEthical07/goSession/session"
)

// IssueFailureKind classifies issuance failures for root-level mapping.
type IssueFailureKind int

const (
	IssueFailureNone IssueFailureKind = iota
	IssueFailureTenant
	IssueFailureAccountInactive
	IssueFailureStore
	IssueFailureEncode
)

// IssueRequest is one authenticated login turned into a token pair.
// Authentication itself happened upstream; the flow only mints
// credentials for an identity the caller already trusts.
type IssueRequest struct {
	Subject  string
	TenantID string
	Role     string

	// ExistingFamilyID keeps a re-login on a known device inside its
	// current family when that family is still live.
	ExistingFamilyID string

	DeviceSecret string
	IP           string
	UserAgent    string
	Location     string
}

// IssueResult carries the minted pair plus what happened along the way.
type IssueResult struct {
	Failure      IssueFailureKind
	Err          error
	Session      *session.Session
	AccessToken  string
	RefreshToken string

	// Reused reports that an existing family was refreshed instead of a
	// new one created.
	Reused bool

	// Evicted lists families revoked to honor the concurrent-session
	// cap.
	Evicted []string
}

// IssueStore is the slice of the session store the issue flow needs.
type IssueStore interface {
	Create(ctx context.Context, sess *session.Session) error
	Reissue(ctx context.Context, req session.ReissueRequest) (*session.Session, error)
	CountActive(ctx context.Context, tenantID string) (int, error)
	OldestActive(ctx context.Context, tenantID string, n int) ([]*session.Session, error)
	Revoke(ctx context.Context, familyID string) error
}

// IssueDeps captures issue flow dependencies.
type IssueDeps struct {
	CheckTenant          TenantCheck
	HashDeviceSecret     func(string) pepper.Digest
	NewTokenID           func() string
	NewFamilyID          func() string
	DeviceLabel          func(userAgent string) string
	Store                IssueStore
	InvalidateRevocation func(context.Context, string)
	EncodeAccess         func(jwt.Claims) (string, error)
	EncodeRefresh        func(jwt.Claims) (string, error)
	RefreshTTL           time.Duration

	// MaxSessionsPerTenant caps live families per tenant; zero means
	// unlimited.
	MaxSessionsPerTenant int

	Now  func() time.Time
	Warn func(string, ...any)
}

// RunIssue mints an access/refresh pair for an authenticated identity,
// creating a new family or refreshing an existing one, then enforces
// the per-tenant session cap by revoking least-recently-used families.
func RunIssue(ctx context.Context, req IssueRequest, deps IssueDeps) IssueResult {
	status, err := deps.CheckTenant(ctx, req.TenantID)
	if err != nil {
		return IssueResult{Failure: IssueFailureTenant, Err: err}
	}
	if !status.Active {
		return IssueResult{Failure: IssueFailureAccountInactive}
	}

	now := deps.Now()
	refreshTokenID := deps.NewTokenID()

	var digest pepper.Digest
	haveDevice := req.DeviceSecret != ""
	if haveDevice {
		digest = deps.HashDeviceSecret(req.DeviceSecret)
	}

	var (
		sess   *session.Session
		reused bool
	)
	if req.ExistingFamilyID != "" {
		sess, err = deps.Store.Reissue(ctx, session.ReissueRequest{
			FamilyID:     req.ExistingFamilyID,
			NextTokenID:  refreshTokenID,
			DeviceDigest: digest,
			HaveDevice:   haveDevice,
			Now:          now,
		})
		switch {
		case err == nil:
			reused = true
		case errors.Is(err, session.ErrNotFound):
			// Dead or foreign family: fall through to a fresh one.
		default:
			return IssueResult{Failure: IssueFailureStore, Err: err}
		}
	}

	if sess == nil {
		sess = &session.Session{
			FamilyID:       deps.NewFamilyID(),
			TenantID:       req.TenantID,
			Subject:        req.Subject,
			Role:           req.Role,
			AccountVersion: status.Version,
			RefreshTokenID: refreshTokenID,
			DeviceHash:     digest,
			DeviceBound:    haveDevice,
			CreatedAt:      now,
			LastUsedAt:     now,
			ExpiresAt:      now.Add(deps.RefreshTTL),
			Created: session.Context{
				IP:          req.IP,
				UserAgent:   req.UserAgent,
				DeviceLabel: deps.DeviceLabel(req.UserAgent),
				Location:    req.Location,
			},
		}
		if err := deps.Store.Create(ctx, sess); err != nil {
			return IssueResult{Failure: IssueFailureStore, Err: err}
		}
	}

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
		return IssueResult{Failure: IssueFailureEncode, Err: err}
	}

	refreshClaims := pairClaims
	refreshClaims.TokenID = sess.RefreshTokenID
	refresh, err := deps.EncodeRefresh(refreshClaims)
	if err != nil {
		return IssueResult{Failure: IssueFailureEncode, Err: err}
	}

	evicted, err := enforceSessionCap(ctx, sess, deps)
	if err != nil {
		return IssueResult{Failure: IssueFailureStore, Err: err}
	}

	return IssueResult{
		Session:      sess,
		AccessToken:  access,
		RefreshToken: refresh,
		Reused:       reused,
		Evicted:      evicted,
	}
}

// enforceSessionCap revokes least-recently-used families until the
// tenant is back at its cap. The session just issued is never a
// candidate.
func enforceSessionCap(ctx context.Context, current *session.Session, deps IssueDeps) ([]string, error) {
	if deps.MaxSessionsPerTenant <= 0 {
		return nil, nil
	}

	count, err := deps.Store.CountActive(ctx, current.TenantID)
	if err != nil {
		return nil, err
	}
	over := count - deps.MaxSessionsPerTenant
	if over <= 0 {
		return nil, nil
	}

	// Fetch one extra in case the freshly issued session sorts into the
	// oldest slice.
	oldest, err := deps.Store.OldestActive(ctx, current.TenantID, over+1)
	if err != nil {
		return nil, err
	}

	evicted := make([]string, 0, over)
	for _, candidate := range oldest {
		if candidate.FamilyID == current.FamilyID {
			continue
		}
		if err := deps.Store.Revoke(ctx, candidate.FamilyID); err != nil {
			return evicted, err
		}
		deps.InvalidateRevocation(ctx, candidate.FamilyID)
		evicted = append(evicted, candidate.FamilyID)
		if len(evicted) == over {
			break
		}
	}
	return evicted, nil
}
