package gosession

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// stubTenants is a mutable in-memory TenantProvider.
type stubTenants struct {
	mu      sync.Mutex
	active  map[string]bool
	version map[string]uint32
}

func newStubTenants() *stubTenants {
	return &stubTenants{
		active:  map[string]bool{},
		version: map[string]uint32{},
	}
}

func (s *stubTenants) put(tenantID string, active bool, version uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active[tenantID] = active
	s.version[tenantID] = version
}

func (s *stubTenants) ValidateTenant(_ context.Context, tenantID string) (TenantStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	active, ok := s.active[tenantID]
	if !ok {
		return TenantStatus{}, nil
	}
	return TenantStatus{Active: active, Version: s.version[tenantID]}, nil
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.SigningMethod = "hs256"
	cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.Device.Pepper = []byte("test-pepper-test-pepper-test-pep")
	cfg.Audit.Enabled = false
	return cfg
}

func newTestEngine(t *testing.T, mutate ...func(*Builder)) (*Engine, *miniredis.Miniredis, *stubTenants) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	tenants := newStubTenants()
	tenants.put("t1", true, 1)

	b := New().
		WithConfig(testConfig()).
		WithRedis(rdb).
		WithTenantProvider(tenants)
	for _, m := range mutate {
		m(b)
	}

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	t.Cleanup(engine.Close)

	return engine, mr, tenants
}

func mustIssue(t *testing.T, engine *Engine, req IssueRequest) *TokenPair {
	t.Helper()
	pair, err := engine.Issue(context.Background(), req)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	return pair
}

func TestIssueAndVerify(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	pair := mustIssue(t, engine, IssueRequest{Subject: "u1", TenantID: "t1", Role: "admin"})
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("expected both tokens")
	}
	if pair.TokenType != "Bearer" {
		t.Fatalf("token type = %q", pair.TokenType)
	}
	if pair.ExpiresIn <= 0 {
		t.Fatalf("expires_in = %d", pair.ExpiresIn)
	}
	if pair.FamilyID == "" {
		t.Fatal("expected family id")
	}

	principal, err := engine.Verify(context.Background(), pair.AccessToken)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if principal.Subject != "u1" || principal.TenantID != "t1" || principal.Role != "admin" {
		t.Fatalf("principal = %+v", principal)
	}
}

func TestIssueRejectsMissingIdentity(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	if _, err := engine.Issue(context.Background(), IssueRequest{TenantID: "t1"}); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential, got %v", err)
	}
	if _, err := engine.Issue(context.Background(), IssueRequest{Subject: "u1"}); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential, got %v", err)
	}
}

func TestIssueInactiveTenant(t *testing.T) {
	engine, _, tenants := newTestEngine(t)
	tenants.put("t1", false, 1)

	if _, err := engine.Issue(context.Background(), IssueRequest{Subject: "u1", TenantID: "t1"}); !errors.Is(err, ErrAccountInactive) {
		t.Fatalf("expected ErrAccountInactive, got %v", err)
	}
}

func TestIssueReusesExistingFamily(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	first := mustIssue(t, engine, IssueRequest{Subject: "u1", TenantID: "t1"})
	second := mustIssue(t, engine, IssueRequest{Subject: "u1", TenantID: "t1", FamilyID: first.FamilyID})

	if second.FamilyID != first.FamilyID {
		t.Fatalf("expected reissue into family %s, got %s", first.FamilyID, second.FamilyID)
	}

	// The original refresh token was rotated away by the reissue.
	if _, err := engine.Refresh(context.Background(), first.RefreshToken, ""); err == nil {
		t.Fatal("expected stale refresh token to be rejected")
	}
	if _, err := engine.Refresh(context.Background(), second.RefreshToken, ""); err != nil {
		t.Fatalf("fresh refresh token rejected: %v", err)
	}
}

func TestIssueFallsBackWhenFamilyDead(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	first := mustIssue(t, engine, IssueRequest{Subject: "u1", TenantID: "t1"})
	if err := engine.RevokeFamily(context.Background(), first.FamilyID); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	second := mustIssue(t, engine, IssueRequest{Subject: "u1", TenantID: "t1", FamilyID: first.FamilyID})
	if second.FamilyID == first.FamilyID {
		t.Fatal("expected a fresh family after revocation")
	}
	if _, err := engine.Verify(context.Background(), second.AccessToken); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestLogoutBlacklistsAccessToken(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	pair := mustIssue(t, engine, IssueRequest{Subject: "u1", TenantID: "t1"})
	if _, err := engine.Verify(context.Background(), pair.AccessToken); err != nil {
		t.Fatalf("verify before logout: %v", err)
	}

	if err := engine.Logout(context.Background(), pair.AccessToken); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := engine.Verify(context.Background(), pair.AccessToken); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential after logout, got %v", err)
	}

	// Logout kills the access token only; the family survives.
	if _, err := engine.Refresh(context.Background(), pair.RefreshToken, ""); err != nil {
		t.Fatalf("refresh after logout: %v", err)
	}

	// Logging out the same token twice is fine.
	if err := engine.Logout(context.Background(), pair.AccessToken); err != nil {
		t.Fatalf("second logout: %v", err)
	}
}

func TestLogoutEverywhereKillsFamily(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	pair := mustIssue(t, engine, IssueRequest{Subject: "u1", TenantID: "t1"})
	if err := engine.LogoutEverywhere(context.Background(), pair.AccessToken); err != nil {
		t.Fatalf("logout everywhere: %v", err)
	}

	if _, err := engine.Verify(context.Background(), pair.AccessToken); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential, got %v", err)
	}
	if _, err := engine.Refresh(context.Background(), pair.RefreshToken, ""); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential, got %v", err)
	}
}

func TestLogoutRejectsForgedToken(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	if err := engine.Logout(context.Background(), "not-a-token"); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential, got %v", err)
	}
}

func TestNilEngineIsSafe(t *testing.T) {
	var engine *Engine

	engine.Close()
	if got := engine.AuditDropped(); got != 0 {
		t.Fatalf("AuditDropped on nil engine = %d", got)
	}
	if _, err := engine.Verify(context.Background(), "x"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	if _, err := engine.Refresh(context.Background(), "x", ""); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	snap := engine.MetricsSnapshot()
	if len(snap.Counters) != 0 {
		t.Fatal("expected empty snapshot from nil engine")
	}
}
