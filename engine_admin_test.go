package gosession

import (
	"context"
	"errors"
	"testing"
)

func TestSessionCapEvictsOldest(t *testing.T) {
	engine, _, _ := newTestEngine(t, func(b *Builder) {
		cfg := testConfig()
		cfg.Session.MaxSessionsPerTenant = 2
		b.WithConfig(cfg)
	})

	pairs := make([]*TokenPair, 3)
	for i := range pairs {
		pairs[i] = mustIssue(t, engine, IssueRequest{Subject: "u1", TenantID: "t1"})
	}

	snap := engine.MetricsSnapshot()
	if got := snap.Counters[MetricSessionEvicted]; got != 1 {
		t.Fatalf("evicted metric = %d, want 1", got)
	}

	// Exactly one of the three families was revoked to honor the cap.
	alive := 0
	for _, pair := range pairs {
		if _, err := engine.Refresh(context.Background(), pair.RefreshToken, ""); err == nil {
			alive++
		} else if !errors.Is(err, ErrInvalidCredential) {
			t.Fatalf("unexpected refresh error: %v", err)
		}
	}
	if alive != 2 {
		t.Fatalf("expected 2 surviving families, got %d", alive)
	}
}

func TestSessionCapDoesNotEvictAcrossTenants(t *testing.T) {
	engine, _, tenants := newTestEngine(t, func(b *Builder) {
		cfg := testConfig()
		cfg.Session.MaxSessionsPerTenant = 1
		b.WithConfig(cfg)
	})
	tenants.put("t2", true, 1)

	first := mustIssue(t, engine, IssueRequest{Subject: "u1", TenantID: "t1"})
	other := mustIssue(t, engine, IssueRequest{Subject: "u2", TenantID: "t2"})

	// A third tenant-1 session evicts tenant 1's oldest, never t2's.
	mustIssue(t, engine, IssueRequest{Subject: "u1", TenantID: "t1"})

	if _, err := engine.Refresh(context.Background(), first.RefreshToken, ""); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("expected tenant-1 session evicted, got %v", err)
	}
	if _, err := engine.Refresh(context.Background(), other.RefreshToken, ""); err != nil {
		t.Fatalf("tenant-2 session should survive: %v", err)
	}
}

func TestRevokeFamilyIsIdempotent(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	pair := mustIssue(t, engine, IssueRequest{Subject: "u1", TenantID: "t1"})
	if err := engine.RevokeFamily(context.Background(), pair.FamilyID); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if err := engine.RevokeFamily(context.Background(), pair.FamilyID); err != nil {
		t.Fatalf("second revoke: %v", err)
	}

	if _, err := engine.Refresh(context.Background(), pair.RefreshToken, ""); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential, got %v", err)
	}
}

func TestRevokeTenantKillsEveryFamily(t *testing.T) {
	engine, _, tenants := newTestEngine(t)
	tenants.put("t2", true, 1)

	a := mustIssue(t, engine, IssueRequest{Subject: "u1", TenantID: "t1"})
	b := mustIssue(t, engine, IssueRequest{Subject: "u2", TenantID: "t1"})
	other := mustIssue(t, engine, IssueRequest{Subject: "u3", TenantID: "t2"})

	if err := engine.RevokeTenant(context.Background(), "t1"); err != nil {
		t.Fatalf("revoke tenant: %v", err)
	}

	for _, pair := range []*TokenPair{a, b} {
		if _, err := engine.Refresh(context.Background(), pair.RefreshToken, ""); !errors.Is(err, ErrInvalidCredential) {
			t.Fatalf("expected ErrInvalidCredential, got %v", err)
		}
		if _, err := engine.Verify(context.Background(), pair.AccessToken); !errors.Is(err, ErrInvalidCredential) {
			t.Fatalf("expected ErrInvalidCredential on verify, got %v", err)
		}
	}

	if _, err := engine.Verify(context.Background(), other.AccessToken); err != nil {
		t.Fatalf("other tenant should be untouched: %v", err)
	}

	snap := engine.MetricsSnapshot()
	if got := snap.Counters[MetricTenantRevocation]; got != 1 {
		t.Fatalf("tenant revocation metric = %d, want 1", got)
	}
	if got := snap.Counters[MetricSessionRevoked]; got != 2 {
		t.Fatalf("session revoked metric = %d, want 2", got)
	}
}

func TestAuditEventsForReuse(t *testing.T) {
	sink := NewChannelAuditSink(64)
	engine, _, _ := newTestEngine(t, func(b *Builder) {
		cfg := testConfig()
		cfg.Audit.Enabled = true
		cfg.Audit.BufferSize = 64
		b.WithConfig(cfg)
		b.WithAuditSink(sink)
	})

	pair := mustIssue(t, engine, IssueRequest{Subject: "u1", TenantID: "t1"})
	if _, err := engine.Refresh(context.Background(), pair.RefreshToken, ""); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if _, err := engine.Refresh(context.Background(), pair.RefreshToken, ""); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential, got %v", err)
	}

	engine.Close()

	var sawReuse bool
	for {
		select {
		case ev := <-sink.Events():
			if ev.EventType == "refresh_reuse_detected" {
				sawReuse = true
				if ev.Success {
					t.Fatal("reuse event marked successful")
				}
				if ev.FamilyID != pair.FamilyID {
					t.Fatalf("reuse event family = %q, want %q", ev.FamilyID, pair.FamilyID)
				}
			}
			continue
		default:
		}
		break
	}

	if !sawReuse {
		t.Fatal("expected a refresh_reuse_detected audit event")
	}
}
