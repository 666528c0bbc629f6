package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	gosession "github.com/MrEthical07/goSession"
)

func newTestEngine(t *testing.T) *gosession.Engine {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := gosession.DefaultConfig()
	cfg.JWT.SigningMethod = "hs256"
	cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.Audit.Enabled = false

	engine, err := gosession.New().WithConfig(cfg).WithRedis(rdb).Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	t.Cleanup(engine.Close)

	return engine
}

func issuePair(t *testing.T, engine *gosession.Engine, role string) *gosession.TokenPair {
	t.Helper()
	pair, err := engine.Issue(context.Background(), gosession.IssueRequest{
		Subject:  "u1",
		TenantID: "t1",
		Role:     role,
	})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	return pair
}

func TestRequireAuthPassesPrincipal(t *testing.T) {
	engine := newTestEngine(t)
	pair := issuePair(t, engine, "admin")

	var got gosession.Principal
	handler := RequireAuth(engine)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = gosession.PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got.Subject != "u1" || got.TenantID != "t1" || got.Role != "admin" {
		t.Fatalf("principal = %+v", got)
	}
}

func TestRequireAuthUniform401(t *testing.T) {
	engine := newTestEngine(t)

	handler := RequireAuth(engine)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Fatal("handler must not run")
	}))

	for _, header := range []string{"", "Bearer ", "Bearer garbage", "Basic Zm9v"} {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: status = %d, want 401", header, rec.Code)
		}
	}
}

func TestRequireRole(t *testing.T) {
	engine := newTestEngine(t)
	member := issuePair(t, engine, "member")
	admin := issuePair(t, engine, "admin")

	handler := RequireRole(engine, "admin")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer "+member.AccessToken)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("member status = %d, want 403", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer "+admin.AccessToken)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin status = %d, want 200", rec.Code)
	}
}
