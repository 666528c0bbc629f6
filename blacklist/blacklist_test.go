package blacklist

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/goSession/cache"
)

type failingCache struct{}

func (failingCache) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("backend down")
}
func (failingCache) Set(context.Context, string, string, time.Duration) error {
	return errors.New("backend down")
}
func (failingCache) Delete(context.Context, string) error {
	return errors.New("backend down")
}

func TestAddAndContains(t *testing.T) {
	ctx := context.Background()
	bl := New(cache.NewMemory(), FailClosed, nil)

	if bl.Contains(ctx, "tok1") {
		t.Fatal("fresh token must not be blacklisted")
	}
	if err := bl.Add(ctx, "tok1", time.Minute); err != nil {
		t.Fatalf("add: %v", err)
	}
	if !bl.Contains(ctx, "tok1") {
		t.Fatal("expected token to be blacklisted")
	}
}

func TestAddSkipsExpiredTokens(t *testing.T) {
	ctx := context.Background()
	mem := cache.NewMemory()
	bl := New(mem, FailClosed, nil)

	if err := bl.Add(ctx, "tok1", -time.Second); err != nil {
		t.Fatalf("add: %v", err)
	}
	if mem.Len() != 0 {
		t.Fatal("expired token must not be written")
	}
}

func TestPolicyOnBackendFailure(t *testing.T) {
	ctx := context.Background()

	var warned bool
	closed := New(failingCache{}, FailClosed, func(string, ...any) { warned = true })
	if !closed.Contains(ctx, "tok1") {
		t.Fatal("fail-closed must treat lookup failure as blacklisted")
	}
	if !warned {
		t.Fatal("expected warn hook to fire")
	}

	open := New(failingCache{}, FailOpen, nil)
	if open.Contains(ctx, "tok1") {
		t.Fatal("fail-open must treat lookup failure as clean")
	}
}
