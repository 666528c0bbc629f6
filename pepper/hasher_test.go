package pepper

import (
	"bytes"
	"errors"
	"testing"
)

func testPepper() []byte {
	return bytes.Repeat([]byte{0xA5}, 32)
}

func TestNewRejectsBadPeppers(t *testing.T) {
	if _, err := New(bytes.Repeat([]byte{1}, 31)); !errors.Is(err, ErrPepperTooShort) {
		t.Fatalf("expected ErrPepperTooShort, got %v", err)
	}
	if _, err := New(bytes.Repeat([]byte{1}, 65)); !errors.Is(err, ErrPepperTooLong) {
		t.Fatalf("expected ErrPepperTooLong, got %v", err)
	}
	if _, err := New(bytes.Repeat([]byte{1}, 64)); err != nil {
		t.Fatalf("expected 64-byte pepper to be accepted: %v", err)
	}
}

func TestSumIsDeterministicAndKeyed(t *testing.T) {
	h1, err := New(testPepper())
	if err != nil {
		t.Fatalf("new hasher: %v", err)
	}
	h2, err := New(bytes.Repeat([]byte{0x5A}, 32))
	if err != nil {
		t.Fatalf("new hasher: %v", err)
	}

	a := h1.Sum("device-secret")
	b := h1.Sum("device-secret")
	if !Match(a, b) {
		t.Fatal("same secret under same pepper must match")
	}

	c := h1.Sum("other-secret")
	if Match(a, c) {
		t.Fatal("different secrets must not match")
	}

	d := h2.Sum("device-secret")
	if Match(a, d) {
		t.Fatal("same secret under different peppers must not match")
	}
}

func TestNewCopiesPepper(t *testing.T) {
	raw := testPepper()
	h, err := New(raw)
	if err != nil {
		t.Fatalf("new hasher: %v", err)
	}
	before := h.Sum("device-secret")

	for i := range raw {
		raw[i] = 0
	}
	after := h.Sum("device-secret")
	if !Match(before, after) {
		t.Fatal("mutating the caller's pepper slice must not affect the hasher")
	}
}
