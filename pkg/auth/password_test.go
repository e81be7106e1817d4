package auth

import (
	"context"
	"strings"
	"testing"

	"github.com/diagnosis/tour-bookings/pkg/config"
	"golang.org/x/crypto/bcrypt"
)

// cheap parameters; production values come from config
var testArgon = config.Argon2Config{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

func TestHasher_RoundTrip(t *testing.T) {
	h := NewHasher(testArgon, 2)
	ctx := context.Background()

	digest, err := h.Hash(ctx, "secret123")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if strings.Contains(digest, "secret123") {
		t.Fatal("digest contains plaintext")
	}
	if !strings.HasPrefix(digest, "$argon2id$") {
		t.Fatalf("unexpected digest format %q", digest)
	}

	ok, err := h.Verify(ctx, "secret123", digest)
	if err != nil || !ok {
		t.Fatalf("verify correct password: ok=%v err=%v", ok, err)
	}
	ok, err = h.Verify(ctx, "wrong-pass", digest)
	if err != nil || ok {
		t.Fatalf("verify wrong password: ok=%v err=%v", ok, err)
	}
}

func TestHasher_SaltsEachHash(t *testing.T) {
	h := NewHasher(testArgon, 1)
	a, _ := h.Hash(context.Background(), "same-password")
	b, _ := h.Hash(context.Background(), "same-password")
	if a == b {
		t.Fatal("expected distinct digests for the same plaintext")
	}
}

func TestHasher_LegacyBcrypt(t *testing.T) {
	h := NewHasher(testArgon, 1)
	legacy, err := bcrypt.GenerateFromPassword([]byte("pass1234"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}

	ok, err := h.Verify(context.Background(), "pass1234", string(legacy))
	if err != nil || !ok {
		t.Fatalf("verify legacy: ok=%v err=%v", ok, err)
	}
	ok, _ = h.Verify(context.Background(), "nope", string(legacy))
	if ok {
		t.Fatal("legacy digest accepted wrong password")
	}
	if !h.NeedsRehash(string(legacy)) {
		t.Fatal("legacy digest should need rehash")
	}
}

func TestHasher_NeedsRehashOnParamChange(t *testing.T) {
	weak := NewHasher(testArgon, 1)
	digest, _ := weak.Hash(context.Background(), "pass1234")
	if weak.NeedsRehash(digest) {
		t.Fatal("digest made with current params should not need rehash")
	}

	stronger := testArgon
	stronger.Iterations = 2
	if !NewHasher(stronger, 1).NeedsRehash(digest) {
		t.Fatal("expected rehash after work factor change")
	}
}

func TestHasher_VerifyHonoursCancelledContext(t *testing.T) {
	h := NewHasher(testArgon, 1)
	digest, _ := h.Hash(context.Background(), "pass1234")

	ctx, cancel := context.WithCancel(context.Background())
	// hold the only slot so Verify has to wait
	if err := h.sem.Acquire(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	defer h.sem.Release(1)
	cancel()

	if _, err := h.Verify(ctx, "pass1234", digest); err == nil {
		t.Fatal("expected context error while waiting for a hashing slot")
	}
}
