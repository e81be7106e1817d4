package auth

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestNewIssuer_RequiresSecret(t *testing.T) {
	if _, err := NewIssuer("", time.Hour); !errors.Is(err, ErrNoSecret) {
		t.Fatalf("expected ErrNoSecret, got %v", err)
	}
	if _, err := NewIssuer("s3cret", 0); err == nil {
		t.Fatal("expected error for zero ttl")
	}
}

func TestIssuer_IssueAndVerify(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	iss, err := NewIssuer("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	iss = iss.WithClock(func() time.Time { return now })

	tok, err := iss.Issue(42)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	claims, err := iss.Verify(tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.SubjectID != 42 {
		t.Fatalf("expected subject 42, got %d", claims.SubjectID)
	}
	if !claims.IssuedAt.Equal(now) {
		t.Fatalf("expected issued-at %v, got %v", now, claims.IssuedAt)
	}
	if !claims.ExpiresAt.Equal(now.Add(time.Hour)) {
		t.Fatalf("expected expiry %v, got %v", now.Add(time.Hour), claims.ExpiresAt)
	}
}

func TestIssuer_Verify_Expired(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	base, _ := NewIssuer("test-secret", time.Minute)

	tok, err := base.WithClock(func() time.Time { return now }).Issue(7)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	later := base.WithClock(func() time.Time { return now.Add(2 * time.Minute) })
	_, err = later.Verify(tok)
	if !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
}

func TestIssuer_Verify_Rejects(t *testing.T) {
	iss, _ := NewIssuer("test-secret", time.Hour)
	other, _ := NewIssuer("other-secret", time.Hour)

	foreign, err := other.Issue(1)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	good, _ := iss.Issue(1)
	parts := strings.Split(good, ".")
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]

	tests := []struct {
		name  string
		token string
	}{
		{"wrong secret", foreign},
		{"malformed", "not-a-jwt"},
		{"empty", ""},
		{"tampered payload", tampered},
		{"alg none", "eyJhbGciOiJub25lIiwidHlwIjoiSldUIn0.eyJzdWIiOiIxIn0."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := iss.Verify(tt.token)
			if !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}
