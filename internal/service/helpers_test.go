package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/diagnosis/tour-bookings/internal/domain"
	"github.com/diagnosis/tour-bookings/internal/repo/memory"
	"github.com/diagnosis/tour-bookings/pkg/auth"
	"github.com/diagnosis/tour-bookings/pkg/config"
)

var testArgon = config.Argon2Config{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

type sentMail struct {
	to       string
	template string
	vars     map[string]string
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (f *fakeSender) Send(_ context.Context, to, template string, vars map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMail{to: to, template: template, vars: vars})
	return nil
}

func (f *fakeSender) last(t *testing.T) sentMail {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		t.Fatal("no mail sent")
	}
	return f.sent[len(f.sent)-1]
}

type published struct {
	subject string
	data    any
}

type fakePublisher struct {
	mu     sync.Mutex
	events []published
}

func (f *fakePublisher) Publish(_ context.Context, subject string, data any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, published{subject: subject, data: data})
	return nil
}

func (f *fakePublisher) Close() error { return nil }

func (f *fakePublisher) count(subject string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.events {
		if e.subject == subject {
			n++
		}
	}
	return n
}

func newIssuer(t *testing.T) *auth.Issuer {
	t.Helper()
	iss, err := auth.NewIssuer("test-secret", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return iss
}

func newHasher() *auth.Hasher { return auth.NewHasher(testArgon, 4) }

func createUser(t *testing.T, users *memory.UsersRepo, h *auth.Hasher, email, password string, role domain.Role) *domain.User {
	t.Helper()
	hash, err := h.Hash(context.Background(), password)
	if err != nil {
		t.Fatal(err)
	}
	u, err := users.Create(context.Background(), domain.CreateUserParams{Name: "Test User", Email: email, PasswordHash: hash, Role: role})
	if err != nil {
		t.Fatal(err)
	}
	return u
}
