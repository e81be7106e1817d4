package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/alexedwards/argon2id"
	"github.com/diagnosis/tour-bookings/pkg/config"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

// Hasher hashes passwords with argon2id. Accounts imported from the old
// document store carry bcrypt digests; those still verify and report
// NeedsRehash so login can upgrade them.
type Hasher struct {
	params *argon2id.Params
	sem    *semaphore.Weighted
}

func NewHasher(cfg config.Argon2Config, maxConcurrent int) *Hasher {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Hasher{
		params: &argon2id.Params{
			Memory:      cfg.Memory,
			Iterations:  cfg.Iterations,
			Parallelism: cfg.Parallelism,
			SaltLength:  cfg.SaltLength,
			KeyLength:   cfg.KeyLength,
		},
		sem: semaphore.NewWeighted(int64(maxConcurrent)),
	}
}

// Hash blocks while maxConcurrent hashes are already running; each argon2id
// run holds Memory KiB.
func (h *Hasher) Hash(ctx context.Context, plaintext string) (string, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer h.sem.Release(1)

	digest, err := argon2id.CreateHash(plaintext, h.params)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return digest, nil
}

// Verify compares in constant time. A malformed digest is an error, a wrong
// password is (false, nil).
func (h *Hasher) Verify(ctx context.Context, plaintext, digest string) (bool, error) {
	if digest == "" {
		return false, nil
	}
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return false, err
	}
	defer h.sem.Release(1)

	if isBcrypt(digest) {
		err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext))
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("verify bcrypt digest: %w", err)
		}
		return true, nil
	}

	ok, err := argon2id.ComparePasswordAndHash(plaintext, digest)
	if err != nil {
		return false, fmt.Errorf("verify argon2id digest: %w", err)
	}
	return ok, nil
}

func (h *Hasher) NeedsRehash(digest string) bool {
	if isBcrypt(digest) {
		return true
	}
	params, _, _, err := argon2id.DecodeHash(digest)
	if err != nil {
		return true
	}
	return params.Memory != h.params.Memory ||
		params.Iterations != h.params.Iterations ||
		params.Parallelism != h.params.Parallelism
}

func isBcrypt(digest string) bool {
	return strings.HasPrefix(digest, "$2a$") ||
		strings.HasPrefix(digest, "$2b$") ||
		strings.HasPrefix(digest, "$2y$")
}
