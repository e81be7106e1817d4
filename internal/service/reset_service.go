package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/diagnosis/tour-bookings/internal/domain"
	"github.com/diagnosis/tour-bookings/internal/platform/mailer"
	"github.com/diagnosis/tour-bookings/pkg/events"
	"github.com/diagnosis/tour-bookings/pkg/logger"
)

var errBadResetToken = domain.InvalidOrExpiredToken("Token is invalid or has expired")

// ResetService runs the forgot/reset password flow. Only sha256(token) is
// stored; the raw token exists in the email and nowhere else.
type ResetService struct {
	users    UserStore
	hasher   PasswordHasher
	issuer   TokenIssuer
	sender   mailer.Sender
	ttl      time.Duration
	resetURL func(token string) string
	now      func() time.Time
	rand     io.Reader
}

func NewResetService(users UserStore, hasher PasswordHasher, issuer TokenIssuer, sender mailer.Sender, ttl time.Duration, resetURL func(string) string) *ResetService {
	return &ResetService{
		users:    users,
		hasher:   hasher,
		issuer:   issuer,
		sender:   sender,
		ttl:      ttl,
		resetURL: resetURL,
		now:      time.Now,
		rand:     rand.Reader,
	}
}

// RequestReset replaces any pending token with a new one and emails it. If
// the email cannot be sent the new token is withdrawn again.
func (s *ResetService) RequestReset(ctx context.Context, email string) error {
	email = domain.NormalizeEmail(email)
	if !domain.IsValidEmail(email) {
		return domain.Validation("Please, provide a valid email")
	}

	user, err := s.users.FindByEmail(ctx, email, true)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.NotFound("There is no user with that email address.")
	}
	if err != nil {
		return err
	}

	raw, err := s.newToken()
	if err != nil {
		return err
	}
	tokenHash := HashResetToken(raw)

	if err := s.users.SetResetToken(ctx, user.ID, tokenHash, s.now().Add(s.ttl)); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.NotFound("There is no user with that email address.")
		}
		return err
	}

	vars := map[string]string{"name": user.Name, "url": s.resetURL(raw)}
	if err := s.sender.Send(ctx, user.Email, events.TemplatePasswordReset, vars); err != nil {
		// the client may be gone; the rollback must still happen
		rbCtx := context.WithoutCancel(ctx)
		if rbErr := s.users.ClearResetToken(rbCtx, user.ID, tokenHash); rbErr != nil {
			logger.ErrorContext(ctx, "Rolling back reset token failed", "user_id", user.ID, "error", rbErr)
		}
		return domain.DeliveryFailed("There was an error sending the email. Try again later!", err)
	}

	logger.InfoContext(ctx, "Password reset token issued", "user_id", user.ID)
	return nil
}

// ConsumeReset sets a new password if rawToken is the pending, unexpired token
// and logs the user in. A token can be consumed once.
func (s *ResetService) ConsumeReset(ctx context.Context, rawToken string, req *domain.ResetPasswordRequest) (*Session, error) {
	if rawToken == "" {
		return nil, errBadResetToken
	}
	tokenHash := HashResetToken(rawToken)
	now := s.now()

	user, err := s.users.FindByResetToken(ctx, tokenHash, now)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, errBadResetToken
	}
	if err != nil {
		return nil, err
	}

	if err := domain.Validate(req); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(ctx, req.Password)
	if err != nil {
		return nil, err
	}

	ok, err := s.users.ConsumeResetToken(ctx, user.ID, tokenHash, hash, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		// replaced, expired or consumed since the lookup
		return nil, errBadResetToken
	}
	user.SetPassword(hash, now)

	token, err := s.issuer.Issue(user.ID)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	logger.InfoContext(ctx, "Password reset completed", "user_id", user.ID)
	return &Session{User: user, Token: token}, nil
}

func (s *ResetService) newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := io.ReadFull(s.rand, b); err != nil {
		return "", fmt.Errorf("generate reset token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func HashResetToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
