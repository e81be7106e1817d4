package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/diagnosis/tour-bookings/internal/domain"
	"github.com/diagnosis/tour-bookings/pkg/events"
	"github.com/diagnosis/tour-bookings/pkg/logger"
)

var errIncorrectCredentials = domain.Unauthenticated("Incorrect email or password")

// Session is what signup, login and password changes hand back: the user and
// a freshly issued bearer token.
type Session struct {
	User  *domain.User
	Token string
}

type AuthService struct {
	users      UserStore
	hasher     PasswordHasher
	issuer     TokenIssuer
	events     events.Publisher
	accountURL string
	now        func() time.Time
}

func NewAuthService(users UserStore, hasher PasswordHasher, issuer TokenIssuer, pub events.Publisher, accountURL string) *AuthService {
	return &AuthService{
		users:      users,
		hasher:     hasher,
		issuer:     issuer,
		events:     pub,
		accountURL: accountURL,
		now:        time.Now,
	}
}

func (s *AuthService) Signup(ctx context.Context, req *domain.SignupRequest) (*Session, error) {
	req.Normalize()
	if err := domain.Validate(req); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(ctx, req.Password)
	if err != nil {
		return nil, err
	}

	// role is never taken from the request
	user, err := s.users.Create(ctx, domain.CreateUserParams{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         domain.RoleUser,
	})
	if err != nil {
		return nil, err
	}

	s.publishWelcome(ctx, user)
	return s.session(user)
}

func (s *AuthService) Login(ctx context.Context, req *domain.LoginRequest) (*Session, error) {
	req.Normalize()
	if req.Email == "" || req.Password == "" {
		return nil, domain.Validation("Please provide email and password!")
	}

	user, err := s.users.FindByEmail(ctx, req.Email, true)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, errIncorrectCredentials
	}
	if err != nil {
		return nil, err
	}

	ok, err := s.hasher.Verify(ctx, req.Password, user.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errIncorrectCredentials
	}

	if s.hasher.NeedsRehash(user.PasswordHash) {
		s.upgradeHash(ctx, user, req.Password)
	}
	return s.session(user)
}

// upgradeHash re-hashes with the current parameters. It does not touch
// password_changed_at, so existing tokens stay valid. A password changed since
// the login read the row wins.
func (s *AuthService) upgradeHash(ctx context.Context, user *domain.User, plaintext string) {
	hash, err := s.hasher.Hash(ctx, plaintext)
	if err != nil {
		logger.WarnContext(ctx, "Password rehash failed", "user_id", user.ID, "error", err)
		return
	}
	ok, err := s.users.UpdatePasswordHash(ctx, user.ID, user.PasswordHash, hash, nil)
	if err != nil {
		logger.WarnContext(ctx, "Saving upgraded password hash failed", "user_id", user.ID, "error", err)
		return
	}
	if !ok {
		logger.InfoContext(ctx, "Password changed during login, rehash skipped", "user_id", user.ID)
		return
	}
	user.PasswordHash = hash
	logger.InfoContext(ctx, "Password hash upgraded", "user_id", user.ID)
}

func (s *AuthService) UpdatePassword(ctx context.Context, userID int64, req *domain.UpdatePasswordRequest) (*Session, error) {
	if err := domain.Validate(req); err != nil {
		return nil, err
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	ok, err := s.hasher.Verify(ctx, req.PasswordCurrent, user.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.Unauthenticated("Your current password is wrong.")
	}

	hash, err := s.hasher.Hash(ctx, req.Password)
	if err != nil {
		return nil, err
	}
	now := s.now()
	swapped, err := s.users.UpdatePasswordHash(ctx, user.ID, user.PasswordHash, hash, &now)
	if err != nil {
		return nil, err
	}
	if !swapped {
		// changed by another request after we verified the current one
		return nil, domain.Unauthenticated("Your current password is wrong.")
	}
	user.SetPassword(hash, now)
	return s.session(user)
}

func (s *AuthService) UpdateMe(ctx context.Context, userID int64, req *domain.UpdateMeRequest) (*domain.User, error) {
	if req.Password != nil || req.PasswordConfirm != nil {
		return nil, domain.Validation("This route is not for password updates. Please use /updateMyPassword.")
	}
	if req.Role != nil {
		return nil, domain.Forbidden("You are not allowed to change your role.")
	}
	if err := domain.Validate(req); err != nil {
		return nil, err
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		user.Name = *req.Name
	}
	if req.Email != nil {
		user.Email = domain.NormalizeEmail(*req.Email)
	}
	if err := user.Validate(); err != nil {
		return nil, err
	}
	if err := s.users.UpdateProfile(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// DeleteMe deactivates the account. The row stays; finders stop seeing it.
func (s *AuthService) DeleteMe(ctx context.Context, userID int64) error {
	return s.users.Deactivate(ctx, userID)
}

func (s *AuthService) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.NotFound("No user found with that ID")
	}
	return user, err
}

func (s *AuthService) ListUsers(ctx context.Context) ([]domain.User, error) {
	return s.users.List(ctx)
}

func (s *AuthService) session(user *domain.User) (*Session, error) {
	token, err := s.issuer.Issue(user.ID)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &Session{User: user, Token: token}, nil
}

func (s *AuthService) publishWelcome(ctx context.Context, user *domain.User) {
	ev := events.NotificationEvent{
		Template:  events.TemplateWelcome,
		Recipient: user.Email,
		Name:      user.Name,
		Data:      map[string]string{"url": s.accountURL},
	}
	if err := s.events.Publish(ctx, events.NotifySend, ev); err != nil {
		logger.WarnContext(ctx, "Failed to publish welcome notification", "user_id", user.ID, "error", err)
	}
}
