package domain

import (
	"strings"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleGuide     Role = "guide"
	RoleLeadGuide Role = "lead-guide"
	RoleAdmin     Role = "admin"
)

func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleUser, RoleGuide, RoleLeadGuide, RoleAdmin:
		return Role(s), true
	default:
		return "", false
	}
}

// RoleSet is the allow-list a route is registered with.
type RoleSet map[Role]struct{}

func NewRoleSet(roles ...Role) RoleSet {
	set := make(RoleSet, len(roles))
	for _, r := range roles {
		set[r] = struct{}{}
	}
	return set
}

func (s RoleSet) Contains(r Role) bool {
	_, ok := s[r]
	return ok
}

// User is the persisted identity. PasswordHash and the reset fields never
// leave the process; use Public for any outward representation.
type User struct {
	ID                     int64
	Name                   string
	Email                  string
	Photo                  string
	Role                   Role
	PasswordHash           string
	PasswordChangedAt      *time.Time
	PasswordResetTokenHash *string
	PasswordResetExpires   *time.Time
	Active                 bool
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// ChangedPasswordAfter reports whether the password was changed after a token
// issued at issuedAt. Comparison is at the one-second resolution of JWT iat,
// so a change later in the same second as iat leaves that token valid.
func (u *User) ChangedPasswordAfter(issuedAt time.Time) bool {
	if u.PasswordChangedAt == nil {
		return false
	}
	return u.PasswordChangedAt.Unix() > issuedAt.Unix()
}

// SetPassword stores a new digest, drops any pending reset token and stamps
// the change time.
func (u *User) SetPassword(hash string, now time.Time) {
	u.PasswordHash = hash
	u.PasswordResetTokenHash = nil
	u.PasswordResetExpires = nil
	changed := now.UTC()
	u.PasswordChangedAt = &changed
}

func (u *User) SetResetToken(tokenHash string, expires time.Time) {
	exp := expires.UTC()
	u.PasswordResetTokenHash = &tokenHash
	u.PasswordResetExpires = &exp
}

func (u *User) ClearResetToken() {
	u.PasswordResetTokenHash = nil
	u.PasswordResetExpires = nil
}

// Validate checks the stored record itself, not a request payload.
func (u *User) Validate() error {
	if strings.TrimSpace(u.Name) == "" {
		return Validation("Please, tell us your name!")
	}
	if !IsValidEmail(u.Email) {
		return Validation("Please, provide a valid email")
	}
	if _, ok := ParseRole(string(u.Role)); !ok {
		return Validation("Invalid role")
	}
	if u.PasswordHash == "" {
		return Validation("Please, provide a password")
	}
	return nil
}

type PublicUser struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Photo string `json:"photo"`
	Role  Role   `json:"role"`
}

func (u *User) Public() *PublicUser {
	return &PublicUser{
		ID:    u.ID,
		Name:  u.Name,
		Email: u.Email,
		Photo: u.Photo,
		Role:  u.Role,
	}
}

type CreateUserParams struct {
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	ChangedAt    *time.Time
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
