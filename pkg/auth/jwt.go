package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("auth: invalid token")
	ErrExpiredToken = errors.New("auth: token expired")
	ErrNoSecret     = errors.New("auth: signing secret is empty")
)

const audience = "tour-bookings-api"

// Claims is the verified content of a bearer token.
type Claims struct {
	SubjectID int64
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Issuer signs and verifies HS256 bearer tokens with a process-wide secret.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration) (*Issuer, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("auth: token ttl must be positive, got %s", ttl)
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// WithClock returns a copy of the issuer reading time from now.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	cp := *i
	cp.now = now
	return &cp
}

func (i *Issuer) TTL() time.Duration { return i.ttl }

func (i *Issuer) Issue(subjectID int64) (string, error) {
	now := i.now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(subjectID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		Audience:  []string{audience},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

// Verify checks signature and expiry. It never touches storage.
func (i *Issuer) Verify(raw string) (*Claims, error) {
	var rc jwt.RegisteredClaims
	tok, err := jwt.ParseWithClaims(raw, &rc, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(audience),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrExpiredToken, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !tok.Valid || rc.IssuedAt == nil {
		return nil, ErrInvalidToken
	}

	sub, err := strconv.ParseInt(rc.Subject, 10, 64)
	if err != nil || sub <= 0 {
		return nil, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}

	return &Claims{
		SubjectID: sub,
		IssuedAt:  rc.IssuedAt.Time,
		ExpiresAt: rc.ExpiresAt.Time,
	}, nil
}
