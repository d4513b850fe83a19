// Package verification issues and checks the signed links that confirm a
// booking's contact email address.
package verification

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("verification token is invalid or expired")

type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

type Signer struct {
	secret   []byte
	ttl      time.Duration
	linkBase string
	now      func() time.Time
}

type Option func(*Signer)

// WithClock overrides the signing and validation time.
func WithClock(now func() time.Time) Option {
	return func(s *Signer) {
		s.now = now
	}
}

func NewSigner(secret string, ttl time.Duration, linkBase string, opts ...Option) (*Signer, error) {
	if secret == "" {
		return nil, errors.New("verification secret is empty")
	}
	s := &Signer{
		secret:   []byte(secret),
		ttl:      ttl,
		linkBase: linkBase,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Token signs the pair of booking document id and email.
func (s *Signer) Token(bookingID, email string) (string, error) {
	now := s.now()
	claims := Claims{
		Email: strings.ToLower(email),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   bookingID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign verification token: %w", err)
	}
	return signed, nil
}

// Link returns the verification URL for the booking.
func (s *Signer) Link(bookingID, email string) (string, error) {
	token, err := s.Token(bookingID, email)
	if err != nil {
		return "", err
	}
	u, err := url.Parse(s.linkBase)
	if err != nil {
		return "", fmt.Errorf("parse verification link base: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Parse validates the token and returns its claims.
func (s *Signer) Parse(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Matches reports whether the claims were issued for the given address.
func (c *Claims) Matches(email string) bool {
	return strings.EqualFold(c.Email, email)
}
