// Package auth is the trust boundary between the extension agent and the
// multi-tenant store. Owner identity only ever comes out of a verified
// token's subject claim; a decoded-but-unverified token authenticates
// nothing and must never gate a privileged operation.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMissingToken means no bearer credential was presented.
	ErrMissingToken = errors.New("missing bearer token")
	// ErrInvalidToken means the credential failed signature, expiry, issuer
	// or audience verification.
	ErrInvalidToken = errors.New("invalid token")
	// ErrMissingSubject means the token verified but carries no subject claim
	// to derive an owner identity from.
	ErrMissingSubject = errors.New("token has no subject")
)

// Identity is a verified owner identity.
type Identity struct {
	OwnerID   string
	ExpiresAt time.Time
}

// Verifier checks HS256 bearer tokens against a shared secret.
type Verifier struct {
	secret   []byte
	issuer   string
	audience string
	leeway   time.Duration
	now      func() time.Time
}

// Option tweaks a Verifier.
type Option func(*Verifier)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(v *Verifier) { v.now = now }
}

func NewVerifier(secret, issuer, audience string, leeway time.Duration, opts ...Option) *Verifier {
	v := &Verifier{
		secret:   []byte(secret),
		issuer:   issuer,
		audience: audience,
		leeway:   leeway,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// VerifyHeader authenticates an Authorization header value and derives the
// owner identity from the token's subject claim.
func (v *Verifier) VerifyHeader(header string) (*Identity, error) {
	if header == "" {
		return nil, ErrMissingToken
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return nil, ErrMissingToken
	}
	return v.Verify(strings.TrimSpace(strings.TrimPrefix(header, "Bearer ")))
}

// Verify authenticates a raw token string.
func (v *Verifier) Verify(raw string) (*Identity, error) {
	if raw == "" {
		return nil, ErrMissingToken
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(v.leeway),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(v.audience))
	}

	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, parserOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, ErrMissingSubject
	}

	id := &Identity{OwnerID: claims.Subject}
	if claims.ExpiresAt != nil {
		id.ExpiresAt = claims.ExpiresAt.Time
	}
	return id, nil
}
