// Package session owns server-side customer sessions: opaque token
// generation, the Store contract with its Postgres, Redis and in-memory
// backends, and the cookie that carries the token to the client.
package session

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"
)

const (
	// DefaultTTL is the fixed session lifetime counted from creation.
	DefaultTTL = 24 * time.Hour

	tokenBytes = 32
)

var tokenLength = base64.RawURLEncoding.EncodedLen(tokenBytes)

// Ref is the minimal durable payload of a session: the customer id only.
type Ref struct {
	IdentityID string
}

// Session binds an opaque token to an identity reference until ExpiresAt.
// ID holds the raw token and is only populated by Store.Create and Store.Read.
type Session struct {
	ID            string
	IdentityRef   Ref
	CreatedAt     time.Time
	ExpiresAt     time.Time
	LastSeenAt    time.Time
	Authenticated bool
}

// ExpiredAt reports whether the session is no longer valid at t.
func (s Session) ExpiredAt(t time.Time) bool {
	return !t.Before(s.ExpiresAt)
}

// Policy controls session lifetime.
type Policy struct {
	TTL time.Duration
	// Sliding makes Touch push ExpiresAt to now+TTL. Otherwise the lifetime
	// stays fixed from creation.
	Sliding bool
}

// DefaultPolicy is a fixed 24 hour lifetime.
func DefaultPolicy() Policy {
	return Policy{TTL: DefaultTTL}
}

func (p Policy) ttl() time.Duration {
	if p.TTL <= 0 {
		return DefaultTTL
	}
	return p.TTL
}

// Option configures a store.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides the time source of a store.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewToken returns 32 random bytes encoded as unpadded base64url.
func NewToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// wellFormed rejects values that could never have been issued, so they never
// reach a store.
func wellFormed(token string) bool {
	if len(token) != tokenLength {
		return false
	}
	_, err := base64.RawURLEncoding.DecodeString(token)
	return err == nil
}

// storageKey is the digest under which a token is persisted. Stores never
// keep the raw token.
func storageKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func newSession(ref Ref, now time.Time, p Policy) (Session, error) {
	token, err := NewToken()
	if err != nil {
		return Session{}, err
	}
	now = now.UTC()
	return Session{
		ID:            token,
		IdentityRef:   ref,
		CreatedAt:     now,
		ExpiresAt:     now.Add(p.ttl()),
		LastSeenAt:    now,
		Authenticated: true,
	}, nil
}
