// Package auth verifies customer credentials and manages the session that
// carries an authenticated customer between requests.
package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/ecoms/ecoms_account/internal/apperr"
	"github.com/ecoms/ecoms_account/internal/identity"
	"github.com/ecoms/ecoms_account/internal/logging"
	"github.com/ecoms/ecoms_account/internal/password"
)

// LocalStrategy authenticates an email and password pair against the
// identity store.
type LocalStrategy struct {
	repo   identity.Repository
	hasher password.Hasher
	logger *slog.Logger
}

// NewLocalStrategy creates a strategy. logger may be nil.
func NewLocalStrategy(repo identity.Repository, hasher password.Hasher, logger *slog.Logger) *LocalStrategy {
	if logger == nil {
		logger = logging.Discard()
	}
	return &LocalStrategy{repo: repo, hasher: hasher, logger: logger}
}

// Authenticate resolves the identity by email and verifies password against
// its stored hash. Unknown email and wrong password both reject with the same
// reason and both cost one bcrypt comparison.
func (s *LocalStrategy) Authenticate(ctx context.Context, email, pw string) Result {
	email = identity.NormalizeEmail(email)
	if email == "" || pw == "" || len(pw) > password.MaxBytes {
		s.hasher.VerifyDummy(pw)
		return rejected()
	}

	found, err := s.repo.FindByEmail(ctx, email)
	if errors.Is(err, apperr.ErrNotFound) {
		s.hasher.VerifyDummy(pw)
		return rejected()
	}
	if err != nil {
		return failed(err)
	}

	ok, err := s.hasher.Verify(pw, found.PasswordHash)
	if err != nil {
		return failed(err)
	}
	if !ok {
		return rejected()
	}

	if s.hasher.NeedsRehash(found.PasswordHash) {
		s.rehash(ctx, found, pw)
	}
	return authenticated(found.Profile())
}

// rehash upgrades a hash produced with an older cost. The write only lands
// if the stored hash is still the one just verified, so a password change
// committed meanwhile is kept. Failure leaves the old hash in place and does
// not affect the login.
func (s *LocalStrategy) rehash(ctx context.Context, found identity.Identity, pw string) {
	hash, err := s.hasher.Hash(pw)
	if err != nil {
		logging.LogError(s.logger, "password rehash failed", err, "identity_id", found.ID)
		return
	}
	swapped, err := s.repo.UpdatePasswordHash(ctx, found.ID, found.PasswordHash, hash)
	if err != nil {
		logging.LogError(s.logger, "password rehash not stored", err, "identity_id", found.ID)
		return
	}
	if !swapped {
		s.logger.Info("password rehash skipped, hash changed concurrently", "identity_id", found.ID)
		return
	}
	s.logger.Info("password hash upgraded", "identity_id", found.ID)
}
