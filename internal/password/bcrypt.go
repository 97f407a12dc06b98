// Package password hashes and verifies customer passwords with bcrypt.
//
// Hashes use the modular-crypt form $2a$<cost>$<salt><digest>, so the cost
// and salt travel with the hash and verification needs no other parameters.
package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/ecoms/ecoms_account/internal/apperr"
)

const (
	// MinCost is the lowest accepted bcrypt work factor.
	MinCost = 10
	// MaxBytes is the longest plaintext bcrypt accepts.
	MaxBytes = 72

	dummyPlaintext = "ecoms-dummy-password-for-timing"
)

// Hasher hashes and verifies plaintext passwords.
type Hasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, stored string) (bool, error)
	VerifyDummy(plaintext string)
	NeedsRehash(stored string) bool
}

// Bcrypt implements Hasher with a fixed work factor.
type Bcrypt struct {
	cost  int
	dummy []byte
}

// NewBcrypt builds a hasher using the given work factor.
func NewBcrypt(cost int) (*Bcrypt, error) {
	if cost < MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost must be between %d and %d, got %d", MinCost, bcrypt.MaxCost, cost)
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte(dummyPlaintext), cost)
	if err != nil {
		return nil, apperr.Hashing("generate dummy hash", err)
	}
	return &Bcrypt{cost: cost, dummy: dummy}, nil
}

// Cost returns the configured work factor.
func (b *Bcrypt) Cost() int { return b.cost }

// Hash returns a freshly salted hash of plaintext.
func (b *Bcrypt) Hash(plaintext string) (string, error) {
	if plaintext == "" {
		return "", apperr.Validation("password is required")
	}
	if len(plaintext) > MaxBytes {
		return "", apperr.Validation("password must be at most %d bytes", MaxBytes)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), b.cost)
	if err != nil {
		return "", apperr.Hashing("hash", err)
	}
	return string(hash), nil
}

// Verify reports whether plaintext matches stored. A malformed stored hash is
// a hashing failure, never a mismatch.
func (b *Bcrypt) Verify(plaintext, stored string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(stored), []byte(plaintext))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, apperr.Hashing("verify", err)
	}
}

// VerifyDummy performs a full comparison against an internal hash and drops
// the result, so a lookup miss costs the same as a wrong password.
func (b *Bcrypt) VerifyDummy(plaintext string) {
	_ = bcrypt.CompareHashAndPassword(b.dummy, []byte(plaintext))
}

// NeedsRehash reports whether stored was produced with a lower cost than the
// one configured now.
func (b *Bcrypt) NeedsRehash(stored string) bool {
	cost, err := bcrypt.Cost([]byte(stored))
	if err != nil {
		return false
	}
	return cost < b.cost
}
