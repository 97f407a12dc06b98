package identity

import (
	"context"
	"sync"

	"github.com/ecoms/ecoms_account/internal/apperr"
)

type memoryRepository struct {
	mu      sync.RWMutex
	byID    map[string]Identity
	byEmail map[string]string
}

// NewMemoryRepository builds an in-memory customer store for tests and local
// development. Email uniqueness is enforced under the write lock, mirroring
// the unique index of the Postgres schema.
func NewMemoryRepository() Repository {
	return &memoryRepository{byID: make(map[string]Identity), byEmail: make(map[string]string)}
}

func (r *memoryRepository) Create(_ context.Context, identity Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byEmail[identity.Email]; exists {
		return apperr.ErrEmailTaken
	}
	r.byID[identity.ID] = identity
	r.byEmail[identity.Email] = identity.ID
	return nil
}

func (r *memoryRepository) FindByEmail(_ context.Context, email string) (Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[email]
	if !ok {
		return Identity{}, apperr.ErrNotFound
	}
	return r.byID[id], nil
}

func (r *memoryRepository) FindByID(_ context.Context, id string) (Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	identity, ok := r.byID[id]
	if !ok {
		return Identity{}, apperr.ErrNotFound
	}
	return identity, nil
}

func (r *memoryRepository) FindProfileByID(ctx context.Context, id string) (Profile, error) {
	identity, err := r.FindByID(ctx, id)
	if err != nil {
		return Profile{}, err
	}
	return identity.Profile(), nil
}

func (r *memoryRepository) Update(_ context.Context, identity Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.byID[identity.ID]
	if !ok {
		return apperr.ErrNotFound
	}
	if owner, taken := r.byEmail[identity.Email]; taken && owner != identity.ID {
		return apperr.ErrEmailTaken
	}
	delete(r.byEmail, current.Email)
	r.byEmail[identity.Email] = identity.ID
	r.byID[identity.ID] = identity
	return nil
}

func (r *memoryRepository) UpdatePasswordHash(_ context.Context, id, oldHash, newHash string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.byID[id]
	if !ok || current.PasswordHash != oldHash {
		return false, nil
	}
	current.PasswordHash = newHash
	r.byID[id] = current
	return true, nil
}

func (r *memoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.byID[id]
	if !ok {
		return apperr.ErrNotFound
	}
	delete(r.byEmail, current.Email)
	delete(r.byID, id)
	return nil
}
