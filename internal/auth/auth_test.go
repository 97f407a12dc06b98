package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ecoms/ecoms_account/internal/apperr"
	"github.com/ecoms/ecoms_account/internal/identity"
	"github.com/ecoms/ecoms_account/internal/password"
	"github.com/ecoms/ecoms_account/internal/session"
)

var errBackend = errors.New("backend unavailable")

// spyHasher counts dummy verifications of the wrapped hasher.
type spyHasher struct {
	*password.Bcrypt
	mu      sync.Mutex
	dummies int
}

func (s *spyHasher) VerifyDummy(plaintext string) {
	s.mu.Lock()
	s.dummies++
	s.mu.Unlock()
	s.Bcrypt.VerifyDummy(plaintext)
}

func (s *spyHasher) dummyCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dummies
}

type failingRepo struct {
	identity.Repository
	err error
}

func (f failingRepo) FindByEmail(context.Context, string) (identity.Identity, error) {
	return identity.Identity{}, apperr.Store("identity", "find by email", f.err)
}

func (f failingRepo) FindProfileByID(context.Context, string) (identity.Profile, error) {
	return identity.Profile{}, apperr.Store("identity", "find profile", f.err)
}

type failingStore struct {
	session.Store
	err error
}

func (f failingStore) Read(context.Context, string) (session.Session, bool, error) {
	return session.Session{}, false, apperr.Store("session", "read", f.err)
}

func (f failingStore) Create(context.Context, session.Ref) (session.Session, error) {
	return session.Session{}, apperr.Store("session", "create", f.err)
}

// destroyFailingStore is a working store whose Destroy always fails.
type destroyFailingStore struct {
	session.Store
	err error
}

func (f destroyFailingStore) Destroy(context.Context, string) error {
	return apperr.Store("session", "delete", f.err)
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	policy   session.Policy
	repo     identity.Repository
	hasher   *spyHasher
	store    *session.MemoryStore
	clock    *testClock
	strategy *LocalStrategy
	codec    *Codec
	guard    *Guard
	service  *Service
	accounts *identity.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithPolicy(t, session.DefaultPolicy())
}

func newFixtureWithPolicy(t *testing.T, policy session.Policy) *fixture {
	t.Helper()
	bc, err := password.NewBcrypt(password.MinCost)
	require.NoError(t, err)

	f := &fixture{
		policy: policy,
		repo:   identity.NewMemoryRepository(),
		hasher: &spyHasher{Bcrypt: bc},
		clock:  newTestClock(),
	}
	f.store = session.NewMemoryStore(policy, session.WithClock(f.clock.Now))
	f.strategy = NewLocalStrategy(f.repo, f.hasher, nil)
	f.codec = NewCodec(f.repo)
	f.guard = NewGuard(f.store, f.codec, nil, nil)
	f.service = NewService(f.strategy, f.codec, f.store, nil, nil)
	f.accounts = identity.NewService(f.repo, f.hasher, nil)
	return f
}

func (f *fixture) signUp(t *testing.T, email, pw string) identity.Profile {
	t.Helper()
	p, err := f.accounts.SignUp(context.Background(), identity.SignUpInput{
		Email:     email,
		Password:  pw,
		FirstName: "Ada",
		LastName:  "Lovelace",
	})
	require.NoError(t, err)
	return p
}
