package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ecoms/ecoms_account/internal/apperr"
	"github.com/ecoms/ecoms_account/internal/metrics"
	"github.com/ecoms/ecoms_account/internal/session"
)

func TestLoginThenGuard(t *testing.T) {
	f := newFixture(t)
	created := f.signUp(t, "a@x.io", "p1")
	ctx := context.Background()

	profile, sess, err := f.service.Login(ctx, "a@x.io", "p1")
	require.NoError(t, err)
	assert.Equal(t, created.ID, profile.ID)
	assert.Equal(t, created.ID, sess.IdentityRef.IdentityID)
	assert.True(t, sess.Authenticated)

	f.clock.Advance(time.Minute)
	got, err := f.guard.RequireAuthenticated(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)

	stored, ok, err := f.store.Read(ctx, sess.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, f.clock.Now(), stored.LastSeenAt)
}

func TestLoginRejectedCreatesNoSession(t *testing.T) {
	f := newFixture(t)
	f.signUp(t, "a@x.io", "p1")

	_, sess, err := f.service.Login(context.Background(), "a@x.io", "wrong")
	assert.ErrorIs(t, err, apperr.ErrInvalidCredentials)
	assert.Empty(t, sess.ID)

	n, err := f.store.Prune(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestLoginSessionStoreFailure(t *testing.T) {
	f := newFixture(t)
	f.signUp(t, "a@x.io", "p1")
	svc := NewService(f.strategy, f.codec, failingStore{err: errBackend}, nil, nil)

	_, _, err := svc.Login(context.Background(), "a@x.io", "p1")
	assert.ErrorIs(t, err, apperr.ErrStore)
}

func TestGuardRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.guard.RequireAuthenticated(ctx, "")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = f.guard.RequireAuthenticated(ctx, "not-a-token")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	token, err := session.NewToken()
	require.NoError(t, err)
	_, err = f.guard.RequireAuthenticated(ctx, token)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestGuardExpiredSession(t *testing.T) {
	f := newFixture(t)
	f.signUp(t, "a@x.io", "p1")
	ctx := context.Background()

	_, sess, err := f.service.Login(ctx, "a@x.io", "p1")
	require.NoError(t, err)

	f.clock.Advance(session.DefaultTTL)
	_, err = f.guard.RequireAuthenticated(ctx, sess.ID)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestGuardDestroysDanglingSession(t *testing.T) {
	f := newFixture(t)
	reg := prometheus.NewRegistry()
	m := metrics.NewAuth(reg)
	guard := NewGuard(f.store, f.codec, m, nil)
	created := f.signUp(t, "a@x.io", "p1")
	ctx := context.Background()

	_, sess, err := f.service.Login(ctx, "a@x.io", "p1")
	require.NoError(t, err)
	require.NoError(t, f.accounts.Delete(ctx, created.ID))

	_, err = guard.RequireAuthenticated(ctx, sess.ID)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, ok, err := f.store.Read(ctx, sess.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionsDestroyed.WithLabelValues(causeDangling)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GuardRejections.WithLabelValues(causeDangling)))
}

func TestGuardStoreFailureIsNotUnauthorized(t *testing.T) {
	f := newFixture(t)
	token, err := session.NewToken()
	require.NoError(t, err)

	guard := NewGuard(failingStore{err: errBackend}, f.codec, nil, nil)
	_, err = guard.RequireAuthenticated(context.Background(), token)
	assert.ErrorIs(t, err, apperr.ErrStore)
	assert.NotErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestLogoutDestroysOnlyThatSession(t *testing.T) {
	f := newFixture(t)
	f.signUp(t, "a@x.io", "p1")
	ctx := context.Background()

	_, first, err := f.service.Login(ctx, "a@x.io", "p1")
	require.NoError(t, err)
	_, second, err := f.service.Login(ctx, "a@x.io", "p1")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	require.NoError(t, f.service.Logout(ctx, first.ID))
	require.NoError(t, f.service.Logout(ctx, first.ID))
	require.NoError(t, f.service.Logout(ctx, ""))

	_, err = f.guard.RequireAuthenticated(ctx, first.ID)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	_, err = f.guard.RequireAuthenticated(ctx, second.ID)
	assert.NoError(t, err)
}

func TestConcurrentLoginsGetDistinctSessions(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newFixture(t)
	f.signUp(t, "a@x.io", "p1")

	const n = 8
	tokens := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, sess, err := f.service.Login(context.Background(), "a@x.io", "p1")
			if err == nil {
				tokens[i] = sess.ID
			}
		}(i)
	}
	wg.Wait()

	seen := make(map[string]struct{}, n)
	for _, tok := range tokens {
		require.NotEmpty(t, tok)
		seen[tok] = struct{}{}
	}
	assert.Len(t, seen, n)
}

func TestGuardAdmitReportsSlidingExtension(t *testing.T) {
	ctx := context.Background()

	t.Run("fixed", func(t *testing.T) {
		f := newFixture(t)
		f.signUp(t, "a@x.io", "p1")
		_, sess, err := f.service.Login(ctx, "a@x.io", "p1")
		require.NoError(t, err)

		f.clock.Advance(time.Hour)
		access, err := f.guard.Admit(ctx, sess.ID)
		require.NoError(t, err)
		assert.False(t, access.Extended)
		assert.Equal(t, sess.ExpiresAt, access.Session.ExpiresAt)
	})

	t.Run("sliding", func(t *testing.T) {
		f := newFixtureWithPolicy(t, session.Policy{TTL: 24 * time.Hour, Sliding: true})
		f.signUp(t, "a@x.io", "p1")
		_, sess, err := f.service.Login(ctx, "a@x.io", "p1")
		require.NoError(t, err)

		f.clock.Advance(23 * time.Hour)
		access, err := f.guard.Admit(ctx, sess.ID)
		require.NoError(t, err)
		assert.True(t, access.Extended)
		assert.Equal(t, sess.ID, access.Session.ID)
		assert.Equal(t, f.clock.Now().Add(24*time.Hour), access.Session.ExpiresAt)
	})
}
