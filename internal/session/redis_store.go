package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ecoms/ecoms_account/internal/apperr"
)

const redisKeyPrefix = "session:v1:"

type redisRecord struct {
	IdentityID    string    `json:"identity_id"`
	CreatedAt     time.Time `json:"created_at"`
	ExpiresAt     time.Time `json:"expires_at"`
	LastSeenAt    time.Time `json:"last_seen_at"`
	Authenticated bool      `json:"authenticated"`
}

// RedisStore keeps sessions as JSON values whose key TTL matches the
// remaining lifetime. Durability across restarts depends on the server's
// persistence settings (AOF or RDB).
type RedisStore struct {
	client redis.UniversalClient
	policy Policy
	opts   options
}

// NewRedisStore builds a Redis-backed store.
func NewRedisStore(client redis.UniversalClient, policy Policy, opts ...Option) *RedisStore {
	return &RedisStore{client: client, policy: policy, opts: buildOptions(opts)}
}

func (r *RedisStore) Create(ctx context.Context, ref Ref) (Session, error) {
	s, err := newSession(ref, r.opts.now(), r.policy)
	if err != nil {
		return Session{}, err
	}
	payload, err := encodeRecord(s)
	if err != nil {
		return Session{}, err
	}
	ok, err := r.client.SetNX(ctx, redisKeyPrefix+storageKey(s.ID), payload, r.policy.ttl()).Result()
	if err != nil {
		return Session{}, apperr.Store("session", "redis create", err)
	}
	if !ok {
		return Session{}, apperr.Store("session", "redis create", errors.New("session key collision"))
	}
	return s, nil
}

func (r *RedisStore) Read(ctx context.Context, token string) (Session, bool, error) {
	if !wellFormed(token) {
		return Session{}, false, nil
	}
	key := redisKeyPrefix + storageKey(token)
	raw, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, false, nil
	}
	if err != nil {
		return Session{}, false, apperr.Store("session", "redis read", err)
	}
	var rec redisRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		// An undecodable value can never authenticate anyone.
		r.client.Del(ctx, key)
		return Session{}, false, nil
	}
	s := rec.session(token)
	if s.ExpiredAt(r.opts.now()) {
		r.client.Del(ctx, key)
		return Session{}, false, nil
	}
	return s, true, nil
}

func (r *RedisStore) Touch(ctx context.Context, token string) (Session, bool, error) {
	s, ok, err := r.Read(ctx, token)
	if err != nil || !ok {
		return Session{}, false, err
	}
	now := r.opts.now().UTC()
	s.LastSeenAt = now
	args := redis.SetArgs{Mode: "XX", KeepTTL: true}
	if r.policy.Sliding {
		s.ExpiresAt = now.Add(r.policy.ttl())
		args = redis.SetArgs{Mode: "XX", TTL: r.policy.ttl()}
	}
	payload, err := encodeRecord(s)
	if err != nil {
		return Session{}, false, err
	}
	// XX keeps a concurrent Destroy from being undone.
	err = r.client.SetArgs(ctx, redisKeyPrefix+storageKey(token), payload, args).Err()
	if errors.Is(err, redis.Nil) {
		return Session{}, false, nil
	}
	if err != nil {
		return Session{}, false, apperr.Store("session", "redis touch", err)
	}
	return s, true, nil
}

func (r *RedisStore) Destroy(ctx context.Context, token string) error {
	if err := r.client.Del(ctx, redisKeyPrefix+storageKey(token)).Err(); err != nil {
		return apperr.Store("session", "redis destroy", err)
	}
	return nil
}

// Prune is a no-op: Redis evicts expired keys itself.
func (r *RedisStore) Prune(context.Context) (int64, error) {
	return 0, nil
}

func encodeRecord(s Session) ([]byte, error) {
	payload, err := json.Marshal(redisRecord{
		IdentityID:    s.IdentityRef.IdentityID,
		CreatedAt:     s.CreatedAt,
		ExpiresAt:     s.ExpiresAt,
		LastSeenAt:    s.LastSeenAt,
		Authenticated: s.Authenticated,
	})
	if err != nil {
		return nil, fmt.Errorf("encode session: %w", err)
	}
	return payload, nil
}

func (rec redisRecord) session(token string) Session {
	return Session{
		ID:            token,
		IdentityRef:   Ref{IdentityID: rec.IdentityID},
		CreatedAt:     rec.CreatedAt.UTC(),
		ExpiresAt:     rec.ExpiresAt.UTC(),
		LastSeenAt:    rec.LastSeenAt.UTC(),
		Authenticated: rec.Authenticated,
	}
}
