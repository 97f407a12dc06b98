package session

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Store persists sessions keyed by their token. Expired sessions are
// reported as absent by Read.
type Store interface {
	// Create starts an authenticated session for ref and returns it with its token.
	Create(ctx context.Context, ref Ref) (Session, error)
	// Read returns the live session for token, or false when it is unknown or expired.
	Read(ctx context.Context, token string) (Session, bool, error)
	// Touch records activity on a live session and, under a sliding policy,
	// extends its expiry. It returns the session as stored afterwards, or
	// false when the session is absent, in which case nothing is written.
	Touch(ctx context.Context, token string) (Session, bool, error)
	// Destroy removes a session. Destroying an absent session is not an error.
	Destroy(ctx context.Context, token string) error
	// Prune deletes expired sessions and returns how many were removed.
	Prune(ctx context.Context) (int64, error)
}

// Backend names accepted by Open.
const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

// Open builds the store for backend. db is required for postgres and cache
// for redis.
func Open(backend string, db Pool, cache redis.UniversalClient, policy Policy, opts ...Option) (Store, error) {
	switch backend {
	case BackendPostgres, "":
		if db == nil {
			return nil, fmt.Errorf("postgres session backend requires a database")
		}
		return NewPostgresStore(db, policy, opts...), nil
	case BackendRedis:
		if cache == nil {
			return nil, fmt.Errorf("redis session backend requires a redis client")
		}
		return NewRedisStore(cache, policy, opts...), nil
	case BackendMemory:
		return NewMemoryStore(policy, opts...), nil
	default:
		return nil, fmt.Errorf("unknown session backend %q", backend)
	}
}
