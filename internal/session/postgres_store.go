package session

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ecoms/ecoms_account/internal/apperr"
)

// Pool is the subset of pgxpool.Pool used by PostgresStore.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	insertSessionSQL = `INSERT INTO ecoms.user_sessions (sid, customer_id, created_at, expires_at, last_seen_at, authenticated)
        VALUES ($1, $2, $3, $4, $5, $6)`
	selectSessionSQL = `SELECT customer_id, created_at, expires_at, last_seen_at, authenticated
        FROM ecoms.user_sessions WHERE sid = $1 AND expires_at > $2`
	touchSessionSQL = `UPDATE ecoms.user_sessions SET last_seen_at = $1
        WHERE sid = $2 AND expires_at > $1
        RETURNING customer_id, created_at, expires_at, last_seen_at, authenticated`
	slideSessionSQL = `UPDATE ecoms.user_sessions SET last_seen_at = $1, expires_at = $2
        WHERE sid = $3 AND expires_at > $1
        RETURNING customer_id, created_at, expires_at, last_seen_at, authenticated`
	deleteSessionSQL = `DELETE FROM ecoms.user_sessions WHERE sid = $1`
	pruneSessionsSQL = `DELETE FROM ecoms.user_sessions WHERE expires_at <= $1`
)

// PostgresStore keeps sessions in the ecoms.user_sessions table.
type PostgresStore struct {
	db     Pool
	policy Policy
	opts   options
}

// NewPostgresStore builds a Postgres-backed store.
func NewPostgresStore(db Pool, policy Policy, opts ...Option) *PostgresStore {
	return &PostgresStore{db: db, policy: policy, opts: buildOptions(opts)}
}

func (p *PostgresStore) Create(ctx context.Context, ref Ref) (Session, error) {
	s, err := newSession(ref, p.opts.now(), p.policy)
	if err != nil {
		return Session{}, err
	}
	_, err = p.db.Exec(ctx, insertSessionSQL,
		storageKey(s.ID), s.IdentityRef.IdentityID, s.CreatedAt, s.ExpiresAt, s.LastSeenAt, s.Authenticated)
	if err != nil {
		return Session{}, apperr.Store("session", "insert session", err)
	}
	return s, nil
}

func (p *PostgresStore) Read(ctx context.Context, token string) (Session, bool, error) {
	if !wellFormed(token) {
		return Session{}, false, nil
	}
	row := p.db.QueryRow(ctx, selectSessionSQL, storageKey(token), p.opts.now().UTC())
	return scanSession(row, token, "read session")
}

func (p *PostgresStore) Touch(ctx context.Context, token string) (Session, bool, error) {
	if !wellFormed(token) {
		return Session{}, false, nil
	}
	now := p.opts.now().UTC()
	var row pgx.Row
	if p.policy.Sliding {
		row = p.db.QueryRow(ctx, slideSessionSQL, now, now.Add(p.policy.ttl()), storageKey(token))
	} else {
		row = p.db.QueryRow(ctx, touchSessionSQL, now, storageKey(token))
	}
	return scanSession(row, token, "touch session")
}

func scanSession(row pgx.Row, token, op string) (Session, bool, error) {
	var s Session
	var created, expires, seenAt time.Time
	if err := row.Scan(&s.IdentityRef.IdentityID, &created, &expires, &seenAt, &s.Authenticated); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Session{}, false, nil
		}
		return Session{}, false, apperr.Store("session", op, err)
	}
	s.ID = token
	s.CreatedAt = created.UTC()
	s.ExpiresAt = expires.UTC()
	s.LastSeenAt = seenAt.UTC()
	return s, true, nil
}

func (p *PostgresStore) Destroy(ctx context.Context, token string) error {
	if _, err := p.db.Exec(ctx, deleteSessionSQL, storageKey(token)); err != nil {
		return apperr.Store("session", "delete session", err)
	}
	return nil
}

func (p *PostgresStore) Prune(ctx context.Context) (int64, error) {
	cmd, err := p.db.Exec(ctx, pruneSessionsSQL, p.opts.now().UTC())
	if err != nil {
		return 0, apperr.Store("session", "prune sessions", err)
	}
	return cmd.RowsAffected(), nil
}
