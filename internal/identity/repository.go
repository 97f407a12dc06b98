package identity

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ecoms/ecoms_account/internal/apperr"
)

// Repository persists customer identities. Lookups that match nothing return
// apperr.ErrNotFound.
type Repository interface {
	Create(ctx context.Context, identity Identity) error
	FindByEmail(ctx context.Context, email string) (Identity, error)
	FindByID(ctx context.Context, id string) (Identity, error)
	FindProfileByID(ctx context.Context, id string) (Profile, error)
	Update(ctx context.Context, identity Identity) error
	// UpdatePasswordHash replaces the hash only while it still equals
	// oldHash. It reports false when the hash changed in the meantime or the
	// customer is gone.
	UpdatePasswordHash(ctx context.Context, id, oldHash, newHash string) (bool, error)
	Delete(ctx context.Context, id string) error
}

// Pool is the subset of pgxpool.Pool used by PostgresRepository.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	insertCustomerSQL = `INSERT INTO ecoms.customer (id, email, password_hash, first_name, last_name, phone_number, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	selectByEmailSQL = `SELECT id, email, password_hash, first_name, last_name, phone_number, created_at, updated_at
        FROM ecoms.customer WHERE email = $1`
	selectByIDSQL = `SELECT id, email, password_hash, first_name, last_name, phone_number, created_at, updated_at
        FROM ecoms.customer WHERE id = $1`
	selectProfileByIDSQL = `SELECT id, email, first_name, last_name, phone_number, created_at, updated_at
        FROM ecoms.customer WHERE id = $1`
	updateCustomerSQL = `UPDATE ecoms.customer
        SET email = $1, password_hash = $2, first_name = $3, last_name = $4, phone_number = $5, updated_at = $6
        WHERE id = $7`
	swapPasswordHashSQL = `UPDATE ecoms.customer SET password_hash = $1
        WHERE id = $2 AND password_hash = $3`
	deleteCustomerSQL = `DELETE FROM ecoms.customer WHERE id = $1`
)

const domain = "identity"

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db Pool
}

// NewPostgresRepository builds a Postgres-backed identity repository.
func NewPostgresRepository(db Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new customer. The unique index on email decides races
// between concurrent sign-ups.
func (r *PostgresRepository) Create(ctx context.Context, identity Identity) error {
	id, err := uuid.Parse(identity.ID)
	if err != nil {
		return apperr.Validation("invalid identity id")
	}
	_, err = r.db.Exec(ctx, insertCustomerSQL,
		id, identity.Email, identity.PasswordHash, identity.FirstName, identity.LastName, identity.PhoneNumber,
		identity.CreatedAt.UTC(), identity.UpdatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.ErrEmailTaken
		}
		return apperr.Store(domain, "insert customer", err)
	}
	return nil
}

// FindByEmail fetches the full record for an already normalized email.
func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (Identity, error) {
	return r.findOne(ctx, "find customer by email", selectByEmailSQL, email)
}

// FindByID fetches the full record by identifier.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (Identity, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return Identity{}, apperr.ErrNotFound
	}
	return r.findOne(ctx, "find customer by id", selectByIDSQL, uid)
}

func (r *PostgresRepository) findOne(ctx context.Context, op, query string, arg any) (Identity, error) {
	var (
		created time.Time
		updated time.Time
		out     Identity
	)
	row := r.db.QueryRow(ctx, query, arg)
	if err := row.Scan(&out.ID, &out.Email, &out.PasswordHash, &out.FirstName, &out.LastName, &out.PhoneNumber, &created, &updated); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Identity{}, apperr.ErrNotFound
		}
		return Identity{}, apperr.Store(domain, op, err)
	}
	out.CreatedAt = created.UTC()
	out.UpdatedAt = updated.UTC()
	return out, nil
}

// FindProfileByID fetches the projected record. The password column is not selected.
func (r *PostgresRepository) FindProfileByID(ctx context.Context, id string) (Profile, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return Profile{}, apperr.ErrNotFound
	}
	var (
		created time.Time
		updated time.Time
		out     Profile
	)
	row := r.db.QueryRow(ctx, selectProfileByIDSQL, uid)
	if err := row.Scan(&out.ID, &out.Email, &out.FirstName, &out.LastName, &out.PhoneNumber, &created, &updated); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, apperr.ErrNotFound
		}
		return Profile{}, apperr.Store(domain, "find profile by id", err)
	}
	out.CreatedAt = created.UTC()
	out.UpdatedAt = updated.UTC()
	return out, nil
}

// Update overwrites the mutable fields of an existing customer.
func (r *PostgresRepository) Update(ctx context.Context, identity Identity) error {
	uid, err := uuid.Parse(identity.ID)
	if err != nil {
		return apperr.ErrNotFound
	}
	cmd, err := r.db.Exec(ctx, updateCustomerSQL,
		identity.Email, identity.PasswordHash, identity.FirstName, identity.LastName, identity.PhoneNumber,
		identity.UpdatedAt.UTC(), uid)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.ErrEmailTaken
		}
		return apperr.Store(domain, "update customer", err)
	}
	if cmd.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// UpdatePasswordHash swaps the stored hash in a single conditional UPDATE.
func (r *PostgresRepository) UpdatePasswordHash(ctx context.Context, id, oldHash, newHash string) (bool, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return false, nil
	}
	cmd, err := r.db.Exec(ctx, swapPasswordHashSQL, newHash, uid, oldHash)
	if err != nil {
		return false, apperr.Store(domain, "swap password hash", err)
	}
	return cmd.RowsAffected() == 1, nil
}

// Delete removes a customer.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		return apperr.ErrNotFound
	}
	cmd, err := r.db.Exec(ctx, deleteCustomerSQL, uid)
	if err != nil {
		return apperr.Store(domain, "delete customer", err)
	}
	if cmd.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
