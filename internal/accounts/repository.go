package accounts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/civica-console/civica/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `id, username, person_id, status, blocked_until, block_reason, suspension_end, suspension_reason, direct_manager_id, area_id, position_id, version, created_at, updated_at, last_login`

// GetUser fetches a user by ID.
func (r *Repository) GetUser(ctx context.Context, id int64) (User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, fmt.Errorf("accounts: user %d: %w", id, shared.ErrNotFound)
		}
		return User{}, err
	}
	return user, nil
}

// ListUsers returns all users ordered by id.
func (r *Repository) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectUsers(rows)
}

// ListBlockedUsers returns users whose persisted status is BLOCKED.
func (r *Repository) ListBlockedUsers(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users WHERE status = $1 ORDER BY id`, StatusBlocked)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectUsers(rows)
}

// UpdateUserStatus writes the lifecycle fields using a compare-and-swap on the
// version column. A concurrent writer that already moved the row surfaces as
// ErrConflict so callers never silently overwrite a transition.
func (r *Repository) UpdateUserStatus(ctx context.Context, user User) (User, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE users
		SET status = $1,
			blocked_until = $2,
			block_reason = NULLIF($3, ''),
			suspension_end = $4,
			suspension_reason = NULLIF($5, ''),
			version = version + 1,
			updated_at = NOW()
		WHERE id = $6 AND version = $7
		RETURNING `+userColumns,
		user.Status, user.BlockedUntil, user.BlockReason, user.SuspensionEnd, user.SuspensionReason, user.ID, user.Version)
	updated, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Distinguish a vanished row from a lost version race.
			var exists bool
			if checkErr := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, user.ID).Scan(&exists); checkErr == nil && exists {
				return User{}, fmt.Errorf("accounts: user %d was modified concurrently: %w", user.ID, shared.ErrConflict)
			}
			return User{}, fmt.Errorf("accounts: user %d: %w", user.ID, shared.ErrNotFound)
		}
		return User{}, err
	}
	return updated, nil
}

// UnblockExpired reverts every blocked user whose deadline passed to ACTIVE.
func (r *Repository) UnblockExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users
		SET status = $1,
			blocked_until = NULL,
			block_reason = NULL,
			version = version + 1,
			updated_at = NOW()
		WHERE status = $2 AND blocked_until IS NOT NULL AND blocked_until <= $3`,
		StatusActive, StatusBlocked, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func collectUsers(rows pgx.Rows) ([]User, error) {
	var users []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func scanUser(row pgx.Row) (User, error) {
	var (
		user             User
		blockReason      *string
		suspensionReason *string
	)
	err := row.Scan(
		&user.ID, &user.Username, &user.PersonID, &user.Status,
		&user.BlockedUntil, &blockReason, &user.SuspensionEnd, &suspensionReason,
		&user.DirectManagerID, &user.AreaID, &user.PositionID,
		&user.Version, &user.CreatedAt, &user.UpdatedAt, &user.LastLogin,
	)
	if err != nil {
		return User{}, err
	}
	if blockReason != nil {
		user.BlockReason = *blockReason
	}
	if suspensionReason != nil {
		user.SuspensionReason = *suspensionReason
	}
	return user, nil
}

var _ RepositoryPort = (*Repository)(nil)
