package rbac

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/civica-console/civica/internal/shared"
)

// Repository provides PostgreSQL backed persistence for the assignment graph.
// user_roles carries a partial unique index on (user_id, role_id) WHERE
// active, so two concurrent assigns cannot both commit an active edge.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// UserExists reports whether a user row exists.
func (r *Repository) UserExists(ctx context.Context, userID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists)
	return exists, err
}

// GetRole fetches a role by ID, soft-deleted ones included.
func (r *Repository) GetRole(ctx context.Context, roleID int64) (Role, error) {
	var role Role
	err := r.pool.QueryRow(ctx, `SELECT id, name, description, deleted_at FROM roles WHERE id = $1`, roleID).
		Scan(&role.ID, &role.Name, &role.Description, &role.DeletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, fmt.Errorf("rbac: role %d: %w", roleID, shared.ErrNotFound)
		}
		return Role{}, err
	}
	return role, nil
}

// GetPermission fetches a permission by ID, inactive ones included.
func (r *Repository) GetPermission(ctx context.Context, permissionID int64) (Permission, error) {
	var perm Permission
	err := r.pool.QueryRow(ctx, `SELECT id, module, action, resource, display_name, description, status FROM permissions WHERE id = $1`, permissionID).
		Scan(&perm.ID, &perm.Module, &perm.Action, &perm.Resource, &perm.DisplayName, &perm.Description, &perm.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Permission{}, fmt.Errorf("rbac: permission %d: %w", permissionID, shared.ErrNotFound)
		}
		return Permission{}, err
	}
	return perm, nil
}

// ListPermissions returns the whole catalog ordered by module and action.
func (r *Repository) ListPermissions(ctx context.Context) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, module, action, resource, display_name, description, status FROM permissions ORDER BY module, action, resource`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []Permission
	for rows.Next() {
		var perm Permission
		if err := rows.Scan(&perm.ID, &perm.Module, &perm.Action, &perm.Resource, &perm.DisplayName, &perm.Description, &perm.Active); err != nil {
			return nil, err
		}
		perms = append(perms, perm)
	}
	return perms, rows.Err()
}

// ListUserGrants returns every user-role edge with the attached role.
func (r *Repository) ListUserGrants(ctx context.Context, userID int64) ([]RoleGrant, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT ur.user_id, ur.assigned_at, ur.expiration_date, ur.active,
		       ro.id, ro.name, ro.description, ro.deleted_at
		FROM user_roles ur
		JOIN roles ro ON ro.id = ur.role_id
		WHERE ur.user_id = $1
		ORDER BY ur.assigned_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var grants []RoleGrant
	for rows.Next() {
		var g RoleGrant
		if err := rows.Scan(&g.UserID, &g.AssignedAt, &g.ExpirationDate, &g.Active,
			&g.Role.ID, &g.Role.Name, &g.Role.Description, &g.Role.DeletedAt); err != nil {
			return nil, err
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

// CreateUserGrant inserts an active user-role edge.
func (r *Repository) CreateUserGrant(ctx context.Context, userID, roleID int64, expirationDate *time.Time, assignedAt time.Time) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO user_roles (user_id, role_id, assigned_at, expiration_date, active)
		VALUES ($1, $2, $3, $4, TRUE)`, userID, roleID, assignedAt, expirationDate)
	return translateUnique(err, fmt.Sprintf("rbac: role %d already assigned to user %d", roleID, userID))
}

// DeactivateUserGrant marks the active edge inactive. Returns false when no
// active edge existed.
func (r *Repository) DeactivateUserGrant(ctx context.Context, userID, roleID int64) (bool, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE user_roles SET active = FALSE WHERE user_id = $1 AND role_id = $2 AND active`, userID, roleID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ListRoleGrants returns every role-permission edge with the attached
// permission.
func (r *Repository) ListRoleGrants(ctx context.Context, roleID int64) ([]PermissionGrant, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT rp.role_id, rp.assigned_at, rp.active,
		       p.id, p.module, p.action, p.resource, p.display_name, p.description, p.status
		FROM role_permissions rp
		JOIN permissions p ON p.id = rp.permission_id
		WHERE rp.role_id = $1
		ORDER BY rp.assigned_at`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var grants []PermissionGrant
	for rows.Next() {
		var g PermissionGrant
		if err := rows.Scan(&g.RoleID, &g.AssignedAt, &g.Active,
			&g.Permission.ID, &g.Permission.Module, &g.Permission.Action, &g.Permission.Resource,
			&g.Permission.DisplayName, &g.Permission.Description, &g.Permission.Active); err != nil {
			return nil, err
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

// CreateRoleGrant inserts an active role-permission edge.
func (r *Repository) CreateRoleGrant(ctx context.Context, roleID, permissionID int64, assignedAt time.Time) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO role_permissions (role_id, permission_id, assigned_at, active)
		VALUES ($1, $2, $3, TRUE)`, roleID, permissionID, assignedAt)
	return translateUnique(err, fmt.Sprintf("rbac: permission %d already granted to role %d", permissionID, roleID))
}

// DeactivateRoleGrant marks the active edge inactive.
func (r *Repository) DeactivateRoleGrant(ctx context.Context, roleID, permissionID int64) (bool, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE role_permissions SET active = FALSE WHERE role_id = $1 AND permission_id = $2 AND active`, roleID, permissionID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ReactivateRoleGrant flips an inactive edge back to active.
func (r *Repository) ReactivateRoleGrant(ctx context.Context, roleID, permissionID int64) (bool, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE role_permissions SET active = TRUE WHERE role_id = $1 AND permission_id = $2 AND NOT active`, roleID, permissionID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// translateUnique maps Postgres unique violations onto the conflict error so
// racing writers observe the same failure as the in-service duplicate check.
func translateUnique(err error, detail string) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%s: %w", detail, shared.ErrConflict)
	}
	return err
}

var _ RepositoryPort = (*Repository)(nil)
