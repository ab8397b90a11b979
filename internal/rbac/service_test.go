package rbac

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/civica-console/civica/internal/shared"
)

type memoryGraphRepo struct {
	users       map[int64]bool
	roles       map[int64]Role
	permissions map[int64]Permission
	userGrants  []RoleGrant
	roleGrants  []PermissionGrant
}

func newMemoryGraphRepo() *memoryGraphRepo {
	return &memoryGraphRepo{
		users:       make(map[int64]bool),
		roles:       make(map[int64]Role),
		permissions: make(map[int64]Permission),
	}
}

func (r *memoryGraphRepo) UserExists(ctx context.Context, userID int64) (bool, error) {
	return r.users[userID], nil
}

func (r *memoryGraphRepo) GetRole(ctx context.Context, roleID int64) (Role, error) {
	role, ok := r.roles[roleID]
	if !ok {
		return Role{}, shared.ErrNotFound
	}
	return role, nil
}

func (r *memoryGraphRepo) GetPermission(ctx context.Context, permissionID int64) (Permission, error) {
	perm, ok := r.permissions[permissionID]
	if !ok {
		return Permission{}, shared.ErrNotFound
	}
	return perm, nil
}

func (r *memoryGraphRepo) ListPermissions(ctx context.Context) ([]Permission, error) {
	out := make([]Permission, 0, len(r.permissions))
	for _, p := range r.permissions {
		out = append(out, p)
	}
	return out, nil
}

func (r *memoryGraphRepo) ListUserGrants(ctx context.Context, userID int64) ([]RoleGrant, error) {
	var out []RoleGrant
	for _, g := range r.userGrants {
		if g.UserID == userID {
			g.Role = r.roles[g.Role.ID]
			out = append(out, g)
		}
	}
	return out, nil
}

func (r *memoryGraphRepo) CreateUserGrant(ctx context.Context, userID, roleID int64, expirationDate *time.Time, assignedAt time.Time) error {
	for _, g := range r.userGrants {
		if g.UserID == userID && g.Role.ID == roleID && g.Active {
			return shared.ErrConflict
		}
	}
	r.userGrants = append(r.userGrants, RoleGrant{
		Role:           Role{ID: roleID},
		UserID:         userID,
		AssignedAt:     assignedAt,
		ExpirationDate: expirationDate,
		Active:         true,
	})
	return nil
}

func (r *memoryGraphRepo) DeactivateUserGrant(ctx context.Context, userID, roleID int64) (bool, error) {
	for i, g := range r.userGrants {
		if g.UserID == userID && g.Role.ID == roleID && g.Active {
			r.userGrants[i].Active = false
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryGraphRepo) ListRoleGrants(ctx context.Context, roleID int64) ([]PermissionGrant, error) {
	var out []PermissionGrant
	for _, g := range r.roleGrants {
		if g.RoleID == roleID {
			g.Permission = r.permissions[g.Permission.ID]
			out = append(out, g)
		}
	}
	return out, nil
}

func (r *memoryGraphRepo) CreateRoleGrant(ctx context.Context, roleID, permissionID int64, assignedAt time.Time) error {
	for _, g := range r.roleGrants {
		if g.RoleID == roleID && g.Permission.ID == permissionID && g.Active {
			return shared.ErrConflict
		}
	}
	r.roleGrants = append(r.roleGrants, PermissionGrant{
		Permission: Permission{ID: permissionID},
		RoleID:     roleID,
		AssignedAt: assignedAt,
		Active:     true,
	})
	return nil
}

func (r *memoryGraphRepo) DeactivateRoleGrant(ctx context.Context, roleID, permissionID int64) (bool, error) {
	for i, g := range r.roleGrants {
		if g.RoleID == roleID && g.Permission.ID == permissionID && g.Active {
			r.roleGrants[i].Active = false
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryGraphRepo) ReactivateRoleGrant(ctx context.Context, roleID, permissionID int64) (bool, error) {
	for i, g := range r.roleGrants {
		if g.RoleID == roleID && g.Permission.ID == permissionID && !g.Active {
			r.roleGrants[i].Active = true
			return true, nil
		}
	}
	return false, nil
}

func timePtr(t time.Time) *time.Time { return &t }

func newGraphService(repo RepositoryPort, now time.Time) *Service {
	svc := NewService(repo, nil, nil)
	svc.now = func() time.Time { return now }
	return svc
}

func TestAssignRoleToUser(t *testing.T) {
	now := time.Date(2025, 5, 10, 9, 0, 0, 0, time.UTC)
	repo := newMemoryGraphRepo()
	repo.users[1] = true
	repo.roles[10] = Role{ID: 10, Name: "supervisor"}
	svc := newGraphService(repo, now)

	ctx := context.Background()
	require.NoError(t, svc.AssignRoleToUser(ctx, 1, 10, nil))

	// A second active assignment of the same pair is rejected.
	err := svc.AssignRoleToUser(ctx, 1, 10, nil)
	require.ErrorIs(t, err, shared.ErrConflict)

	err = svc.AssignRoleToUser(ctx, 99, 10, nil)
	require.ErrorIs(t, err, shared.ErrNotFound)

	err = svc.AssignRoleToUser(ctx, 1, 99, nil)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestAssignRoleRejectsDeletedRole(t *testing.T) {
	now := time.Now().UTC()
	repo := newMemoryGraphRepo()
	repo.users[1] = true
	repo.roles[10] = Role{ID: 10, Name: "legacy", DeletedAt: timePtr(now.Add(-time.Hour))}
	svc := newGraphService(repo, now)

	err := svc.AssignRoleToUser(context.Background(), 1, 10, nil)
	require.ErrorIs(t, err, shared.ErrPrecondition)
}

func TestRemoveRoleFromUser(t *testing.T) {
	now := time.Now().UTC()
	repo := newMemoryGraphRepo()
	repo.users[1] = true
	repo.roles[10] = Role{ID: 10, Name: "supervisor"}
	svc := newGraphService(repo, now)

	ctx := context.Background()
	require.NoError(t, svc.AssignRoleToUser(ctx, 1, 10, nil))
	require.NoError(t, svc.RemoveRoleFromUser(ctx, 1, 10))

	// The edge is kept inactive; removing it again is a precondition failure.
	err := svc.RemoveRoleFromUser(ctx, 1, 10)
	require.ErrorIs(t, err, shared.ErrPrecondition)

	grants, err := svc.GetUserRoles(ctx, 1)
	require.NoError(t, err)
	require.Len(t, grants, 1)
	require.False(t, grants[0].Active)

	// Re-assignment after removal creates a fresh active edge.
	require.NoError(t, svc.AssignRoleToUser(ctx, 1, 10, nil))
	grants, err = svc.GetUserRoles(ctx, 1)
	require.NoError(t, err)
	require.Len(t, grants, 2)
}

func TestAssignPermissionToRole(t *testing.T) {
	now := time.Now().UTC()
	repo := newMemoryGraphRepo()
	repo.roles[10] = Role{ID: 10, Name: "supervisor"}
	repo.permissions[100] = Permission{ID: 100, Module: "users", Action: "view", Active: true}
	repo.permissions[101] = Permission{ID: 101, Module: "users", Action: "manage", Active: false}
	svc := newGraphService(repo, now)

	ctx := context.Background()
	require.NoError(t, svc.AssignPermissionToRole(ctx, 10, 100))

	err := svc.AssignPermissionToRole(ctx, 10, 100)
	require.ErrorIs(t, err, shared.ErrConflict)

	// Inactive permissions cannot be granted.
	err = svc.AssignPermissionToRole(ctx, 10, 101)
	require.ErrorIs(t, err, shared.ErrPrecondition)
}

func TestRemovePermissionFromRoleFreezesInactivePermission(t *testing.T) {
	now := time.Now().UTC()
	repo := newMemoryGraphRepo()
	repo.roles[10] = Role{ID: 10, Name: "supervisor"}
	repo.permissions[100] = Permission{ID: 100, Module: "users", Action: "view", Active: true}
	svc := newGraphService(repo, now)

	ctx := context.Background()
	require.NoError(t, svc.AssignPermissionToRole(ctx, 10, 100))

	// Once the permission is deactivated the grant is frozen in place.
	repo.permissions[100] = Permission{ID: 100, Module: "users", Action: "view", Active: false}
	err := svc.RemovePermissionFromRole(ctx, 10, 100)
	require.ErrorIs(t, err, shared.ErrPrecondition)

	grants, err := svc.GetRolePermissions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, grants, 1)
	require.True(t, grants[0].Active)

	// Restoring the permission unfreezes the grant.
	repo.permissions[100] = Permission{ID: 100, Module: "users", Action: "view", Active: true}
	require.NoError(t, svc.RemovePermissionFromRole(ctx, 10, 100))
}

func TestRestorePermissionToRole(t *testing.T) {
	now := time.Now().UTC()
	repo := newMemoryGraphRepo()
	repo.roles[10] = Role{ID: 10, Name: "supervisor"}
	repo.permissions[100] = Permission{ID: 100, Module: "users", Action: "view", Active: true}
	svc := newGraphService(repo, now)

	ctx := context.Background()

	// Nothing inactive to restore yet.
	err := svc.RestorePermissionToRole(ctx, 10, 100)
	require.ErrorIs(t, err, shared.ErrPrecondition)

	require.NoError(t, svc.AssignPermissionToRole(ctx, 10, 100))
	require.NoError(t, svc.RemovePermissionFromRole(ctx, 10, 100))
	require.NoError(t, svc.RestorePermissionToRole(ctx, 10, 100))

	grants, err := svc.GetRolePermissions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, grants, 1)
	require.True(t, grants[0].Active)
}

func TestEffectivePermissionsUnionsActiveGrants(t *testing.T) {
	now := time.Date(2025, 5, 10, 9, 0, 0, 0, time.UTC)
	repo := newMemoryGraphRepo()
	repo.users[1] = true
	repo.roles[10] = Role{ID: 10, Name: "supervisor"}
	repo.roles[11] = Role{ID: 11, Name: "auditor"}
	repo.permissions[100] = Permission{ID: 100, Module: "users", Action: "view", Active: true}
	repo.permissions[101] = Permission{ID: 101, Module: "users", Action: "manage", Active: true}
	repo.permissions[102] = Permission{ID: 102, Module: "grants", Action: "view", Active: true}
	svc := newGraphService(repo, now)

	ctx := context.Background()
	require.NoError(t, svc.AssignPermissionToRole(ctx, 10, 100))
	require.NoError(t, svc.AssignPermissionToRole(ctx, 10, 101))
	require.NoError(t, svc.AssignPermissionToRole(ctx, 11, 100))
	require.NoError(t, svc.AssignPermissionToRole(ctx, 11, 102))

	require.NoError(t, svc.AssignRoleToUser(ctx, 1, 10, nil))
	require.NoError(t, svc.AssignRoleToUser(ctx, 1, 11, nil))

	perms, err := svc.EffectivePermissions(ctx, 1)
	require.NoError(t, err)
	// Permission 100 is reachable through both roles but appears once.
	require.Len(t, perms, 3)

	keys, err := svc.EffectivePermissionKeys(ctx, 1)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"users.view", "users.manage", "grants.view"}, keys)
}

func TestEffectivePermissionsSkipsExpiredAndInactiveEdges(t *testing.T) {
	now := time.Date(2025, 5, 10, 9, 0, 0, 0, time.UTC)
	repo := newMemoryGraphRepo()
	repo.users[1] = true
	repo.roles[10] = Role{ID: 10, Name: "temporary"}
	repo.roles[11] = Role{ID: 11, Name: "revoked"}
	repo.permissions[100] = Permission{ID: 100, Module: "users", Action: "view", Active: true}
	repo.permissions[101] = Permission{ID: 101, Module: "users", Action: "manage", Active: true}
	svc := newGraphService(repo, now)

	ctx := context.Background()
	require.NoError(t, svc.AssignPermissionToRole(ctx, 10, 100))
	require.NoError(t, svc.AssignPermissionToRole(ctx, 11, 101))

	expired := now.Add(-time.Hour)
	require.NoError(t, svc.AssignRoleToUser(ctx, 1, 10, &expired))
	require.NoError(t, svc.AssignRoleToUser(ctx, 1, 11, nil))
	require.NoError(t, svc.RemoveRoleFromUser(ctx, 1, 11))

	perms, err := svc.EffectivePermissions(ctx, 1)
	require.NoError(t, err)
	require.Empty(t, perms)
}

func TestEffectivePermissionsExcludesInactivePermissions(t *testing.T) {
	now := time.Now().UTC()
	repo := newMemoryGraphRepo()
	repo.users[1] = true
	repo.roles[10] = Role{ID: 10, Name: "supervisor"}
	repo.permissions[100] = Permission{ID: 100, Module: "users", Action: "view", Active: true}
	svc := newGraphService(repo, now)

	ctx := context.Background()
	require.NoError(t, svc.AssignPermissionToRole(ctx, 10, 100))
	require.NoError(t, svc.AssignRoleToUser(ctx, 1, 10, nil))

	// Deactivating the catalogue entry removes it from every effective set
	// without touching the grant edges.
	repo.permissions[100] = Permission{ID: 100, Module: "users", Action: "view", Active: false}

	perms, err := svc.EffectivePermissions(ctx, 1)
	require.NoError(t, err)
	require.Empty(t, perms)

	grants, err := svc.GetRolePermissions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, grants, 1)
	require.True(t, grants[0].Active)
}

func TestPermissionKeyIsCaseInsensitive(t *testing.T) {
	perm := Permission{Module: "Users", Action: "View"}
	require.Equal(t, "users.view", perm.Key())
}
