package rbac

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/civica-console/civica/internal/audit"
	"github.com/civica-console/civica/internal/shared"
)

// RepositoryPort defines data access methods for the assignment graph.
type RepositoryPort interface {
	UserExists(ctx context.Context, userID int64) (bool, error)
	GetRole(ctx context.Context, roleID int64) (Role, error)
	GetPermission(ctx context.Context, permissionID int64) (Permission, error)
	ListPermissions(ctx context.Context) ([]Permission, error)

	ListUserGrants(ctx context.Context, userID int64) ([]RoleGrant, error)
	CreateUserGrant(ctx context.Context, userID, roleID int64, expirationDate *time.Time, assignedAt time.Time) error
	DeactivateUserGrant(ctx context.Context, userID, roleID int64) (bool, error)

	ListRoleGrants(ctx context.Context, roleID int64) ([]PermissionGrant, error)
	CreateRoleGrant(ctx context.Context, roleID, permissionID int64, assignedAt time.Time) error
	DeactivateRoleGrant(ctx context.Context, roleID, permissionID int64) (bool, error)
	ReactivateRoleGrant(ctx context.Context, roleID, permissionID int64) (bool, error)
}

// Service maintains the User-Role-Permission assignment graph and resolves
// effective permission sets from it.
type Service struct {
	repo   RepositoryPort
	audit  audit.Recorder
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, recorder audit.Recorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: recorder, logger: logger, now: time.Now}
}

// AssignRoleToUser creates an active user-role edge. A second active edge for
// the same pair is rejected, not overwritten. Races between the existence
// check and the insert are caught by the store's uniqueness constraint.
func (s *Service) AssignRoleToUser(ctx context.Context, userID, roleID int64, expirationDate *time.Time) error {
	if err := s.requireUser(ctx, userID); err != nil {
		return err
	}
	role, err := s.repo.GetRole(ctx, roleID)
	if err != nil {
		return err
	}
	if role.Deleted() {
		return fmt.Errorf("rbac: role %q is deleted: %w", role.Name, shared.ErrPrecondition)
	}
	grants, err := s.repo.ListUserGrants(ctx, userID)
	if err != nil {
		return err
	}
	for _, g := range grants {
		if g.Role.ID == roleID && g.Active {
			return fmt.Errorf("rbac: role %q already assigned to user %d: %w", role.Name, userID, shared.ErrConflict)
		}
	}
	if err := s.repo.CreateUserGrant(ctx, userID, roleID, expirationDate, s.now()); err != nil {
		return err
	}
	s.record(ctx, "grants.assign_role", "user", userID, map[string]any{"role_id": roleID})
	return nil
}

// RemoveRoleFromUser deactivates the active edge for the pair. The edge is
// kept for history; an already-inactive edge cannot be removed again.
func (s *Service) RemoveRoleFromUser(ctx context.Context, userID, roleID int64) error {
	if err := s.requireUser(ctx, userID); err != nil {
		return err
	}
	if _, err := s.repo.GetRole(ctx, roleID); err != nil {
		return err
	}
	deactivated, err := s.repo.DeactivateUserGrant(ctx, userID, roleID)
	if err != nil {
		return err
	}
	if !deactivated {
		return fmt.Errorf("rbac: no active assignment of role %d for user %d: %w", roleID, userID, shared.ErrPrecondition)
	}
	s.record(ctx, "grants.remove_role", "user", userID, map[string]any{"role_id": roleID})
	return nil
}

// GetUserRoles returns every user-role edge, active and inactive, for display
// and removal-eligibility checks.
func (s *Service) GetUserRoles(ctx context.Context, userID int64) ([]RoleGrant, error) {
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}
	return s.repo.ListUserGrants(ctx, userID)
}

// AssignPermissionToRole creates an active role-permission edge. Inactive
// permissions cannot be granted.
func (s *Service) AssignPermissionToRole(ctx context.Context, roleID, permissionID int64) error {
	if _, err := s.repo.GetRole(ctx, roleID); err != nil {
		return err
	}
	perm, err := s.repo.GetPermission(ctx, permissionID)
	if err != nil {
		return err
	}
	if !perm.Active {
		return fmt.Errorf("rbac: permission %q is inactive: %w", perm.Key(), shared.ErrPrecondition)
	}
	grants, err := s.repo.ListRoleGrants(ctx, roleID)
	if err != nil {
		return err
	}
	for _, g := range grants {
		if g.Permission.ID == permissionID && g.Active {
			return fmt.Errorf("rbac: permission %q already granted to role %d: %w", perm.Key(), roleID, shared.ErrConflict)
		}
	}
	if err := s.repo.CreateRoleGrant(ctx, roleID, permissionID, s.now()); err != nil {
		return err
	}
	s.record(ctx, "grants.assign_permission", "role", roleID, map[string]any{"permission_id": permissionID})
	return nil
}

// RemovePermissionFromRole deactivates the active edge for the pair. An edge
// whose underlying permission is inactive is frozen: it stays visible but
// cannot be removed until the permission itself is restored.
func (s *Service) RemovePermissionFromRole(ctx context.Context, roleID, permissionID int64) error {
	if _, err := s.repo.GetRole(ctx, roleID); err != nil {
		return err
	}
	perm, err := s.repo.GetPermission(ctx, permissionID)
	if err != nil {
		return err
	}
	if !perm.Active {
		return fmt.Errorf("rbac: permission %q is inactive, grant is frozen: %w", perm.Key(), shared.ErrPrecondition)
	}
	deactivated, err := s.repo.DeactivateRoleGrant(ctx, roleID, permissionID)
	if err != nil {
		return err
	}
	if !deactivated {
		return fmt.Errorf("rbac: no active grant of permission %d for role %d: %w", permissionID, roleID, shared.ErrPrecondition)
	}
	s.record(ctx, "grants.remove_permission", "role", roleID, map[string]any{"permission_id": permissionID})
	return nil
}

// RestorePermissionToRole reactivates a previously deactivated edge.
func (s *Service) RestorePermissionToRole(ctx context.Context, roleID, permissionID int64) error {
	if _, err := s.repo.GetRole(ctx, roleID); err != nil {
		return err
	}
	if _, err := s.repo.GetPermission(ctx, permissionID); err != nil {
		return err
	}
	reactivated, err := s.repo.ReactivateRoleGrant(ctx, roleID, permissionID)
	if err != nil {
		return err
	}
	if !reactivated {
		return fmt.Errorf("rbac: no inactive grant of permission %d for role %d: %w", permissionID, roleID, shared.ErrPrecondition)
	}
	s.record(ctx, "grants.restore_permission", "role", roleID, map[string]any{"permission_id": permissionID})
	return nil
}

// GetRolePermissions returns every role-permission edge, active and inactive.
func (s *Service) GetRolePermissions(ctx context.Context, roleID int64) ([]PermissionGrant, error) {
	if _, err := s.repo.GetRole(ctx, roleID); err != nil {
		return nil, err
	}
	return s.repo.ListRoleGrants(ctx, roleID)
}

// ListPermissions returns the permission catalog, inactive entries included.
func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.repo.ListPermissions(ctx)
}

// EffectivePermissions flattens the graph into the user's permission set:
// the union of active permissions reachable through active, unexpired role
// assignments, de-duplicated by permission id.
func (s *Service) EffectivePermissions(ctx context.Context, userID int64) ([]Permission, error) {
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}
	now := s.now()
	grants, err := s.repo.ListUserGrants(ctx, userID)
	if err != nil {
		return nil, err
	}
	seen := make(map[int64]Permission)
	for _, grant := range grants {
		if !grant.Valid(now) {
			continue
		}
		permGrants, err := s.repo.ListRoleGrants(ctx, grant.Role.ID)
		if err != nil {
			return nil, err
		}
		for _, pg := range permGrants {
			if pg.Active && pg.Permission.Active {
				seen[pg.Permission.ID] = pg.Permission
			}
		}
	}
	perms := make([]Permission, 0, len(seen))
	for _, p := range seen {
		perms = append(perms, p)
	}
	sort.Slice(perms, func(i, j int) bool { return perms[i].ID < perms[j].ID })
	return perms, nil
}

// EffectivePermissionKeys returns the membership keys of the effective set.
func (s *Service) EffectivePermissionKeys(ctx context.Context, userID int64) ([]string, error) {
	perms, err := s.EffectivePermissions(ctx, userID)
	if err != nil {
		return nil, err
	}
	keys := make([]string, len(perms))
	for i, p := range perms {
		keys[i] = p.Key()
	}
	return keys, nil
}

func (s *Service) requireUser(ctx context.Context, userID int64) error {
	exists, err := s.repo.UserExists(ctx, userID)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("rbac: user %d: %w", userID, shared.ErrNotFound)
	}
	return nil
}

func (s *Service) record(ctx context.Context, action, entity string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	actorID, _ := shared.ActorID(ctx)
	entry := audit.Entry{
		ActorID:  actorID,
		Action:   action,
		Entity:   entity,
		EntityID: strconv.FormatInt(entityID, 10),
		Meta:     meta,
		At:       s.now(),
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
