package roles

import (
	"context"
	"fmt"
	"strings"

	"github.com/civica-console/civica/internal/shared"
)

// RepositoryPort defines data access methods for roles.
type RepositoryPort interface {
	ListRoles(ctx context.Context, includeDeleted bool) ([]Role, error)
	GetRole(ctx context.Context, id int64) (Role, error)
	CreateRole(ctx context.Context, name, description string) (Role, error)
	SoftDeleteRole(ctx context.Context, id int64) (bool, error)
	RestoreRole(ctx context.Context, id int64) (bool, error)
}

// Service handles role catalog business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ListRoles returns the catalog; deleted roles are included on request so the
// console can offer restoration.
func (s *Service) ListRoles(ctx context.Context, includeDeleted bool) ([]Role, error) {
	return s.repo.ListRoles(ctx, includeDeleted)
}

// GetRole fetches a role by ID.
func (s *Service) GetRole(ctx context.Context, id int64) (Role, error) {
	return s.repo.GetRole(ctx, id)
}

// CreateRole inserts a new role.
func (s *Service) CreateRole(ctx context.Context, name, description string) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, fmt.Errorf("roles: role name required: %w", shared.ErrValidation)
	}
	return s.repo.CreateRole(ctx, name, strings.TrimSpace(description))
}

// SoftDeleteRole flags the role deleted without touching its assignments.
func (s *Service) SoftDeleteRole(ctx context.Context, id int64) error {
	deleted, err := s.repo.SoftDeleteRole(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("roles: role %d is already deleted: %w", id, shared.ErrPrecondition)
	}
	return nil
}

// RestoreRole clears the deletion flag.
func (s *Service) RestoreRole(ctx context.Context, id int64) error {
	restored, err := s.repo.RestoreRole(ctx, id)
	if err != nil {
		return err
	}
	if !restored {
		return fmt.Errorf("roles: role %d is not deleted: %w", id, shared.ErrPrecondition)
	}
	return nil
}
