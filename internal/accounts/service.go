package accounts

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/civica-console/civica/internal/audit"
	"github.com/civica-console/civica/internal/shared"
)

// RepositoryPort defines data access methods for accounts.
type RepositoryPort interface {
	GetUser(ctx context.Context, id int64) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	ListBlockedUsers(ctx context.Context) ([]User, error)
	UpdateUserStatus(ctx context.Context, user User) (User, error)
	UnblockExpired(ctx context.Context, now time.Time) (int64, error)
}

// Service enforces the account lifecycle transitions.
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

// Get fetches a single user.
func (s *Service) Get(ctx context.Context, id int64) (User, error) {
	return s.repo.GetUser(ctx, id)
}

// List returns one page of users with the temporal-lock overlay applied.
func (s *Service) List(ctx context.Context, page, perPage int) ([]User, shared.Pagination, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	now := s.now()
	for i := range users {
		users[i].Status = users[i].EffectiveStatus(now)
	}
	pagination := shared.NewPagination(page, perPage, len(users))
	start := pagination.Offset()
	if start > len(users) {
		start = len(users)
	}
	end := start + pagination.PerPage
	if end > len(users) {
		end = len(users)
	}
	return users[start:end], pagination, nil
}

// BlockedOverview merges the general listing with the blocked-only listing
// into one consistent view. The two fetches run concurrently and are not
// transactional; the merge tolerates records appearing in only one of them.
func (s *Service) BlockedOverview(ctx context.Context) ([]User, error) {
	var all, blocked []User
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		users, err := s.repo.ListUsers(gctx)
		if err != nil {
			return err
		}
		all = users
		return nil
	})
	g.Go(func() error {
		users, err := s.repo.ListBlockedUsers(gctx)
		if err != nil {
			return err
		}
		blocked = users
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return MergeBlocked(all, blocked), nil
}

// Suspend places the account in SUSPENDED. A nil suspensionEnd means the
// suspension is indefinite; a non-nil one must lie in the future.
func (s *Service) Suspend(ctx context.Context, id int64, reason string, suspensionEnd *time.Time) (User, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return User{}, fmt.Errorf("accounts: suspension reason is required: %w", shared.ErrValidation)
	}
	now := s.now()
	if suspensionEnd != nil && !suspensionEnd.After(now) {
		return User{}, fmt.Errorf("accounts: suspensionEnd must be in the future: %w", shared.ErrValidation)
	}
	user, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return User{}, err
	}
	user.Status = StatusSuspended
	user.SuspensionReason = reason
	user.SuspensionEnd = suspensionEnd
	updated, err := s.repo.UpdateUserStatus(ctx, user)
	if err != nil {
		return User{}, err
	}
	s.record(ctx, "users.suspend", updated.ID, map[string]any{"reason": reason})
	return updated, nil
}

// Restore reactivates an account: SUSPENDED accounts lose their suspension
// fields, INACTIVE accounts simply return to ACTIVE.
func (s *Service) Restore(ctx context.Context, id int64) (User, error) {
	user, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return User{}, err
	}
	switch user.Status {
	case StatusSuspended:
		user.SuspensionReason = ""
		user.SuspensionEnd = nil
	case StatusInactive:
	default:
		return User{}, fmt.Errorf("accounts: user %d is %s, nothing to restore: %w", id, user.Status, shared.ErrPrecondition)
	}
	user.Status = StatusActive
	updated, err := s.repo.UpdateUserStatus(ctx, user)
	if err != nil {
		return User{}, err
	}
	s.record(ctx, "users.restore", updated.ID, nil)
	return updated, nil
}

// Block places the account in BLOCKED until the deadline described by mode.
func (s *Service) Block(ctx context.Context, id int64, reason string, mode BlockMode) (User, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return User{}, fmt.Errorf("accounts: block reason is required: %w", shared.ErrValidation)
	}
	deadline, err := mode.Deadline(s.now())
	if err != nil {
		return User{}, err
	}
	user, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return User{}, err
	}
	user.Status = StatusBlocked
	user.BlockReason = reason
	user.BlockedUntil = &deadline
	updated, err := s.repo.UpdateUserStatus(ctx, user)
	if err != nil {
		return User{}, err
	}
	s.record(ctx, "users.block", updated.ID, map[string]any{"reason": reason, "blocked_until": deadline})
	return updated, nil
}

// Unblock lifts a block ahead of its deadline.
func (s *Service) Unblock(ctx context.Context, id int64) (User, error) {
	user, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return User{}, err
	}
	if user.Status != StatusBlocked && user.BlockedUntil == nil {
		return User{}, fmt.Errorf("accounts: user %d is not blocked: %w", id, shared.ErrPrecondition)
	}
	user.Status = StatusActive
	user.BlockReason = ""
	user.BlockedUntil = nil
	updated, err := s.repo.UpdateUserStatus(ctx, user)
	if err != nil {
		return User{}, err
	}
	s.record(ctx, "users.unblock", updated.ID, nil)
	return updated, nil
}

// SoftDelete deactivates the account regardless of its prior state. The row
// is kept; only the status changes.
func (s *Service) SoftDelete(ctx context.Context, id int64) (User, error) {
	user, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return User{}, err
	}
	user.Status = StatusInactive
	updated, err := s.repo.UpdateUserStatus(ctx, user)
	if err != nil {
		return User{}, err
	}
	s.record(ctx, "users.soft_delete", updated.ID, nil)
	return updated, nil
}

// ForceUnblockExpired reverts every BLOCKED account whose deadline has passed
// back to ACTIVE. This maintenance operation is the only place expired locks
// are actually cleared; reads merely overlay them.
func (s *Service) ForceUnblockExpired(ctx context.Context) (int64, error) {
	count, err := s.repo.UnblockExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if count > 0 {
		s.record(ctx, "users.force_unblock_expired", 0, map[string]any{"count": count})
	}
	return count, nil
}

func (s *Service) record(ctx context.Context, action string, userID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	actorID, _ := shared.ActorID(ctx)
	entry := audit.Entry{
		ActorID:  actorID,
		Action:   action,
		Entity:   "user",
		EntityID: strconv.FormatInt(userID, 10),
		Meta:     meta,
		At:       s.now(),
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
