package accounts

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/civica-console/civica/internal/directory"
	"github.com/civica-console/civica/internal/platform/httpx"
	"github.com/civica-console/civica/internal/rbac"
	"github.com/civica-console/civica/internal/shared"
)

// DirectoryResolver enriches account payloads with directory records. Lookups
// degrade to labeled fallbacks, so enrichment never fails a request.
type DirectoryResolver interface {
	Area(ctx context.Context, id int64) directory.Area
	Position(ctx context.Context, id int64) directory.Position
	Person(ctx context.Context, id int64) directory.Person
}

// Handler manages the account lifecycle endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	rbac      rbac.Middleware
	directory DirectoryResolver
	validator *validator.Validate
	now       func() time.Time
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbacMW rbac.Middleware, resolver DirectoryResolver) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		service:   service,
		rbac:      rbacMW,
		directory: resolver,
		validator: validator.New(),
		now:       time.Now,
	}
}

// MountRoutes registers account routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermUsersView, shared.PermUsersManage))
		r.Get("/", h.listUsers)
		r.Get("/blocked", h.blockedOverview)
		r.Get("/{id}", h.getUser)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermUsersManage))
		r.Patch("/{id}/suspend", h.suspendUser)
		r.Patch("/{id}/restore", h.restoreUser)
		r.Patch("/{id}/block", h.blockUser)
		r.Patch("/{id}/unblock", h.unblockUser)
		r.Delete("/{id}", h.softDeleteUser)
		r.Post("/force-unblock-expired", h.forceUnblockExpired)
	})
}

type userResponse struct {
	User
	EffectiveStatus Status              `json:"effectiveStatus"`
	Person          *directory.Person   `json:"person,omitempty"`
	Area            *directory.Area     `json:"area,omitempty"`
	Position        *directory.Position `json:"position,omitempty"`
}

func (h *Handler) respondUser(w http.ResponseWriter, status int, user User) {
	httpx.JSON(w, status, userResponse{User: user, EffectiveStatus: user.EffectiveStatus(h.now())})
}

func (h *Handler) respondUserDetail(ctx context.Context, w http.ResponseWriter, user User) {
	resp := userResponse{User: user, EffectiveStatus: user.EffectiveStatus(h.now())}
	if h.directory != nil {
		person := h.directory.Person(ctx, user.PersonID)
		area := h.directory.Area(ctx, user.AreaID)
		position := h.directory.Position(ctx, user.PositionID)
		resp.Person = &person
		resp.Area = &area
		resp.Position = &position
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	users, pagination, err := h.service.List(r.Context(), page, perPage)
	if err != nil {
		h.logger.Error("list users failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"users": users, "pagination": pagination})
}

func (h *Handler) blockedOverview(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.BlockedOverview(r.Context())
	if err != nil {
		h.logger.Error("blocked overview failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"users": users})
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}
	user, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.respondUserDetail(r.Context(), w, user)
}

type suspendRequest struct {
	Reason        string     `json:"reason" validate:"required"`
	SuspensionEnd *time.Time `json:"suspensionEnd"`
}

func (h *Handler) suspendUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}
	var req suspendRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	user, err := h.service.Suspend(r.Context(), id, req.Reason, req.SuspensionEnd)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.respondUser(w, http.StatusOK, user)
}

func (h *Handler) restoreUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}
	user, err := h.service.Restore(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.respondUser(w, http.StatusOK, user)
}

type blockRequest struct {
	Reason        string     `json:"reason" validate:"required"`
	DurationHours *int       `json:"durationHours"`
	BlockedUntil  *time.Time `json:"blockedUntil"`
}

func (h *Handler) blockUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}
	var req blockRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	mode, err := ParseBlockMode(req.DurationHours, req.BlockedUntil)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	user, err := h.service.Block(r.Context(), id, req.Reason, mode)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.respondUser(w, http.StatusOK, user)
}

func (h *Handler) unblockUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}
	user, err := h.service.Unblock(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.respondUser(w, http.StatusOK, user)
}

func (h *Handler) softDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}
	user, err := h.service.SoftDelete(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.respondUser(w, http.StatusOK, user)
}

func (h *Handler) forceUnblockExpired(w http.ResponseWriter, r *http.Request) {
	count, err := h.service.ForceUnblockExpired(r.Context())
	if err != nil {
		h.logger.Error("force unblock expired failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"unblocked": count})
}

func (h *Handler) userID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid user id")
		return 0, false
	}
	return id, true
}
