package rbac

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/civica-console/civica/internal/platform/httpx"
	"github.com/civica-console/civica/internal/shared"
)

// Handler exposes the assignment graph over HTTP.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountUserRoutes registers the user-side assignment routes. Expected to be
// mounted under /users/{id}.
func (h *Handler) MountUserRoutes(r chi.Router, mw Middleware) {
	r.Group(func(r chi.Router) {
		r.Use(mw.RequireAny(shared.PermGrantsView, shared.PermGrantsManage))
		r.Get("/roles", h.getUserRoles)
		r.Get("/permissions", h.getEffectivePermissions)
	})
	r.Group(func(r chi.Router) {
		r.Use(mw.RequireAny(shared.PermGrantsManage))
		r.Post("/roles/{roleID}", h.assignRole)
		r.Delete("/roles/{roleID}", h.removeRole)
	})
}

// MountRoleRoutes registers the role-side assignment routes. Expected to be
// mounted under /roles/{id}.
func (h *Handler) MountRoleRoutes(r chi.Router, mw Middleware) {
	r.Group(func(r chi.Router) {
		r.Use(mw.RequireAny(shared.PermGrantsView, shared.PermGrantsManage))
		r.Get("/permissions", h.getRolePermissions)
	})
	r.Group(func(r chi.Router) {
		r.Use(mw.RequireAny(shared.PermGrantsManage))
		r.Post("/permissions/{permID}", h.assignPermission)
		r.Delete("/permissions/{permID}", h.removePermission)
		r.Patch("/permissions/{permID}/restore", h.restorePermission)
	})
}

// MountPermissionRoutes registers the permission catalog routes.
func (h *Handler) MountPermissionRoutes(r chi.Router, mw Middleware) {
	r.Group(func(r chi.Router) {
		r.Use(mw.RequireAny(shared.PermPermissionsView, shared.PermGrantsManage))
		r.Get("/", h.listPermissions)
	})
}

func (h *Handler) getUserRoles(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	grants, err := h.service.GetUserRoles(r.Context(), userID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": grants})
}

func (h *Handler) getEffectivePermissions(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	perms, err := h.service.EffectivePermissions(r.Context(), userID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": perms})
}

type assignRoleRequest struct {
	ExpirationDate *time.Time `json:"expirationDate"`
}

func (h *Handler) assignRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	roleID, ok := pathID(w, r, "roleID")
	if !ok {
		return
	}
	var req assignRoleRequest
	if r.ContentLength > 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
			return
		}
	}
	if err := h.service.AssignRoleToUser(r.Context(), userID, roleID, req.ExpirationDate); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) removeRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	roleID, ok := pathID(w, r, "roleID")
	if !ok {
		return
	}
	if err := h.service.RemoveRoleFromUser(r.Context(), userID, roleID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getRolePermissions(w http.ResponseWriter, r *http.Request) {
	roleID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	grants, err := h.service.GetRolePermissions(r.Context(), roleID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": grants})
}

func (h *Handler) assignPermission(w http.ResponseWriter, r *http.Request) {
	roleID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	permID, ok := pathID(w, r, "permID")
	if !ok {
		return
	}
	if err := h.service.AssignPermissionToRole(r.Context(), roleID, permID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) removePermission(w http.ResponseWriter, r *http.Request) {
	roleID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	permID, ok := pathID(w, r, "permID")
	if !ok {
		return
	}
	if err := h.service.RemovePermissionFromRole(r.Context(), roleID, permID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) restorePermission(w http.ResponseWriter, r *http.Request) {
	roleID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	permID, ok := pathID(w, r, "permID")
	if !ok {
		return
	}
	if err := h.service.RestorePermissionToRole(r.Context(), roleID, permID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.service.ListPermissions(r.Context())
	if err != nil {
		h.logger.Error("list permissions failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": perms})
}

func pathID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid "+param)
		return 0, false
	}
	return id, true
}
