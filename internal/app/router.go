package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/civica-console/civica/internal/accounts"
	"github.com/civica-console/civica/internal/auth"
	"github.com/civica-console/civica/internal/observability"
	"github.com/civica-console/civica/internal/rbac"
	"github.com/civica-console/civica/internal/roles"
	"github.com/civica-console/civica/internal/shared"
	"github.com/civica-console/civica/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	SessionManager  *shared.SessionManager
	AuthHandler     *auth.Handler
	AccountsHandler *accounts.Handler
	RolesHandler    *roles.Handler
	RBACHandler     *rbac.Handler
	RBACMiddleware  rbac.Middleware
	JobHandler      *jobs.Handler
	Metrics         *observability.Metrics
}

// NewRouter constructs the chi.Router with Civica defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/auth", params.AuthHandler.MountRoutes)

	if params.AccountsHandler != nil {
		r.Route("/users", func(r chi.Router) {
			params.AccountsHandler.MountRoutes(r)
			if params.RBACHandler != nil {
				r.Route("/{id}", func(r chi.Router) {
					params.RBACHandler.MountUserRoutes(r, params.RBACMiddleware)
				})
			}
		})
	}

	if params.RolesHandler != nil {
		r.Route("/roles", func(r chi.Router) {
			params.RolesHandler.MountRoutes(r)
			if params.RBACHandler != nil {
				r.Route("/{id}", func(r chi.Router) {
					params.RBACHandler.MountRoleRoutes(r, params.RBACMiddleware)
				})
			}
		})
	}

	if params.RBACHandler != nil {
		r.Route("/permissions", func(r chi.Router) {
			params.RBACHandler.MountPermissionRoutes(r, params.RBACMiddleware)
		})
	}

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	return r
}
