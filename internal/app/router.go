package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/harborline/harborline/internal/identity"
	identityhttp "github.com/harborline/harborline/internal/identity/http"
	"github.com/harborline/harborline/internal/observability"
	"github.com/harborline/harborline/internal/platform/httpx"
	"github.com/harborline/harborline/internal/shared"
	"github.com/harborline/harborline/internal/users"
	"github.com/harborline/harborline/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	SessionManager  *shared.SessionManager
	CSRFManager     *shared.CSRFManager
	Principals      *identity.PrincipalStore
	IdentityHandler *identityhttp.Handler
	UsersHandler    *users.Handler
	JobHandler      *jobs.Handler
	Metrics         *observability.Metrics
}

// NewRouter constructs the chi.Router with Harborline defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Principals:     params.Principals,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/auth", func(auth chi.Router) {
		auth.Group(func(limited chi.Router) {
			limited.Use(LoginRateLimiter())
			params.IdentityHandler.MountRoutes(limited)
		})
	})

	if params.UsersHandler != nil {
		r.Route("/admin/users", func(admin chi.Router) {
			admin.Use(RequireAdmin)
			params.UsersHandler.MountRoutes(admin)
		})
	}

	if params.JobHandler != nil {
		r.Route("/jobs", func(jobsRouter chi.Router) {
			jobsRouter.Use(RequireAdmin)
			params.JobHandler.MountRoutes(jobsRouter)
		})
	}

	return r
}
