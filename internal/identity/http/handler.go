package identityhttp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"

	"github.com/harborline/harborline/internal/federation"
	"github.com/harborline/harborline/internal/identity"
	"github.com/harborline/harborline/internal/observability"
	"github.com/harborline/harborline/internal/platform/httpx"
	"github.com/harborline/harborline/internal/shared"
	"github.com/harborline/harborline/jobs"
)

// WelcomeEnqueuer submits the post-signup welcome mail job.
type WelcomeEnqueuer interface {
	EnqueueWelcomeEmail(ctx context.Context, payload jobs.WelcomeEmailPayload) (*asynq.TaskInfo, error)
}

// Handler wires the HTTP endpoints for authentication flows.
type Handler struct {
	logger     *slog.Logger
	verifier   *identity.Verifier
	resolver   *identity.Resolver
	registrar  *identity.Registrar
	principals *identity.PrincipalStore
	directory  identity.Directory
	sessions   *shared.SessionManager
	csrf       *shared.CSRFManager
	handshake  *federation.Handshake
	audit      *shared.AuditLogger
	metrics    *observability.Metrics
	welcome    WelcomeEnqueuer
	validate   *validator.Validate
}

// HandlerParams groups the handler dependencies.
type HandlerParams struct {
	Logger     *slog.Logger
	Verifier   *identity.Verifier
	Resolver   *identity.Resolver
	Registrar  *identity.Registrar
	Principals *identity.PrincipalStore
	Directory  identity.Directory
	Sessions   *shared.SessionManager
	CSRF       *shared.CSRFManager
	Handshake  *federation.Handshake
	Audit      *shared.AuditLogger
	Metrics    *observability.Metrics
	Welcome    WelcomeEnqueuer
}

// NewHandler constructs a Handler instance.
func NewHandler(params HandlerParams) *Handler {
	return &Handler{
		logger:     params.Logger,
		verifier:   params.Verifier,
		resolver:   params.Resolver,
		registrar:  params.Registrar,
		principals: params.Principals,
		directory:  params.Directory,
		sessions:   params.Sessions,
		csrf:       params.CSRF,
		handshake:  params.Handshake,
		audit:      params.Audit,
		metrics:    params.Metrics,
		welcome:    params.Welcome,
		validate:   validator.New(),
	}
}

// MountRoutes registers auth routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/register", h.handleRegister)
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.Get("/me", h.handleMe)
	r.Get("/csrf", h.handleCSRF)
	r.Get("/providers", h.handleProviders)
	r.Get("/oauth/{provider}", h.handleOAuthStart)
	r.Get("/oauth/{provider}/callback", h.handleOAuthCallback)
}

type registerRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" validate:"max=100"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type principalResponse struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func toPrincipalResponse(p identity.Principal) principalResponse {
	return principalResponse{ID: p.ID, Email: p.Email, Role: string(p.Role)}
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	principal, err := h.registrar.Register(r.Context(), identity.Registration{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		if errors.Is(err, identity.ErrEmailTaken) {
			httpx.Problem(w, http.StatusConflict, "Email Taken", "an account with this email already exists")
			return
		}
		h.logger.Error("register", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}

	h.establishSession(r, principal, shared.AuditSignup, "local")
	if h.welcome != nil {
		if _, err := h.welcome.EnqueueWelcomeEmail(r.Context(), jobs.WelcomeEmailPayload{
			Email:     principal.Email,
			FirstName: req.FirstName,
			Method:    "local",
		}); err != nil {
			h.logger.Warn("enqueue welcome email", slog.Any("error", err))
		}
	}
	httpx.JSON(w, http.StatusCreated, toPrincipalResponse(principal))
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	principal, err := h.verifier.Verify(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrInvalidCredentials):
			h.metrics.ObserveLogin("local", "invalid")
			httpx.Problem(w, http.StatusUnauthorized, "Authentication Failed", "invalid email or password")
		case errors.Is(err, identity.ErrAccountDisabled):
			h.metrics.ObserveLogin("local", "disabled")
			httpx.Problem(w, http.StatusForbidden, "Account Disabled", "this account has been disabled")
		default:
			h.metrics.ObserveLogin("local", "error")
			h.logger.Error("login", slog.Any("error", err))
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		}
		return
	}

	h.metrics.ObserveLogin("local", "success")
	h.establishSession(r, principal, shared.AuditLogin, "local")
	httpx.JSON(w, http.StatusOK, toPrincipalResponse(principal))
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		if bound := sess.User(); bound != "" && h.audit != nil {
			if err := h.audit.Record(r.Context(), shared.AuthEvent{Action: shared.AuditLogout, Meta: map[string]any{"session_user": bound}}); err != nil {
				h.logger.Warn("audit logout", slog.Any("error", err))
			}
		}
		h.principals.Unbind(sess)
		h.sessions.Destroy(sess)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "no authenticated session")
		return
	}
	httpx.JSON(w, http.StatusOK, toPrincipalResponse(*principal))
}

func (h *Handler) handleCSRF(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	token, err := h.csrf.EnsureToken(r.Context(), sess)
	if err != nil {
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"csrf_token": token})
}

func (h *Handler) handleProviders(w http.ResponseWriter, r *http.Request) {
	names := []string{}
	if h.handshake != nil {
		names = h.handshake.Providers()
	}
	sort.Strings(names)
	httpx.JSON(w, http.StatusOK, map[string][]string{"providers": names})
}

func (h *Handler) handleOAuthStart(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	if h.handshake == nil {
		httpx.Problem(w, http.StatusBadRequest, "Unknown Provider", "")
		return
	}
	provider := chi.URLParam(r, "provider")
	authURL, err := h.handshake.Begin(sess, provider)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Unknown Provider", "")
		return
	}
	http.Redirect(w, r, authURL, http.StatusFound)
}

func (h *Handler) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}

	query := r.URL.Query()
	if h.handshake == nil || query.Get("error") != "" {
		http.Redirect(w, r, "/login?error=oauth", http.StatusFound)
		return
	}

	profile, err := h.handshake.Complete(r.Context(), sess, provider, query.Get("state"), query.Get("code"))
	if err != nil {
		h.metrics.ObserveLogin(provider, "error")
		h.logger.Warn("oauth callback", slog.String("provider", provider), slog.Any("error", err))
		http.Redirect(w, r, "/login?error=oauth", http.StatusFound)
		return
	}

	principal, outcome, err := h.resolver.Resolve(r.Context(), profile)
	if err != nil {
		h.metrics.ObserveLogin(provider, "error")
		h.logger.Error("resolve federated identity", slog.String("provider", provider), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	if !principal.IsActive {
		h.metrics.ObserveLogin(provider, "disabled")
		httpx.Problem(w, http.StatusForbidden, "Account Disabled", "this account has been disabled")
		return
	}

	h.metrics.ObserveLogin(provider, "success")
	action := shared.AuditLogin
	switch outcome {
	case identity.OutcomeLinked:
		action = shared.AuditLink
	case identity.OutcomeCreated:
		action = shared.AuditSignup
		if h.welcome != nil {
			if _, err := h.welcome.EnqueueWelcomeEmail(r.Context(), jobs.WelcomeEmailPayload{
				Email:     principal.Email,
				FirstName: profile.FirstName,
				Method:    provider,
			}); err != nil {
				h.logger.Warn("enqueue welcome email", slog.Any("error", err))
			}
		}
	}
	h.establishSession(r, principal, action, provider)
	http.Redirect(w, r, "/", http.StatusFound)
}

// establishSession binds the principal to the session, advances last_login
// and records the audit event. Audit and timestamp failures are logged but
// never fail the login.
func (h *Handler) establishSession(r *http.Request, principal identity.Principal, action, method string) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Error("session missing during authentication")
		return
	}
	h.principals.Bind(sess, principal)
	if err := h.directory.TouchLastLogin(r.Context(), principal.ID, time.Now()); err != nil {
		h.logger.Warn("touch last login", slog.Any("error", err))
	}
	if h.audit != nil {
		if err := h.audit.Record(r.Context(), shared.AuthEvent{ActorID: principal.ID, Action: action, Method: method}); err != nil {
			h.logger.Warn("audit auth event", slog.Any("error", err))
		}
	}
}
