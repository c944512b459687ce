package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/natours/natours/internal/auth"
	"github.com/natours/natours/internal/observability"
	"github.com/natours/natours/internal/platform/httpx"
	"github.com/natours/natours/internal/rbac"
	"github.com/natours/natours/internal/users"
	"github.com/natours/natours/jobs"
)

// ResourceHandlers are the tour and review endpoints served by other
// components. Nil entries answer 501.
type ResourceHandlers struct {
	ListTours    http.HandlerFunc
	TopTours     http.HandlerFunc
	ToursWithin  http.HandlerFunc
	TourDistance http.HandlerFunc
	GetTour      http.HandlerFunc
	CreateTour   http.HandlerFunc
	UpdateTour   http.HandlerFunc
	DeleteTour   http.HandlerFunc
	ListReviews  http.HandlerFunc
	CreateReview http.HandlerFunc
}

// ReadinessCheck is one dependency probed by /readyz.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger        *slog.Logger
	Config        *Config
	Authenticator *auth.Authenticator
	AuthHandler   *auth.Handler
	UsersHandler  *users.Handler
	Resources     ResourceHandlers
	JobHandler    *jobs.Handler
	Metrics       *observability.Metrics
	Readiness     []ReadinessCheck
}

// APIRoutes declares every /api/v1 endpoint with its access rule.
func APIRoutes(p RouterParams) rbac.Table {
	admin := []users.Role{users.RoleAdmin}
	staff := []users.Role{users.RoleAdmin, users.RoleLeadGuide}
	res := p.Resources

	return rbac.Table{
		rbac.Open(http.MethodPost, "/users/signup", p.AuthHandler.Signup),
		rbac.Open(http.MethodPost, "/users/login", p.AuthHandler.Login),
		rbac.Open(http.MethodPost, "/users/forgotPassword", p.AuthHandler.ForgotPassword),
		rbac.Open(http.MethodPatch, "/users/resetPassword/{token}", p.AuthHandler.ResetPassword),

		rbac.Auth(http.MethodPatch, "/users/updatePassword", p.AuthHandler.UpdatePassword),
		rbac.Auth(http.MethodGet, "/users/me", p.UsersHandler.Me),
		rbac.Auth(http.MethodPatch, "/users/updateMe", p.UsersHandler.UpdateMe),
		rbac.Auth(http.MethodDelete, "/users/deleteMe", p.UsersHandler.DeleteMe),

		rbac.Roles(http.MethodGet, "/users", p.UsersHandler.List, admin...),
		rbac.Roles(http.MethodGet, "/users/{id}", p.UsersHandler.Get, admin...),
		rbac.Roles(http.MethodPatch, "/users/{id}", p.UsersHandler.Update, admin...),
		rbac.Roles(http.MethodDelete, "/users/{id}", p.UsersHandler.Delete, admin...),

		rbac.Open(http.MethodGet, "/tours", orNotImplemented(res.ListTours)),
		rbac.Open(http.MethodGet, "/tours/top-5-cheap-tour", orNotImplemented(res.TopTours)),
		rbac.Open(http.MethodGet, "/tours/tours-within/{distance}/center/{latlng}/unit/{unit}", orNotImplemented(res.ToursWithin)),
		rbac.Open(http.MethodGet, "/tours/distances/{latlng}/unit/{unit}", orNotImplemented(res.TourDistance)),
		rbac.Open(http.MethodGet, "/tours/{id}", orNotImplemented(res.GetTour)),
		rbac.Roles(http.MethodPost, "/tours", orNotImplemented(res.CreateTour), staff...),
		rbac.Roles(http.MethodPatch, "/tours/{id}", orNotImplemented(res.UpdateTour), staff...),
		rbac.Roles(http.MethodDelete, "/tours/{id}", orNotImplemented(res.DeleteTour), staff...),

		rbac.Auth(http.MethodGet, "/reviews", orNotImplemented(res.ListReviews)),
		rbac.Roles(http.MethodPost, "/reviews", orNotImplemented(res.CreateReview), users.RoleUser),
		rbac.Auth(http.MethodGet, "/tours/{id}/reviews", orNotImplemented(res.ListReviews)),
		rbac.Roles(http.MethodPost, "/tours/{id}/reviews", orNotImplemented(res.CreateReview), users.RoleUser),
	}
}

// NewRouter constructs the chi.Router with the API defaults.
func NewRouter(params RouterParams) (http.Handler, error) {
	if params.Authenticator == nil || params.AuthHandler == nil || params.UsersHandler == nil {
		return nil, errors.New("app: authenticator, auth handler and users handler are required")
	}
	if params.Logger == nil {
		params.Logger = slog.Default()
	}
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Fail(w, http.StatusNotFound, "Can't find "+r.URL.Path+" on this server!")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Fail(w, http.StatusMethodNotAllowed, "Method "+r.Method+" is not allowed on "+r.URL.Path)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", readinessHandler(params.Logger, params.Readiness))
	r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	guard := rbac.Middleware{Guard: params.Authenticator, Logger: params.Logger}
	var mountErr error
	r.Route("/api/v1", func(api chi.Router) {
		mountErr = guard.Mount(api, APIRoutes(params))
	})
	if mountErr != nil {
		return nil, mountErr
	}
	return r, nil
}

func readinessHandler(logger *slog.Logger, checks []ReadinessCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		status := map[string]string{}
		code := http.StatusOK
		for _, c := range checks {
			if err := c.Check(ctx); err != nil {
				logger.Warn("readiness check failed", slog.String("check", c.Name), slog.Any("error", err))
				status[c.Name] = "down"
				code = http.StatusServiceUnavailable
				continue
			}
			status[c.Name] = "up"
		}
		httpx.JSON(w, code, status)
	}
}

func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.Fail(w, http.StatusNotImplemented, "This route is not yet defined!")
	}
}
