package api

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Togather-Foundation/checkin/internal/api/handlers"
	"github.com/Togather-Foundation/checkin/internal/api/middleware"
	"github.com/Togather-Foundation/checkin/internal/config"
	"github.com/Togather-Foundation/checkin/internal/metrics"
)

// UserService is everything the HTTP layer needs from the identity service.
type UserService interface {
	handlers.AccountService
	handlers.UserService
}

// CheckinService is everything the HTTP layer needs from the ledger.
type CheckinService interface {
	handlers.CheckinService
	handlers.UserCheckins
	handlers.EventCheckins
}

// Deps carries the wired services for NewRouter.
type Deps struct {
	Config   config.Config
	Logger   zerolog.Logger
	Users    UserService
	Events   handlers.EventService
	Checkins CheckinService
	Auth     middleware.Authenticator
	Health   *handlers.HealthChecker
	Build    BuildInfo
}

// NewRouter builds the full HTTP handler. Background work started by the
// middleware stops when ctx is cancelled.
func NewRouter(ctx context.Context, deps Deps) http.Handler {
	cfg := deps.Config
	env := cfg.Environment

	usersHandler := handlers.NewUsersHandler(deps.Users, deps.Checkins, env)
	adminUsers := handlers.NewAdminUsersHandler(deps.Users, env)
	adminEvents := handlers.NewAdminEventsHandler(deps.Events, deps.Checkins, env)
	adminCheckins := handlers.NewAdminCheckinsHandler(deps.Checkins, env)

	limit := middleware.RateLimit(ctx, cfg.RateLimit)
	requireUser := middleware.RequireUser(deps.Auth, env)
	requireAdmin := middleware.RequireAdmin(deps.Auth, env)

	public := func(h http.HandlerFunc) http.Handler {
		return middleware.WithRateLimitTierHandler(middleware.TierPublic)(limit(h))
	}
	login := func(h http.HandlerFunc) http.Handler {
		return middleware.WithRateLimitTierHandler(middleware.TierLogin)(limit(h))
	}
	user := func(h http.HandlerFunc) http.Handler {
		return public(requireUser(h).ServeHTTP)
	}
	admin := func(h http.HandlerFunc) http.Handler {
		return middleware.WithRateLimitTierHandler(middleware.TierAdmin)(limit(requireAdmin(h)))
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", deps.Health.Healthz)
	mux.HandleFunc("GET /readyz", deps.Health.Readyz)
	mux.Handle("GET /metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	mux.Handle("GET /version", VersionHandler(deps.Build, time.Now()))

	mux.Handle("POST /users/register", public(usersHandler.Register))
	mux.Handle("POST /users/login", login(usersHandler.Login))
	mux.Handle("GET /users/me", user(usersHandler.Me))
	mux.Handle("GET /users/me/checkins", user(usersHandler.MyCheckins))

	mux.Handle("GET /admin/users", admin(adminUsers.ListUsers))
	mux.Handle("POST /admin/users", admin(adminUsers.CreateUser))
	mux.Handle("PUT /admin/users/{id}", admin(adminUsers.UpdateUser))
	mux.Handle("DELETE /admin/users/{id}", admin(adminUsers.DeleteUser))

	mux.Handle("GET /admin/events", admin(adminEvents.ListEvents))
	mux.Handle("POST /admin/events", admin(adminEvents.CreateEvent))
	mux.Handle("GET /admin/events/{id}", admin(adminEvents.GetEvent))
	mux.Handle("DELETE /admin/events/{id}", admin(adminEvents.DeleteEvent))
	mux.Handle("GET /admin/events/{id}/checkins", admin(adminEvents.EventCheckins))

	mux.Handle("POST /admin/checkins", admin(adminCheckins.CreateCheckin))
	mux.Handle("GET /admin/checkins", admin(adminCheckins.ListCheckins))
	mux.Handle("GET /admin/get_checkins", admin(adminCheckins.ListCheckins))

	var handler http.Handler = mux
	handler = middleware.RequestSize(cfg.Server.MaxBodyBytes)(handler)
	handler = middleware.SecurityHeaders(cfg.Server.RequireHTTPS)(handler)
	handler = metrics.HTTPMiddleware(handler)
	handler = middleware.RequestLogging(deps.Logger)(handler)
	handler = middleware.Tracing(handler)
	handler = middleware.CorrelationID(deps.Logger)(handler)
	return handler
}
