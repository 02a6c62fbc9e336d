package blog

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/blog-auth/internal/config"
	"github.com/magabrotheeeer/blog-auth/internal/http/handlers/account/password"
	"github.com/magabrotheeeer/blog-auth/internal/http/handlers/auth/me"
	"github.com/magabrotheeeer/blog-auth/internal/http/handlers/auth/signin"
	"github.com/magabrotheeeer/blog-auth/internal/http/handlers/auth/signout"
	"github.com/magabrotheeeer/blog-auth/internal/http/handlers/auth/signup"
	"github.com/magabrotheeeer/blog-auth/internal/http/handlers/auth/status"
	"github.com/magabrotheeeer/blog-auth/internal/http/handlers/health"
	"github.com/magabrotheeeer/blog-auth/internal/http/handlers/profile/read"
	"github.com/magabrotheeeer/blog-auth/internal/http/handlers/profile/update"
	"github.com/magabrotheeeer/blog-auth/internal/http/middlewarectx"
	"github.com/magabrotheeeer/blog-auth/internal/lib/metrics"
	"github.com/magabrotheeeer/blog-auth/internal/lib/session"
	accountservice "github.com/magabrotheeeer/blog-auth/internal/services/account"
	authservice "github.com/magabrotheeeer/blog-auth/internal/services/auth"
)

// Deps - зависимости, из которых собираются маршруты.
type Deps struct {
	Logger   *slog.Logger
	Config   *config.Config
	Sessions *session.Manager
	Auth     *authservice.AuthService
	Account  *accountservice.AccountService
	Metrics  *metrics.Metrics
	Registry *prometheus.Registry
	Storage  health.Pinger
	Cache    health.Pinger
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, d Deps) {
	logger := d.Logger
	cfg := d.Config

	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
		d.Metrics.Middleware,
		middlewarectx.LoadSession(d.Sessions),
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Открытые конечные точки
		r.Get("/signin", status.New(logger, d.Auth, cfg.Redirects.AfterSignIn).ServeHTTP)
		r.Post("/signout", signout.New(logger, d.Sessions).ServeHTTP)

		// Попытки входа и регистрации ограничены по частоте
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.RateLimitMiddleware(logger, cfg.RateLimit.RPS, cfg.RateLimit.Burst))
			r.Post("/signin", signin.New(logger, d.Auth, d.Sessions, d.Metrics).ServeHTTP)
			r.Post("/signup", signup.New(logger, d.Auth, d.Sessions, d.Metrics).ServeHTTP)
		})

		// Группа, требующая входа
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.RequireAuth(logger, d.Auth, cfg.Redirects.SignInPage))
			r.Get("/me", me.New(logger).ServeHTTP)
			r.Put("/users/{id}/password", password.New(logger, d.Account, d.Sessions, d.Metrics).ServeHTTP)
			r.Get("/users/{id}/profile", read.New(logger, d.Account).ServeHTTP)
			r.Put("/users/{id}/profile", update.New(logger, d.Account, d.Sessions, d.Metrics).ServeHTTP)
		})
	})

	r.Get("/health", health.New(logger, map[string]health.Pinger{
		"postgres": d.Storage,
		"redis":    d.Cache,
	}).ServeHTTP)
	r.Handle("/metrics", promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{}))
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
