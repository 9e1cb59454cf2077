package portal

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/hotspot-portal/internal/http/handlers/account/freetrial"
	"github.com/magabrotheeeer/hotspot-portal/internal/http/handlers/account/reconnect"
	"github.com/magabrotheeeer/hotspot-portal/internal/http/handlers/account/subscriptions"
	"github.com/magabrotheeeer/hotspot-portal/internal/http/handlers/auth/login"
	"github.com/magabrotheeeer/hotspot-portal/internal/http/handlers/auth/logout"
	"github.com/magabrotheeeer/hotspot-portal/internal/http/handlers/checkout/cancel"
	"github.com/magabrotheeeer/hotspot-portal/internal/http/handlers/checkout/reset"
	"github.com/magabrotheeeer/hotspot-portal/internal/http/handlers/checkout/start"
	"github.com/magabrotheeeer/hotspot-portal/internal/http/handlers/checkout/status"
	"github.com/magabrotheeeer/hotspot-portal/internal/http/handlers/health"
	"github.com/magabrotheeeer/hotspot-portal/internal/http/handlers/portal/capture"
	"github.com/magabrotheeeer/hotspot-portal/internal/http/handlers/portal/identity"
	"github.com/magabrotheeeer/hotspot-portal/internal/http/handlers/portal/packages"
	"github.com/magabrotheeeer/hotspot-portal/internal/http/handlers/redeem/points"
	"github.com/magabrotheeeer/hotspot-portal/internal/http/handlers/redeem/voucher"
	"github.com/magabrotheeeer/hotspot-portal/internal/http/middlewarectx"
	portalservice "github.com/magabrotheeeer/hotspot-portal/internal/services/portal"
)

// RouteDeps то, что нужно маршрутам.
type RouteDeps struct {
	Service       *portalservice.Service
	Checkers      map[string]health.Checker
	Limiter       *middlewarectx.IPRateLimiter
	SecureCookies bool
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, deps RouteDeps) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
	)

	svc := deps.Service

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", health.New(logger, deps.Checkers).ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.RateLimitMiddleware(logger, deps.Limiter))
			r.Use(middlewarectx.SessionMiddleware(logger, middlewarectx.SessionConfig{Secure: deps.SecureCookies}))

			r.Get("/portal", capture.New(logger, svc).ServeHTTP)
			r.Get("/identity", identity.New(logger, svc).ServeHTTP)
			r.Get("/packages", packages.New(logger, svc).ServeHTTP)

			r.Post("/checkout", start.New(logger, svc).ServeHTTP)
			r.Get("/checkout", status.New(logger, svc).ServeHTTP)
			r.Delete("/checkout", reset.New(logger, svc).ServeHTTP)
			r.Post("/checkout/cancel", cancel.New(logger, svc).ServeHTTP)

			r.Post("/redeem/voucher", voucher.New(logger, svc).ServeHTTP)
			r.Post("/redeem/points", points.New(logger, svc).ServeHTTP)

			r.Post("/auth/session", login.New(logger, svc).ServeHTTP)
			r.Delete("/auth/session", logout.New(logger, svc).ServeHTTP)

			r.Post("/account/free-trial", freetrial.New(logger, svc).ServeHTTP)
			r.Post("/account/reconnect", reconnect.New(logger, svc).ServeHTTP)
			r.Get("/account/subscriptions", subscriptions.New(logger, svc).ServeHTTP)
		})
	})

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
