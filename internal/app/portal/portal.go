// Package portal собирает приложение портала: хранилища, клиент шлюза,
// сервис сессий и HTTP-сервер.
package portal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/hotspot-portal/internal/cache"
	"github.com/magabrotheeeer/hotspot-portal/internal/catalog"
	"github.com/magabrotheeeer/hotspot-portal/internal/checkout"
	"github.com/magabrotheeeer/hotspot-portal/internal/config"
	"github.com/magabrotheeeer/hotspot-portal/internal/events"
	"github.com/magabrotheeeer/hotspot-portal/internal/gateway"
	"github.com/magabrotheeeer/hotspot-portal/internal/http/handlers/health"
	"github.com/magabrotheeeer/hotspot-portal/internal/http/middlewarectx"
	"github.com/magabrotheeeer/hotspot-portal/internal/identity"
	"github.com/magabrotheeeer/hotspot-portal/internal/lib/jwt"
	"github.com/magabrotheeeer/hotspot-portal/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/hotspot-portal/internal/lib/sl"
	"github.com/magabrotheeeer/hotspot-portal/internal/metrics"
	"github.com/magabrotheeeer/hotspot-portal/internal/migrations"
	"github.com/magabrotheeeer/hotspot-portal/internal/redemption"
	portalservice "github.com/magabrotheeeer/hotspot-portal/internal/services/portal"
	"github.com/magabrotheeeer/hotspot-portal/internal/storage"
)

const shutdownTimeout = 15 * time.Second

// App приложение портала.
type App struct {
	server  *http.Server
	logger  *slog.Logger
	db      *storage.Storage
	cache   *cache.Cache
	service *portalservice.Service
	amqp    *amqp.Connection
	channel *amqp.Channel
}

// New подключается к зависимостям и собирает сервер.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "app.portal.New"

	db, err := storage.New(ctx, cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = storage.CheckDatabaseReady(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	app := &App{
		logger: logger,
		db:     db,
		cache:  cacheRedis,
	}

	gw := gateway.NewClient(cfg.Gateway.BaseURL, cfg.Gateway.Timeout,
		gateway.WithRateLimit(cfg.Gateway.RPS, cfg.Gateway.Burst),
	)
	m := metrics.New(prometheus.DefaultRegisterer)

	observers := []checkout.Observer{m}
	if cfg.RabbitMQ.URL != "" {
		publisher, err := app.connectEvents(ctx, cfg.RabbitMQ)
		if err != nil {
			app.close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		observers = append(observers, publisher)
	} else {
		logger.Info("rabbitmq url is empty, payment events are not published")
	}

	app.service = portalservice.New(portalservice.Deps{
		Gateway:  gw,
		Identity: identity.NewResolver(cacheRedis, gw, cfg.Session.TTL, logger),
		Catalog:  catalog.New(gw, cacheRedis, cfg.Session.TTL, logger),
		Pending: portalservice.PendingFunc(func(clientID string) checkout.PendingStore {
			return db.PendingPayments(clientID)
		}),
		Tokens:     jwt.NewParser(cfg.JWTSecretKey),
		Redemption: redemption.New(gw, logger, redemption.WithRecorder(m)),
		Observers:  observers,
		Cleaner:    db,
		Gauge:      m,
	}, portalservice.Config{
		Checkout: checkout.Config{
			PollInterval:   cfg.Checkout.PollInterval,
			MaxPolls:       cfg.Checkout.MaxPolls,
			Timeout:        cfg.Checkout.Timeout,
			RequestTimeout: cfg.Gateway.Timeout,
		},
		IdleTimeout:   cfg.Session.IdleTimeout,
		SweepInterval: cfg.Session.SweepInterval,
		PendingMaxAge: cfg.Session.PendingMaxAge,
	}, logger)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, RouteDeps{
		Service: app.service,
		Checkers: map[string]health.Checker{
			"postgres": health.CheckFunc(db.DB.PingContext),
			"redis": health.CheckFunc(func(ctx context.Context) error {
				return cacheRedis.Db.Ping(ctx).Err()
			}),
		},
		Limiter:       middlewarectx.NewIPRateLimiter(cfg.HTTPServer.RateLimit, cfg.HTTPServer.RateBurst),
		SecureCookies: cfg.Session.SecureCookies,
	})

	app.server = &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}
	return app, nil
}

func (a *App) connectEvents(ctx context.Context, cfg config.RabbitMQ) (*events.Publisher, error) {
	conn, err := rabbitmq.Connect(ctx, cfg.URL, cfg.MaxRetries, cfg.RetryDelay)
	if err != nil {
		return nil, err
	}
	ch, err := rabbitmq.SetupChannel(conn, cfg.Exchange, rabbitmq.PaymentQueues(cfg.Exchange))
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	a.amqp = conn
	a.channel = ch
	return events.NewPublisher(ch, cfg.Exchange, a.logger), nil
}

// Run запускает HTTP-сервер и фоновую чистку сессий до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	go a.service.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		a.close()
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		a.close()
		return err
	}
}

func (a *App) close() {
	if a.service != nil {
		a.service.Close()
	}
	if a.channel != nil {
		if err := a.channel.Close(); err != nil {
			a.logger.Error("failed to close rabbitmq channel", sl.Err(err))
		}
	}
	if a.amqp != nil {
		if err := a.amqp.Close(); err != nil {
			a.logger.Error("failed to close rabbitmq connection", sl.Err(err))
		}
	}
	if err := a.cache.Close(); err != nil {
		a.logger.Error("failed to close redis", sl.Err(err))
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close postgres", sl.Err(err))
	}
}
