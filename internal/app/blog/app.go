// Package blog собирает HTTP-приложение сервиса учётных записей блога.
package blog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/blog-auth/internal/cache"
	"github.com/magabrotheeeer/blog-auth/internal/config"
	"github.com/magabrotheeeer/blog-auth/internal/lib/metrics"
	"github.com/magabrotheeeer/blog-auth/internal/lib/password"
	"github.com/magabrotheeeer/blog-auth/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/blog-auth/internal/lib/session"
	"github.com/magabrotheeeer/blog-auth/internal/lib/sl"
	"github.com/magabrotheeeer/blog-auth/internal/migrations"
	accountservice "github.com/magabrotheeeer/blog-auth/internal/services/account"
	authservice "github.com/magabrotheeeer/blog-auth/internal/services/auth"
	"github.com/magabrotheeeer/blog-auth/internal/storage"
)

const shutdownTimeout = 15 * time.Second

// eventPublisher общий контракт публикации для обоих сервисов.
type eventPublisher interface {
	Publish(ctx context.Context, event rabbitmq.Event) error
}

type App struct {
	server    *http.Server
	logger    *slog.Logger
	db        *storage.Storage
	cache     *cache.Cache
	rabbit    *amqp.Connection
	publisher *rabbitmq.Publisher
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "app.blog.New"

	db, err := storage.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
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

	var events eventPublisher = rabbitmq.NopPublisher{}
	if cfg.RabbitMQ.URL != "" {
		conn, err := rabbitmq.Connect(cfg.RabbitMQ.URL, cfg.RabbitMQ.Retries, cfg.RabbitMQ.RetryDelay)
		if err != nil {
			app.close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		app.rabbit = conn
		ch, err := rabbitmq.SetupChannel(conn, cfg.RabbitMQ.Exchange)
		if err != nil {
			app.close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		app.publisher = rabbitmq.NewPublisher(ch, cfg.RabbitMQ.Exchange)
		events = app.publisher
	} else {
		logger.Warn("rabbitmq url is empty, account events are not published")
	}

	sessions, err := session.NewManager(session.Options{
		CookieName: cfg.Session.CookieName,
		SecretKey:  cfg.Session.SecretKey,
		TTL:        cfg.Session.TTL,
		Secure:     cfg.Session.Secure,
	})
	if err != nil {
		app.close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	hasher := password.NewHasher(cfg.Hashing.Cost)

	authService, err := authservice.NewAuthService(logger, db, hasher, sessions, cacheRedis, events)
	if err != nil {
		app.close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	accountService := accountservice.NewAccountService(logger, db, hasher, cacheRedis, events, accountservice.Options{
		RevokeSessions: !cfg.Session.KeepSessionsOnPasswordChange,
		SessionTTL:     cfg.Session.TTL,
		ProfileTTL:     cfg.RedisConnection.ProfileTTL,
	})

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	router := chi.NewRouter()
	RegisterRoutes(router, Deps{
		Logger:   logger,
		Config:   cfg,
		Sessions: sessions,
		Auth:     authService,
		Account:  accountService,
		Metrics:  m,
		Registry: registry,
		Storage:  db,
		Cache:    cacheRedis,
	})

	app.server = &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return app, nil
}

func (a *App) Run(ctx context.Context) error {
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

// close освобождает соединения в обратном порядке открытия.
func (a *App) close() {
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Error("failed to close rabbitmq channel", sl.Err(err))
		}
	}
	if a.rabbit != nil {
		if err := a.rabbit.Close(); err != nil {
			a.logger.Error("failed to close rabbitmq connection", sl.Err(err))
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Error("failed to close redis", sl.Err(err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("failed to close database", sl.Err(err))
		}
	}
}
