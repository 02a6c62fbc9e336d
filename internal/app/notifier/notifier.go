// Package notifier собирает воркер, который рассылает письма по событиям учётных записей.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/blog-auth/internal/config"
	"github.com/magabrotheeeer/blog-auth/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/blog-auth/internal/lib/sl"
	"github.com/magabrotheeeer/blog-auth/internal/lib/smtp"
	notifierservice "github.com/magabrotheeeer/blog-auth/internal/services/notifier"
	"github.com/magabrotheeeer/blog-auth/internal/storage"
)

// ErrNoBroker - воркер не может работать без RabbitMQ.
var ErrNoBroker = errors.New("rabbitmq url is not configured")

type App struct {
	conn    *amqp.Connection
	ch      *amqp.Channel
	db      *storage.Storage
	service *notifierservice.NotifierService
	logger  *slog.Logger
	queue   string
	workers int
}

func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "app.notifier.New"

	if cfg.RabbitMQ.URL == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrNoBroker)
	}

	db, err := storage.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	conn, err := rabbitmq.Connect(cfg.RabbitMQ.URL, cfg.RabbitMQ.Retries, cfg.RabbitMQ.RetryDelay)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ch, err := rabbitmq.SetupChannel(conn, cfg.RabbitMQ.Exchange)
	if err != nil {
		_ = conn.Close()
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	err = rabbitmq.SetupQueue(ch, cfg.RabbitMQ.Exchange, cfg.Notifier.Queue,
		rabbitmq.RoutingUserRegistered,
		rabbitmq.RoutingPasswordChanged,
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	transport := smtp.NewTransport(cfg.SMTP, logger)
	service := notifierservice.NewNotifierService(logger, db, transport)

	return &App{
		conn:    conn,
		ch:      ch,
		db:      db,
		service: service,
		logger:  logger,
		queue:   cfg.Notifier.Queue,
		workers: cfg.Notifier.Workers,
	}, nil
}

// Run обрабатывает очередь до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("notifier consuming", slog.String("queue", a.queue), slog.Int("workers", a.workers))

	err := rabbitmq.Consume(ctx, a.logger, a.ch, a.queue, a.workers, a.service.HandleEvent)
	if err != nil {
		a.logger.Error("consumer stopped", sl.Err(err))
	} else {
		a.logger.Info("notifier shutting down gracefully")
	}

	if closeErr := a.ch.Close(); closeErr != nil {
		a.logger.Error("failed to close channel", sl.Err(closeErr))
	}
	if closeErr := a.conn.Close(); closeErr != nil {
		a.logger.Error("failed to close connection", sl.Err(closeErr))
	}
	if closeErr := a.db.Close(); closeErr != nil {
		a.logger.Error("failed to close database", sl.Err(closeErr))
	}
	return err
}
