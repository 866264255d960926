package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/unclebandit/pta-newsletter/internal/config"
	"github.com/unclebandit/pta-newsletter/internal/db"
	"github.com/unclebandit/pta-newsletter/internal/mailer"
	"github.com/unclebandit/pta-newsletter/internal/metrics"
	"github.com/unclebandit/pta-newsletter/internal/model"
	"github.com/unclebandit/pta-newsletter/internal/queue"
	"github.com/unclebandit/pta-newsletter/internal/repository"
	"github.com/unclebandit/pta-newsletter/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config", slog.Any("error", err))
		os.Exit(1)
	}
	log := cfg.NewLogger()
	slog.SetDefault(log)

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.SentryDSN, Environment: cfg.Env}); err != nil {
			log.Warn("sentry disabled", slog.Any("error", err))
		}
		defer sentry.Flush(2 * time.Second)
	}
	if cfg.AMQPURL == "" {
		log.Error("AMQP_URL is required for the delivery worker")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := db.Open(ctx, cfg.DSN())
	if err != nil {
		log.Error("connecting to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer conn.Close()

	q, err := queue.DialAMQP(cfg.AMQPURL, log)
	if err != nil {
		log.Error("connecting to rabbitmq", slog.Any("error", err))
		os.Exit(1)
	}
	defer q.Close()

	sender := mailer.New(cfg.SendGridAPIKey, cfg.FromName, cfg.FromEmail, log)
	if err := run(q, repository.NewSQLStore(conn), sender, metrics.New(prometheus.NewRegistry()), log); err != nil {
		log.Error("starting delivery worker", slog.Any("error", err))
		os.Exit(1)
	}

	log.Info("worker running, waiting for deliveries")
	<-ctx.Done()
	log.Info("worker shutting down")
}

// run subscribes the delivery worker to q.
func run(q queue.Queue, store repository.Store, sender mailer.Sender, m *metrics.Metrics, log *slog.Logger) error {
	w := service.NewDeliveryWorker(store, sender, m, log)
	return queue.StartDeliverySubscriber(q, func(ctx context.Context, job model.DeliveryJob) error {
		err := w.Handle(ctx, job)
		if err != nil {
			sentry.CaptureException(err)
		}
		return err
	}, log)
}
