// cmd/server/main.go
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/unclebandit/pta-newsletter/internal/ai"
	"github.com/unclebandit/pta-newsletter/internal/config"
	"github.com/unclebandit/pta-newsletter/internal/controller"
	"github.com/unclebandit/pta-newsletter/internal/db"
	"github.com/unclebandit/pta-newsletter/internal/jobs"
	"github.com/unclebandit/pta-newsletter/internal/llm"
	"github.com/unclebandit/pta-newsletter/internal/lock"
	"github.com/unclebandit/pta-newsletter/internal/mailer"
	"github.com/unclebandit/pta-newsletter/internal/metrics"
	"github.com/unclebandit/pta-newsletter/internal/queue"
	"github.com/unclebandit/pta-newsletter/internal/repository"
	"github.com/unclebandit/pta-newsletter/internal/service"
	"github.com/unclebandit/pta-newsletter/internal/validation"
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := db.Open(ctx, cfg.DSN())
	if err != nil {
		log.Error("connecting to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer conn.Close()

	if cfg.RunMigrations {
		if err := db.Migrate(ctx, conn, cfg.MigrationTable, log); err != nil {
			log.Error("running migrations", slog.Any("error", err))
			os.Exit(1)
		}
	}
	store := repository.NewSQLStore(conn)

	var locker lock.Locker = lock.NewLocalLocker()
	if cfg.RedisAddr != "" {
		client, err := lock.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			log.Error("connecting to redis", slog.Any("error", err))
			os.Exit(1)
		}
		defer client.Close()
		locker = lock.NewRedisLocker(client, "pta:")
	}

	provider, err := llm.NewFromConfig(cfg)
	if err != nil {
		log.Error("configuring llm provider", slog.Any("error", err))
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)
	v := validation.New()
	generator := ai.NewGenerator(provider, v, cfg.LLMMaxTokens, log)

	// Without a broker, deliveries run in-process.
	var q queue.Queue
	if cfg.AMQPURL != "" {
		amqpQueue, err := queue.DialAMQP(cfg.AMQPURL, log)
		if err != nil {
			log.Error("connecting to rabbitmq", slog.Any("error", err))
			os.Exit(1)
		}
		q = amqpQueue
	} else {
		memQueue := queue.NewInMemoryQueue(log)
		worker := service.NewDeliveryWorker(store, mailer.New(cfg.SendGridAPIKey, cfg.FromName, cfg.FromEmail, log), m, log)
		if err := queue.StartDeliverySubscriber(memQueue, worker.Handle, log); err != nil {
			log.Error("starting delivery subscriber", slog.Any("error", err))
			os.Exit(1)
		}
		q = memQueue
	}
	defer q.Close()

	campaigns := service.NewCampaignService(store, service.NewCompiler(), q, v, m, log)
	generation := service.NewGenerationService(store, service.NewCollector(store, log), generator, locker, m, log)
	generation.LockTTL = cfg.GenerationTTL

	router := controller.NewRouter(controller.Deps{
		Campaigns:  campaigns,
		Generation: generation,
		Sections:   service.NewSectionService(store, v),
		Content:    service.NewContentService(store, v, m),
		Assistant:  service.NewAssistantService(store, generator, m),
		Metrics:    m,
		JWTSecret:  cfg.JWTSecret,
		Log:        log,
	})

	cron := jobs.NewCronManager(log)
	drafts := &jobs.WeeklyDrafts{Store: store, Campaigns: campaigns, Log: log, Now: time.Now}
	if err := cron.AddWeeklyDrafts(cfg.DraftSchedule, drafts); err != nil {
		log.Error("scheduling weekly drafts", slog.Any("error", err))
		os.Exit(1)
	}
	cron.Start()
	defer cron.Stop()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		// Generation waits on the model.
		WriteTimeout: cfg.LLMTimeout + 30*time.Second,
	}

	go func() {
		log.Info("server running", slog.String("addr", cfg.Addr), slog.String("llm", provider.Name()))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server stopped", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", slog.Any("error", err))
	}
}
