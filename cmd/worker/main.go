package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/tourplanner/tourplanner-backend/config"
	"github.com/tourplanner/tourplanner-backend/internal/bootstrap"
	"github.com/tourplanner/tourplanner-backend/internal/notification"
	"github.com/tourplanner/tourplanner-backend/internal/platform/logger"
	"github.com/tourplanner/tourplanner-backend/internal/users"
)

// The worker delivers queued notifications and periodically requeues
// failed deliveries.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	lg, err := logger.New(cfg.App.Environment, cfg.App.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer lg.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := bootstrap.OpenDB(ctx, bootstrap.DBOptions{DSN: cfg.Database.DSN, MaxConns: 4})
	if err != nil {
		lg.Fatal("database unavailable", "error", err)
	}
	defer db.Close()

	rdb, err := bootstrap.OpenRedis(ctx, bootstrap.RedisOptions{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		lg.Fatal("redis unavailable", "error", err)
	}
	defer rdb.Close()

	var senders []notification.Sender
	if cfg.Notify.EmailAPIURL != "" {
		senders = append(senders, notification.NewEmailSender(cfg.Notify.EmailAPIURL, cfg.Notify.EmailAPIKey, cfg.Notify.EmailFrom))
	}
	if cfg.Notify.WhatsAppAPIURL != "" {
		senders = append(senders, notification.NewWhatsAppSender(cfg.Notify.WhatsAppAPIURL, cfg.Notify.WhatsAppToken))
	}
	if len(senders) == 0 {
		lg.Warn("no notification channel configured, jobs will be dropped")
	}

	worker := notification.NewWorker(
		notification.NewQueue(rdb),
		users.NewRepo(db),
		notification.WorkerOptions{
			MaxAttempts:   cfg.Notify.MaxAttempts,
			RetrySchedule: cfg.Notify.RetrySchedule,
		},
		lg,
		senders...,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return worker.Run(gctx) })
	g.Go(func() error { return worker.RunRetrySweep(gctx) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		lg.Fatal("worker stopped", "error", err)
	}
	lg.Info("notification worker stopped")
}
