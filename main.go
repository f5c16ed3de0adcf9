package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nsqio/go-nsq"

	"talentrag/apps/backend/internal/app"
	"talentrag/apps/backend/internal/config"
	"talentrag/apps/backend/internal/logger"
)

func main() {
	// Initialize structured logger
	log := slog.New(logger.NewContextHandler(slog.NewJSONHandler(os.Stdout, nil)))
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		slog.Error("application exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	deps, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer deps.DB.Close()
	defer deps.NSQProducer.Stop()

	application, err := app.New(cfg, deps.DB, deps.Index, deps.NSQProducer, log, nil)
	if err != nil {
		return fmt.Errorf("app: %w", err)
	}

	if cfg.EnableIngestWorker {
		consumer, err := startIngestWorker(cfg, application)
		if err != nil {
			return err
		}
		defer consumer.Stop()
	}

	if !cfg.EnableAPI {
		slog.Info("api disabled, running worker only")
		<-ctx.Done()
		return nil
	}
	return application.Run(ctx)
}

func startIngestWorker(cfg *config.Config, application *app.App) (*nsq.Consumer, error) {
	nsqCfg := nsq.NewConfig()
	nsqCfg.MaxInFlight = cfg.IngestConcurrency
	nsqCfg.MaxAttempts = 0 // the consumer decides when to give up

	consumer, err := nsq.NewConsumer(config.TopicIngestDocument, config.ChannelIngestWorker, nsqCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create NSQ ingest consumer: %w", err)
	}
	consumer.AddConcurrentHandlers(application.IngestConsumer, cfg.IngestConcurrency)

	if err := consumer.ConnectToNSQLookupd(cfg.NSQLookupd); err != nil {
		consumer.Stop()
		return nil, fmt.Errorf("failed to connect to NSQLookupd: %w", err)
	}
	slog.Info("NSQ ingest consumer connected", "topic", config.TopicIngestDocument, "concurrency", cfg.IngestConcurrency)
	return consumer, nil
}
