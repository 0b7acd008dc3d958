package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vodscribe.tv/vodscribe/internal/application"
	"vodscribe.tv/vodscribe/internal/config"
	"vodscribe.tv/vodscribe/internal/db"
	"vodscribe.tv/vodscribe/internal/jobstore"
	"vodscribe.tv/vodscribe/internal/parse"
	"vodscribe.tv/vodscribe/internal/pipeline"
	"vodscribe.tv/vodscribe/internal/platform"
	"vodscribe.tv/vodscribe/internal/tasks"
	"vodscribe.tv/vodscribe/internal/transcriber"
	"vodscribe.tv/vodscribe/pkg/ytdlp"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Starting worker service")

	conf, err := config.LoadConfig(ctx)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	media := &ytdlp.Client{}
	updateCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	if err := media.Update(updateCtx); err != nil {
		slog.Warn("failed to update yt-dlp", "error", err)
	} else {
		slog.Info("yt-dlp updated successfully")
	}
	cancel()

	pool, err := application.OpenDBPoolWithRetry(ctx, *conf)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	dbc, err := db.NewDatabaseConnection(ctx, pool)
	if err != nil {
		slog.Error("failed to create database connection", "error", err)
		os.Exit(1)
	}
	defer dbc.Close()
	queries := dbc.Queries(ctx)

	jobs, err := jobstore.New(conf.CacheDir)
	if err != nil {
		slog.Error("failed to open job store", "dir", conf.CacheDir, "error", err)
		os.Exit(1)
	}

	routing := tasks.DefaultRouting()
	registry := tasks.NewRegistry()
	broker := tasks.NewBroker(application.BrokerOpt(*conf), routing, registry)
	defer broker.Close()

	deps := &pipeline.Deps{
		Store:        queries,
		Media:        media,
		Internal:     transcriber.NewInternalClient(conf.APIBaseURL, conf.APIKey, conf.CacheDir),
		Speech:       transcriber.NewClient(conf.TranscriberURL),
		Indexer:      parse.NewIndexer(queries),
		Jobs:         jobs,
		Live:         platform.NewLiveStatusClient(conf.LiveStatusURL),
		Broker:       broker,
		CacheDir:     conf.CacheDir,
		JobRetention: time.Duration(conf.JobRetentionDays) * 24 * time.Hour,
	}
	registry.MustRegister(deps.Tasks()...)

	queues, err := tasks.ParseQueues(conf.WorkerQueues)
	if err != nil {
		slog.Error("invalid WORKER_QUEUES", "value", conf.WorkerQueues, "error", err)
		os.Exit(1)
	}

	srv := tasks.NewServer(application.BrokerOpt(*conf), conf.WorkerConcurrency, queues)
	slog.Info("Worker ready", "queues", queues, "concurrency", conf.WorkerConcurrency,
		"tasks", registry.Names())

	if err := srv.Start(broker.Mux()); err != nil {
		slog.Error("failed to start worker", "error", err)
		os.Exit(1)
	}

	<-ctx.Done()
	slog.Info("Shutting down worker")
	srv.Shutdown()
}
