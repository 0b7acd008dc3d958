package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"vodscribe.tv/vodscribe/internal/application"
	"vodscribe.tv/vodscribe/internal/config"
	"vodscribe.tv/vodscribe/internal/db"
	"vodscribe.tv/vodscribe/internal/tasks"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Starting scheduler service")

	conf, err := config.LoadConfig(ctx)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

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

	channels, err := dbc.Queries(ctx).ListChannelsByPlatform(ctx, conf.ScheduledPlatform)
	if err != nil {
		slog.Error("failed to list channels", "platform", conf.ScheduledPlatform, "error", err)
		os.Exit(1)
	}
	slog.Info("Scheduling periodic work", "platform", conf.ScheduledPlatform, "channels", len(channels))

	scheduler, err := tasks.BuildScheduler(application.BrokerOpt(*conf), tasks.DefaultRouting(),
		conf.ScheduledPlatform, channels)
	if err != nil {
		slog.Error("failed to build scheduler", "error", err)
		os.Exit(1)
	}

	if err := scheduler.Start(); err != nil {
		slog.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}

	<-ctx.Done()
	slog.Info("Shutting down scheduler")
	scheduler.Shutdown()
}
