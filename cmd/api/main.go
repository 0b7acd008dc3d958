package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vodscribe.tv/vodscribe/internal/api"
	"vodscribe.tv/vodscribe/internal/application"
	"vodscribe.tv/vodscribe/internal/clipqueue"
	"vodscribe.tv/vodscribe/internal/config"
	"vodscribe.tv/vodscribe/internal/db"
	"vodscribe.tv/vodscribe/internal/jobstore"
	"vodscribe.tv/vodscribe/internal/tasks"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Starting internal API service")

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

	jobs, err := jobstore.New(conf.CacheDir)
	if err != nil {
		slog.Error("failed to open job store", "dir", conf.CacheDir, "error", err)
		os.Exit(1)
	}

	rdb, err := application.OpenRedis(ctx, *conf)
	if err != nil {
		slog.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer rdb.Close()

	// producer-only broker; the worker processes own the task registry
	broker := tasks.NewBroker(application.BrokerOpt(*conf), tasks.DefaultRouting(), nil)
	defer broker.Close()

	server := api.NewServer(dbc.Queries(ctx), jobs, broker, clipqueue.New(rdb), conf.APIKey)
	e := server.Router()

	go func() {
		addr := fmt.Sprintf(":%d", conf.APIServerPort)
		slog.Info("Internal API listening", "addr", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("api server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down internal API")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shut down cleanly", "error", err)
	}
}
