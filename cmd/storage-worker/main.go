package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/tendant/chi-demo/app"
	"github.com/tendant/simple-upload/internal/httpserver"
	"github.com/tendant/simple-upload/pkg/simpleupload/config"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadWorker(config.WithWorkerEnv())
	if err != nil {
		slog.Error("Failed to load configuration", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	worker, closeRepo, err := cfg.BuildServer(ctx)
	if err != nil {
		slog.Error("Failed to build storage worker", "err", err)
		os.Exit(1)
	}
	defer closeRepo()

	server := app.DefaultApp()

	app.RoutesHealthz(server.R)
	app.RoutesHealthzReady(server.R)

	server.R.Mount("/", worker)

	slog.Info("Storage worker starting", "port", cfg.Port, "env", cfg.Environment, "public_url", cfg.PublicBaseURL)
	if err := httpserver.Run(ctx, ":"+cfg.Port, server.R, slog.Default()); err != nil {
		slog.Error("Server error", "err", err)
		closeRepo()
		os.Exit(1)
	}
}
