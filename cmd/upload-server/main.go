package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/jwtauth"
	"github.com/joho/godotenv"
	"github.com/tendant/chi-demo/app"
	"github.com/tendant/simple-upload/internal/httpserver"
	"github.com/tendant/simple-upload/pkg/simpleupload/api"
	"github.com/tendant/simple-upload/pkg/simpleupload/config"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(config.WithEnv())
	if err != nil {
		slog.Error("Failed to load configuration", "err", err)
		os.Exit(1)
	}

	svc, err := cfg.BuildService()
	if err != nil {
		slog.Error("Failed to build upload service", "err", err)
		os.Exit(1)
	}

	userAuth := jwtauth.New("HS256", []byte(cfg.UserJWTSecret), nil)
	handler := api.NewHandler(svc, userAuth, api.WithManagerRoles(cfg.ManagerRoles...))

	server := app.DefaultApp()

	app.RoutesHealthz(server.R)
	app.RoutesHealthzReady(server.R)

	server.R.Mount("/api/v1", handler.Routes())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("Upload server starting", "port", cfg.Port, "env", cfg.Environment, "worker", cfg.WorkerBaseURL)
	if err := httpserver.Run(ctx, ":"+cfg.Port, server.R, slog.Default()); err != nil {
		slog.Error("Server error", "err", err)
		os.Exit(1)
	}
}
