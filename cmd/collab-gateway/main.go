package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/acadnet/collab-gateway/internal/directory"
	"github.com/acadnet/collab-gateway/internal/gateway"
	"github.com/acadnet/collab-gateway/pkg/config"
	"github.com/acadnet/collab-gateway/pkg/logging"
)

func main() {
	logger := logging.New(logging.LevelInfo)
	slog.SetDefault(logger)

	cfg, err := config.Load(logger, "config")
	if err != nil {
		logger.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger = logging.New(logging.ParseLevel(cfg.Log.Level))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.Database.URI))
	if err != nil {
		logger.Error("Failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := client.Disconnect(context.Background()); err != nil {
			logger.Error("Database disconnect failed", slog.Any("error", err))
		}
	}()

	dir := directory.NewMongoDirectory(client.Database(cfg.Database.Name))
	verifier := directory.NewJWTVerifier(cfg.Server.Auth.JWTSecret)

	app := gateway.NewApp(logger, ctx, cfg, verifier, dir, dir)
	if err := app.Run(); err != nil {
		logger.Error("Gateway run failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("Gateway shut down successfully.")
}
