package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/agenthands/examina/internal/config"
	"github.com/agenthands/examina/internal/core"
	"github.com/agenthands/examina/internal/logging"
	"github.com/agenthands/examina/internal/server"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using defaults")
	}

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config/config.toml"
	}
	cfg, err := config.LoadOrDefault(cfgPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	cfg.ApplyEnv()
	if port := os.Getenv("PORT"); port != "" {
		cfg.Server.Addr = ":" + port
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine, err := core.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open engine", zap.Error(err))
	}
	defer func() {
		if err := engine.Close(context.Background()); err != nil {
			logger.Error("failed to close engine", zap.Error(err))
		}
	}()

	srv := server.NewServer(engine, logger.Named("http"))
	if err := srv.Run(ctx, cfg.Server.Addr, cfg.Server.Mode); err != nil {
		logger.Error("server stopped", zap.Error(err))
	}
}
