package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/health-advisor-server/internal/app"
	"github.com/health-advisor-server/internal/config"
	"github.com/health-advisor-server/internal/logging"
	"github.com/health-advisor-server/internal/webui"
)

func main() {
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger := logging.New(cfg.Logging)

	application, err := app.New(configManager, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize application")
	}
	defer application.Close()

	server, err := webui.NewServer(cfg, application.Advisor, application.Runtime, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create web UI")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Web UI failed")
	}

	logger.Info("Web UI stopped")
}
