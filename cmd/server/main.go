package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/health-advisor-server/internal/api"
	"github.com/health-advisor-server/internal/app"
	"github.com/health-advisor-server/internal/config"
	"github.com/health-advisor-server/internal/logging"
)

func main() {
	// Load configuration
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger := logging.New(cfg.Logging)
	logger.WithFields(logrus.Fields{"host": cfg.Server.Host, "port": cfg.Server.Port}).Info("Starting AI Health Advisor API")

	application, err := app.New(configManager, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize application")
	}
	defer application.Close()

	// Create server
	server, err := api.NewServer(cfg, application.Advisor, application.Runtime, application.Composer.DefaultSchema(), logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create server")
	}

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	// Start server; the model loads in the background
	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}

	logger.Info("Server stopped")
}
