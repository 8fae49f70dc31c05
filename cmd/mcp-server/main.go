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
	"github.com/health-advisor-server/internal/mcpserver"
	"github.com/health-advisor-server/internal/setup"
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

	// stdout carries the protocol; logs go to stderr
	logger := logging.New(cfg.Logging)

	application, err := app.New(configManager, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize application")
	}
	defer application.Close()

	// Setup subcommand
	if len(os.Args) > 1 && os.Args[1] == "setup" {
		cli := setup.NewCLI(configManager, application.Manifest, application.Runtime, os.Stdin, os.Stdout)
		if err := cli.Run(context.Background(), os.Args[2:]); err != nil {
			logger.WithError(err).Fatal("Setup failed")
		}
		return
	}

	server := mcpserver.NewServer(cfg.MCP, application.Advisor, application.Runtime, logger)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down MCP server...")
		cancel()
	}()

	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Fatal("MCP server failed")
	}

	logger.Info("MCP server stopped")
}
