// Package app wires configuration, storage, inference and the advisor
// service into the components shared by every delivery surface.
package app

import (
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/health-advisor-server/internal/config"
	"github.com/health-advisor-server/internal/domain"
	"github.com/health-advisor-server/internal/inference"
	"github.com/health-advisor-server/internal/model"
	"github.com/health-advisor-server/internal/modelstore"
	"github.com/health-advisor-server/internal/prompt"
	"github.com/health-advisor-server/internal/service"
)

// App holds the long-lived components of one process.
type App struct {
	Config   *domain.Config
	Logger   *logrus.Logger
	Manifest *modelstore.Manifest
	Store    *modelstore.Store
	Runtime  *model.Runtime
	Gateway  *inference.Gateway
	Composer *prompt.Composer
	Advisor  *service.AdvisorService
}

// New builds the component graph. The model is not downloaded or loaded
// here; callers decide when to call Runtime.Prepare.
func New(configManager *config.Manager, logger *logrus.Logger) (*App, error) {
	cfg := configManager.GetConfig()

	if err := configManager.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	manifest, err := modelstore.OpenManifest(configManager.ManifestPath(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open model manifest: %w", err)
	}

	// Downloads can run for a long time; cancellation comes from ctx.
	httpClient := &http.Client{}

	downloader := modelstore.NewDownloader(cfg.Store.HubURL, httpClient, logger)
	store := modelstore.NewStore(downloader, manifest, cfg.Model.SourceRepo, cfg.Model.FileName, configManager.ModelPath(), logger)

	backend, err := inference.NewBackend(cfg, store, httpClient)
	if err != nil {
		manifest.Close()
		return nil, fmt.Errorf("failed to create inference backend: %w", err)
	}

	runtime := model.NewRuntime(backend, cfg.Model.Name, logger)
	gateway := inference.NewGateway(backend, cfg.Generation, cfg.Inference, runtime.Ready, logger)

	composer, err := prompt.NewComposer(cfg.Prompt)
	if err != nil {
		manifest.Close()
		return nil, fmt.Errorf("failed to create prompt composer: %w", err)
	}

	advisor := service.NewAdvisorService(logger, composer, gateway, cfg.Validation)

	logger.WithFields(logrus.Fields{
		"backend":        backend.Name(),
		"model":          cfg.Model.Name,
		"schema_version": composer.DefaultSchema().Version,
		"envelope":       cfg.Prompt.Envelope,
	}).Info("Application components initialized")

	return &App{
		Config:   cfg,
		Logger:   logger,
		Manifest: manifest,
		Store:    store,
		Runtime:  runtime,
		Gateway:  gateway,
		Composer: composer,
		Advisor:  advisor,
	}, nil
}

// Close releases resources held by the application.
func (a *App) Close() error {
	return a.Manifest.Close()
}
