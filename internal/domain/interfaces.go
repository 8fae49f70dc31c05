package domain

import (
	"context"
)

// Advisor runs the full recommendation pipeline for one query
type Advisor interface {
	Recommend(ctx context.Context, query HealthQuery) (*HealthReport, error)
}

// ModelRuntime owns the shared model handle and its readiness lifecycle
type ModelRuntime interface {
	Snapshot() *ReadinessSnapshot
	Download(ctx context.Context) error
	Load(ctx context.Context) error
	Prepare(ctx context.Context) error
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetServerConfig() *ServerConfig
	GetModelConfig() *ModelConfig
	GetGenerationConfig() GenerationConfig
	Reload() error
	Validate() error
	ModelPath() string
	ManifestPath() string
	IsProduction() bool
	IsDevelopment() bool
}
