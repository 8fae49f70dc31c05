package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/health-advisor-server/internal/domain"
)

// EnvPrefix is prepended to every environment override, e.g.
// HEALTH_ADVISOR_MODEL_BACKEND.
const EnvPrefix = "HEALTH_ADVISOR"

// Manager implements the ConfigManager interface using Viper
type Manager struct {
	v      *viper.Viper
	config *domain.Config
}

// NewManager creates a new configuration manager
func NewManager() (*Manager, error) {
	// A missing .env is the normal case outside development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	m := &Manager{v: viper.New()}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// NewManagerFromFile loads configuration from an explicit file path on top of
// defaults and environment overrides.
func NewManagerFromFile(path string) (*Manager, error) {
	m := &Manager{v: viper.New()}
	m.v.SetConfigFile(path)
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from various sources
func (m *Manager) loadConfig() error {
	v := m.v

	if v.ConfigFileUsed() == "" {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/health-advisor/")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	m.setDefaults()

	// Config file is optional; defaults and environment variables suffice.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &domain.Config{}
	if err := v.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.config = config
	return nil
}

// setDefaults sets default configuration values
func (m *Manager) setDefaults() {
	v := m.v

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "10m")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.allow_origins", []string{"*"})

	// Model defaults
	v.SetDefault("model.backend", "ollama")
	v.SetDefault("model.source_repo", "hugging-quants/Llama-3.2-1B-Instruct-Q4_K_M-GGUF")
	v.SetDefault("model.file_name", "llama-3.2-1b-instruct-q4_k_m.gguf")
	v.SetDefault("model.path", "")
	v.SetDefault("model.name", "hf.co/hugging-quants/Llama-3.2-1B-Instruct-Q4_K_M-GGUF")
	v.SetDefault("model.base_url", "http://localhost:11434")
	v.SetDefault("model.api_key", "")
	v.SetDefault("model.keep_alive", "30m")

	// Generation defaults
	v.SetDefault("generation.context_size", 4096)
	v.SetDefault("generation.threads", 4)
	v.SetDefault("generation.batch_size", 512)
	v.SetDefault("generation.gpu_layers", -1)
	v.SetDefault("generation.max_tokens", 400)
	v.SetDefault("generation.temperature", 0.1)
	v.SetDefault("generation.top_p", 0.85)
	v.SetDefault("generation.repeat_penalty", 1.1)
	v.SetDefault("generation.stop", []string{"</s>", "<|end|>", "\n\nUser:", "\n\nHuman:"})

	// Inference defaults
	v.SetDefault("inference.max_concurrent", 1)
	v.SetDefault("inference.timeout", "5m")
	v.SetDefault("inference.breaker_failures", 3)
	v.SetDefault("inference.breaker_cooldown", "60s")

	// Prompt defaults
	v.SetDefault("prompt.schema_version", "standard-4")
	v.SetDefault("prompt.schema_dir", "")
	v.SetDefault("prompt.envelope", "llama3")
	// Ollama raw mode and llama-server /v1/completions both prepend the
	// tokenizer's begin-of-text token.
	v.SetDefault("prompt.omit_bos", true)

	// Validation defaults
	v.SetDefault("validation.api_min_length", 50)
	v.SetDefault("validation.form_min_length", 10)

	// Store defaults
	homeDir, _ := os.UserHomeDir()
	v.SetDefault("store.data_dir", filepath.Join(homeDir, ".health-advisor"))
	v.SetDefault("store.hub_url", "https://huggingface.co")

	// Rate limit defaults
	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.requests_per_minute", 30)
	v.SetDefault("ratelimit.burst", 5)
	v.SetDefault("ratelimit.max_clients", 4096)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// MCP defaults
	v.SetDefault("mcp.server_name", "health-advisor-mcp")
	v.SetDefault("mcp.server_version", "v1.1.0")
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetServerConfig returns server configuration
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// GetModelConfig returns model configuration
func (m *Manager) GetModelConfig() *domain.ModelConfig {
	return &m.config.Model
}

// GetGenerationConfig returns a copy of the sampling parameters
func (m *Manager) GetGenerationConfig() domain.GenerationConfig {
	g := m.config.Generation
	g.Stop = append([]string(nil), g.Stop...)
	return g
}

// Reload reloads the configuration
func (m *Manager) Reload() error {
	return m.loadConfig()
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	config := m.config

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	switch config.Model.Backend {
	case "ollama", "openai":
	default:
		return fmt.Errorf("unsupported model backend: %q", config.Model.Backend)
	}
	if config.Model.BaseURL == "" {
		return fmt.Errorf("model base URL is required")
	}
	if config.Model.Name == "" {
		return fmt.Errorf("model name is required")
	}
	if config.Model.Backend == "openai" && (config.Model.SourceRepo == "" || config.Model.FileName == "") {
		return fmt.Errorf("model source repository and file name are required for the openai backend")
	}

	gen := config.Generation
	if gen.ContextSize <= 0 {
		return fmt.Errorf("invalid context size: %d", gen.ContextSize)
	}
	if gen.MaxTokens <= 0 || gen.MaxTokens > gen.ContextSize {
		return fmt.Errorf("invalid max tokens: %d", gen.MaxTokens)
	}
	if gen.Temperature < 0 || gen.Temperature > 2 {
		return fmt.Errorf("invalid temperature: %v", gen.Temperature)
	}
	if gen.TopP <= 0 || gen.TopP > 1 {
		return fmt.Errorf("invalid top_p: %v", gen.TopP)
	}
	if gen.RepeatPenalty <= 0 {
		return fmt.Errorf("invalid repeat penalty: %v", gen.RepeatPenalty)
	}

	if config.Inference.MaxConcurrent <= 0 {
		return fmt.Errorf("inference max_concurrent must be positive")
	}
	if config.Inference.Timeout <= 0 {
		return fmt.Errorf("inference timeout must be positive")
	}

	if config.Prompt.SchemaVersion == "" {
		return fmt.Errorf("prompt schema version is required")
	}

	if config.Validation.APIMinLength < 0 || config.Validation.FormMinLength < 0 {
		return fmt.Errorf("validation minimum lengths must not be negative")
	}

	if config.Store.DataDir == "" {
		return fmt.Errorf("store data directory is required")
	}

	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	return nil
}

// ModelPath returns the local weights path, defaulting to
// <data_dir>/models/<file_name>.
func (m *Manager) ModelPath() string {
	if m.config.Model.Path != "" {
		return m.config.Model.Path
	}
	return filepath.Join(m.config.Store.DataDir, "models", m.config.Model.FileName)
}

// ManifestPath returns the path to the model manifest SQLite database.
func (m *Manager) ManifestPath() string {
	return filepath.Join(m.config.Store.DataDir, "manifest.db")
}

// EnsureDataDir creates the data directory and the model directory.
func (m *Manager) EnsureDataDir() error {
	if err := os.MkdirAll(m.config.Store.DataDir, 0755); err != nil {
		return err
	}
	return os.MkdirAll(filepath.Dir(m.ModelPath()), 0755)
}

// IsProduction returns true if running in production mode
func (m *Manager) IsProduction() bool {
	return strings.ToLower(m.v.GetString("environment")) == "production"
}

// IsDevelopment returns true if running in development mode
func (m *Manager) IsDevelopment() bool {
	env := strings.ToLower(m.v.GetString("environment"))
	return env == "development" || env == "dev" || env == ""
}
