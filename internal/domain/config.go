package domain

import (
	"time"
)

// Config represents the main application configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Model      ModelConfig      `mapstructure:"model"`
	Generation GenerationConfig `mapstructure:"generation"`
	Inference  InferenceConfig  `mapstructure:"inference"`
	Prompt     PromptConfig     `mapstructure:"prompt"`
	Validation ValidationConfig `mapstructure:"validation"`
	Store      StoreConfig      `mapstructure:"store"`
	RateLimit  RateLimitConfig  `mapstructure:"ratelimit"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	MCP        MCPConfig        `mapstructure:"mcp"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	AllowOrigins []string      `mapstructure:"allow_origins"`
}

// ModelConfig identifies the model weights and the backend serving them.
type ModelConfig struct {
	Backend    string        `mapstructure:"backend"`     // "ollama", "openai"
	SourceRepo string        `mapstructure:"source_repo"` // Hugging Face repository
	FileName   string        `mapstructure:"file_name"`   // GGUF file inside the repository
	Path       string        `mapstructure:"path"`        // local weights path, defaults under store.data_dir
	Name       string        `mapstructure:"name"`        // model name as known to the backend
	BaseURL    string        `mapstructure:"base_url"`
	APIKey     string        `mapstructure:"api_key"`
	KeepAlive  time.Duration `mapstructure:"keep_alive"`
}

// GenerationConfig holds the sampling parameters. It is fixed for the
// lifetime of the loaded model.
type GenerationConfig struct {
	ContextSize   int      `mapstructure:"context_size" json:"context_size"`
	Threads       int      `mapstructure:"threads" json:"threads"`
	BatchSize     int      `mapstructure:"batch_size" json:"batch_size"`
	GPULayers     int      `mapstructure:"gpu_layers" json:"gpu_layers"`
	MaxTokens     int      `mapstructure:"max_tokens" json:"max_tokens"`
	Temperature   float64  `mapstructure:"temperature" json:"temperature"`
	TopP          float64  `mapstructure:"top_p" json:"top_p"`
	RepeatPenalty float64  `mapstructure:"repeat_penalty" json:"repeat_penalty"`
	Stop          []string `mapstructure:"stop" json:"stop"`
}

// WithStop returns a copy of the config whose stop list also contains extra,
// without duplicates and in first-seen order.
func (g GenerationConfig) WithStop(extra ...string) GenerationConfig {
	seen := make(map[string]bool, len(g.Stop)+len(extra))
	stops := make([]string, 0, len(g.Stop)+len(extra))
	for _, s := range append(append([]string{}, g.Stop...), extra...) {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		stops = append(stops, s)
	}
	g.Stop = stops
	return g
}

// InferenceConfig controls admission and failure handling around the backend.
type InferenceConfig struct {
	MaxConcurrent   int64         `mapstructure:"max_concurrent"`
	Timeout         time.Duration `mapstructure:"timeout"`
	BreakerFailures uint32        `mapstructure:"breaker_failures"`
	BreakerCooldown time.Duration `mapstructure:"breaker_cooldown"`
}

// PromptConfig selects the report schema and the chat envelope.
type PromptConfig struct {
	SchemaVersion string `mapstructure:"schema_version"`
	SchemaDir     string `mapstructure:"schema_dir"`
	Envelope      string `mapstructure:"envelope"`
	OmitBOS       bool   `mapstructure:"omit_bos"`
}

// ValidationConfig holds minimum input lengths for each delivery surface.
type ValidationConfig struct {
	APIMinLength  int `mapstructure:"api_min_length"`
	FormMinLength int `mapstructure:"form_min_length"`
}

// StoreConfig locates downloaded model artifacts and their manifest.
type StoreConfig struct {
	DataDir string `mapstructure:"data_dir"`
	HubURL  string `mapstructure:"hub_url"`
}

// RateLimitConfig configures per-client request admission on the HTTP surfaces
type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute"`
	Burst             int  `mapstructure:"burst"`
	MaxClients        int  `mapstructure:"max_clients"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MCPConfig represents MCP server configuration
type MCPConfig struct {
	ServerName    string `mapstructure:"server_name"`
	ServerVersion string `mapstructure:"server_version"`
}
