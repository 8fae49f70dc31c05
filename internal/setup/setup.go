// Package setup registers the MCP server with desktop clients and reports
// local installation status.
package setup

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/health-advisor-server/internal/config"
	"github.com/health-advisor-server/internal/modelstore"
)

// ServerKey names this server in client configuration files.
const ServerKey = "health-advisor"

// ClientConfig is the MCP client configuration file structure.
type ClientConfig struct {
	MCPServers map[string]ServerEntry `json:"mcpServers"`
}

// ServerEntry is a single MCP server launch command.
type ServerEntry struct {
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// Options controls registration.
type Options struct {
	BinaryPath  string
	DataDir     string
	Backend     string
	AutoConfirm bool
}

// DesktopConfigPath returns the desktop client's MCP config file for this OS.
func DesktopConfigPath() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support", "Claude")
	case "linux":
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			configDir = filepath.Join(xdg, "Claude")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config", "Claude")
		}
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		configDir = filepath.Join(appData, "Claude")
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}

	return filepath.Join(configDir, "claude_desktop_config.json"), nil
}

// LoadClientConfig reads a client config; a missing file yields an empty one.
func LoadClientConfig(path string) (*ClientConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &ClientConfig{MCPServers: make(map[string]ServerEntry)}, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg ClientConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if cfg.MCPServers == nil {
		cfg.MCPServers = make(map[string]ServerEntry)
	}
	return &cfg, nil
}

// SaveClientConfig writes cfg to path, creating the directory if needed.
func SaveClientConfig(path string, cfg *ClientConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Register adds or replaces this server's entry in the client config at
// path, leaving other servers untouched.
func Register(path string, opts Options) error {
	if opts.BinaryPath == "" {
		return fmt.Errorf("server binary path is required")
	}

	cfg, err := LoadClientConfig(path)
	if err != nil {
		return err
	}

	entry := ServerEntry{
		Command: opts.BinaryPath,
		Env:     make(map[string]string),
	}
	if opts.DataDir != "" {
		entry.Env[config.EnvPrefix+"_STORE_DATA_DIR"] = opts.DataDir
	}
	if opts.Backend != "" {
		entry.Env[config.EnvPrefix+"_MODEL_BACKEND"] = opts.Backend
	}

	cfg.MCPServers[ServerKey] = entry
	return SaveClientConfig(path, cfg)
}

// Status is the local installation state.
type Status struct {
	ClientConfigPath string
	Registered       bool
	ServerPath       string
	DataDir          string
	ModelPath        string
	ModelPresent     bool
	Artifacts        []*modelstore.Artifact
	Issues           []string
}

// GetStatus inspects the client config at clientPath, the data directory and
// the model manifest.
func GetStatus(ctx context.Context, clientPath string, configManager *config.Manager, manifest *modelstore.Manifest) *Status {
	status := &Status{
		ClientConfigPath: clientPath,
		DataDir:          configManager.GetConfig().Store.DataDir,
		ModelPath:        configManager.ModelPath(),
	}

	if clientPath != "" {
		cfg, err := LoadClientConfig(clientPath)
		if err != nil {
			status.Issues = append(status.Issues, fmt.Sprintf("Could not load client config: %v", err))
		} else if entry, ok := cfg.MCPServers[ServerKey]; ok {
			status.Registered = true
			status.ServerPath = entry.Command
			if _, err := os.Stat(entry.Command); os.IsNotExist(err) {
				status.Issues = append(status.Issues, fmt.Sprintf("Server binary not found at: %s", entry.Command))
			}
		}
	}

	if _, err := os.Stat(status.DataDir); os.IsNotExist(err) {
		status.Issues = append(status.Issues, fmt.Sprintf("Data directory does not exist: %s", status.DataDir))
	}

	if _, err := os.Stat(status.ModelPath); err == nil {
		status.ModelPresent = true
	}

	if manifest != nil {
		artifacts, err := manifest.List(ctx)
		if err != nil {
			status.Issues = append(status.Issues, fmt.Sprintf("Could not read model manifest: %v", err))
		}
		status.Artifacts = artifacts
	}

	return status
}
