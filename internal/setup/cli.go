package setup

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/health-advisor-server/internal/config"
	"github.com/health-advisor-server/internal/domain"
	"github.com/health-advisor-server/internal/modelstore"
)

// CLI provides the setup subcommands.
type CLI struct {
	configManager *config.Manager
	manifest      *modelstore.Manifest
	runtime       domain.ModelRuntime
	reader        *bufio.Reader
	out           io.Writer

	// ClientConfigPath overrides the desktop client config location.
	ClientConfigPath string
}

// NewCLI creates a setup CLI.
func NewCLI(configManager *config.Manager, manifest *modelstore.Manifest, runtime domain.ModelRuntime, in io.Reader, out io.Writer) *CLI {
	return &CLI{
		configManager: configManager,
		manifest:      manifest,
		runtime:       runtime,
		reader:        bufio.NewReader(in),
		out:           out,
	}
}

// Run executes the setup command named by args[0].
func (c *CLI) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return c.showHelp()
	}

	switch args[0] {
	case "desktop":
		return c.setupDesktop(args[1:])
	case "status":
		return c.showStatus(ctx)
	case "model":
		return c.fetchModel(ctx)
	case "help", "--help", "-h":
		return c.showHelp()
	default:
		fmt.Fprintf(c.out, "Unknown command: %s\n\n", args[0])
		return c.showHelp()
	}
}

func (c *CLI) showHelp() error {
	fmt.Fprint(c.out, `
AI Health Advisor MCP Server Setup

Usage:
  mcp-server setup <command> [options]

Commands:
  desktop   Register the server with the desktop MCP client
  status    Show registration, data directory and model status
  model     Download the model weights ahead of first use

Examples:
  mcp-server setup desktop --auto
  mcp-server setup desktop --binary /usr/local/bin/mcp-server --data-dir ~/.health-advisor
  mcp-server setup model
`)
	return nil
}

func (c *CLI) clientPath() (string, error) {
	if c.ClientConfigPath != "" {
		return c.ClientConfigPath, nil
	}
	return DesktopConfigPath()
}

func (c *CLI) setupDesktop(args []string) error {
	cfg := c.configManager.GetConfig()
	opts := Options{
		DataDir: cfg.Store.DataDir,
		Backend: cfg.Model.Backend,
	}

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--binary", "-b":
			if i+1 < len(args) {
				opts.BinaryPath = args[i+1]
				i++
			}
		case "--data-dir", "-d":
			if i+1 < len(args) {
				opts.DataDir = args[i+1]
				i++
			}
		case "--auto", "-y":
			opts.AutoConfirm = true
		}
	}

	if opts.BinaryPath == "" {
		if execPath, err := os.Executable(); err == nil {
			opts.BinaryPath = execPath
		}
	}

	path, err := c.clientPath()
	if err != nil {
		return err
	}

	fmt.Fprintln(c.out, "Desktop Client Configuration")
	fmt.Fprintln(c.out, "============================")
	fmt.Fprintf(c.out, "Config file: %s\n", path)
	fmt.Fprintf(c.out, "Server binary: %s\n", opts.BinaryPath)
	fmt.Fprintf(c.out, "Data directory: %s\n\n", opts.DataDir)

	if !opts.AutoConfirm {
		fmt.Fprint(c.out, "Proceed with configuration? [Y/n]: ")
		response, _ := c.reader.ReadString('\n')
		response = strings.TrimSpace(strings.ToLower(response))
		if response != "" && response != "y" && response != "yes" {
			fmt.Fprintln(c.out, "Configuration cancelled.")
			return nil
		}
	}

	if err := Register(path, opts); err != nil {
		return fmt.Errorf("failed to configure desktop client: %w", err)
	}

	fmt.Fprintln(c.out, "✓ Desktop client configured. Restart it to load the get_health_recommendations tool.")
	return nil
}

func (c *CLI) showStatus(ctx context.Context) error {
	path, err := c.clientPath()
	if err != nil {
		path = ""
	}
	status := GetStatus(ctx, path, c.configManager, c.manifest)

	fmt.Fprintln(c.out, "AI Health Advisor Status")
	fmt.Fprintln(c.out, "========================")
	fmt.Fprintf(c.out, "Client config: %s\n", status.ClientConfigPath)
	if status.Registered {
		fmt.Fprintf(c.out, "  Registered: ✓ (%s)\n", status.ServerPath)
	} else {
		fmt.Fprintln(c.out, "  Registered: ✗")
	}
	fmt.Fprintf(c.out, "Data directory: %s\n", status.DataDir)
	fmt.Fprintf(c.out, "Model file: %s\n", status.ModelPath)
	if status.ModelPresent {
		fmt.Fprintln(c.out, "  Present: ✓")
	} else {
		fmt.Fprintln(c.out, "  Present: - not downloaded")
	}

	if len(status.Artifacts) > 0 {
		fmt.Fprintln(c.out, "Downloaded artifacts:")
		for _, a := range status.Artifacts {
			fmt.Fprintf(c.out, "  %s/%s  %d bytes  sha256 %s  %s\n",
				a.SourceRepo, a.FileName, a.SizeBytes, a.SHA256, a.DownloadedAt.Format("2006-01-02 15:04"))
		}
	}

	if len(status.Issues) > 0 {
		fmt.Fprintln(c.out, "Issues:")
		for _, issue := range status.Issues {
			fmt.Fprintf(c.out, "  ⚠ %s\n", issue)
		}
	}
	return nil
}

func (c *CLI) fetchModel(ctx context.Context) error {
	fmt.Fprintln(c.out, "Downloading model weights...")
	if err := c.runtime.Download(ctx); err != nil {
		return fmt.Errorf("model download failed: %w", err)
	}

	snap := c.runtime.Snapshot()
	fmt.Fprintf(c.out, "✓ Model %s is %s\n", snap.Model, snap.State)
	return nil
}
