// Package mcpserver exposes the advisor as Model Context Protocol tools over
// stdio.
package mcpserver

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/health-advisor-server/internal/domain"
)

const (
	ToolRecommendations = "get_health_recommendations"
	ToolModelStatus     = "get_model_status"
)

// Advisor runs the recommendation pipeline for structured input.
type Advisor interface {
	RecommendWithSchema(ctx context.Context, q domain.HealthQuery, schemaVersion string) (*domain.HealthReport, error)
}

// Server wraps the MCP SDK server and its tool handlers.
type Server struct {
	config    domain.MCPConfig
	advisor   Advisor
	runtime   domain.ModelRuntime
	logger    *logrus.Logger
	mcpServer *mcp.Server
}

// NewServer creates an MCP server with all tools registered.
func NewServer(cfg domain.MCPConfig, advisor Advisor, runtime domain.ModelRuntime, logger *logrus.Logger) *Server {
	s := &Server{
		config:  cfg,
		advisor: advisor,
		runtime: runtime,
		logger:  logger,
	}

	serverInfo := &mcp.Implementation{
		Name:    cfg.ServerName,
		Version: cfg.ServerVersion,
	}
	s.mcpServer = mcp.NewServer(serverInfo, nil)
	s.registerTools()

	return s
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name: ToolRecommendations,
		Description: "Generate general wellness recommendations from health data. " +
			"Returns a report of short-term risks, long-term risks, warnings and advice. " +
			"Not a substitute for professional medical advice.",
	}, s.handleRecommendations)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        ToolModelStatus,
		Description: "Report whether the language model is downloaded, loading, ready or failed.",
	}, s.handleModelStatus)

	s.logger.WithField("tool_count", 2).Debug("Registered MCP tools")
}

// Start loads the model in the background and serves MCP over stdio until
// ctx is cancelled or the client disconnects.
func (s *Server) Start(ctx context.Context) error {
	s.logger.WithFields(logrus.Fields{
		"server_name":    s.config.ServerName,
		"server_version": s.config.ServerVersion,
	}).Info("Starting MCP server on stdio")

	go func() {
		if err := s.runtime.Prepare(ctx); err != nil && !errors.Is(err, domain.ErrBusy) {
			s.logger.WithError(err).Error("Model failed to become ready")
		}
	}()

	if err := s.mcpServer.Run(ctx, &mcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}
