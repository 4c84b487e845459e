// Package mcpserver exposes call-graph analysis to LLM clients over the
// Model Context Protocol.
package mcpserver

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/panbanda/callscope/internal/cache"
	"github.com/panbanda/callscope/internal/service/analysis"
	"github.com/panbanda/callscope/pkg/config"
)

// Server wraps the MCP server and registers the callscope tools.
type Server struct {
	server *mcp.Server
	config *config.Config
	cache  *cache.Cache
	logger *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithConfig sets the analysis configuration used by every tool call.
func WithConfig(cfg *config.Config) Option {
	return func(s *Server) {
		s.config = cfg
	}
}

// WithCache shares a resolved-stream cache across tool calls.
func WithCache(c *cache.Cache) Option {
	return func(s *Server) {
		s.cache = c
	}
}

// WithLogger sets the logger; stdout belongs to the protocol, so it must
// not write there.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// NewServer creates a new MCP server with all tools and prompts registered.
func NewServer(version string, opts ...Option) *Server {
	if version == "" {
		version = "dev"
	}
	s := &Server{
		config: config.DefaultConfig(),
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.server = mcp.NewServer(
		&mcp.Implementation{
			Name:    "callscope",
			Version: version,
		},
		nil,
	)
	s.registerTools()
	s.registerPrompts()
	return s
}

// Run starts the MCP server over stdio transport.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) analysisService() *analysis.Service {
	return analysis.New(
		analysis.WithConfig(s.config),
		analysis.WithCache(s.cache),
		analysis.WithLogger(s.logger),
	)
}

const (
	toolAnalyzeCallgraph = "analyze_callgraph"
	toolCombineFragments = "combine_fragments"
)

// toolNames lists the registered tools in registration order.
var toolNames = []string{toolAnalyzeCallgraph, toolCombineFragments}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        toolAnalyzeCallgraph,
		Description: describeAnalyzeCallgraph(),
	}, s.handleAnalyzeCallgraph)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        toolCombineFragments,
		Description: describeCombineFragments(),
	}, s.handleCombineFragments)
}
