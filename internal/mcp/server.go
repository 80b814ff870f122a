// Package mcp provides an MCP (Model Context Protocol) server exposing the
// echild simulation engine as tools.
package mcp

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"

	"github.com/echild-lab/echild/internal/domain"
	"github.com/echild-lab/echild/internal/logging"
	"github.com/echild-lab/echild/internal/ratelimit"
	"github.com/echild-lab/echild/internal/results"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// DefaultMaxDraws bounds the sentences a single echild_sweep may draw in total.
const DefaultMaxDraws = 50_000_000

// Server wraps the MCP SDK server and provides echild-specific tools.
type Server struct {
	server       *sdk.Server
	logger       *slog.Logger
	toolLimiters ratelimit.ToolLimiters

	corpusPath string
	resultsDB  string
	workers    int
	maxDraws   int64

	// sweepMu serializes sweeps against the shared corpus.
	sweepMu sync.Mutex
	corpus  *domain.Store
}

// Config holds server configuration.
type Config struct {
	Name       string // Server name (e.g., "echild")
	Version    string // Server version
	CorpusPath string // Flat-file corpus used when a sweep carries no inline corpus
	OutputDir  string // Directory holding the result database
	Workers    int    // Concurrent trials per sweep
	MaxDraws   int64  // Upper bound on sentences drawn per sweep; 0 uses DefaultMaxDraws
	Logger     *slog.Logger
}

// NewServer creates a new MCP server with echild tools.
func NewServer(cfg *Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	maxDraws := cfg.MaxDraws
	if maxDraws <= 0 {
		maxDraws = DefaultMaxDraws
	}

	mcpServer := sdk.NewServer(&sdk.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, &sdk.ServerOptions{
		InitializedHandler: func(ctx context.Context, req *sdk.InitializedRequest) {
			logger.Debug("mcp client initialized")
		},
	})

	s := &Server{
		server:       mcpServer,
		logger:       logger,
		toolLimiters: ratelimit.NewToolLimiters(),
		corpusPath:   cfg.CorpusPath,
		workers:      max(cfg.Workers, 1),
		maxDraws:     maxDraws,
	}
	if cfg.OutputDir != "" {
		s.resultsDB = filepath.Join(cfg.OutputDir, results.DBFile)
	}
	if cfg.CorpusPath != "" {
		s.corpus = domain.NewFlatFile(cfg.CorpusPath)
	}

	s.registerTools()
	return s
}

// Run starts the MCP server over stdio transport.
// This blocks until the client disconnects or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	notifySignals(sigChan)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	return s.server.Run(ctx, &sdk.StdioTransport{})
}
