// Package main provides the MCP server entry point for Expo documentation.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/mike-a-ellis/expo-docs-mcp/internal/config"
	"github.com/mike-a-ellis/expo-docs-mcp/internal/logging"
	mcpserver "github.com/mike-a-ellis/expo-docs-mcp/internal/mcp"
	"github.com/mike-a-ellis/expo-docs-mcp/internal/service"
)

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "path to a YAML config file")
	flag.Parse()

	// Create context that cancels on SIGTERM/SIGINT
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	// Stdout carries the MCP protocol in stdio mode, so logs always go to stderr
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	slog.SetDefault(logger)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	// The file and sqlite backends need the index's parent directory
	if !strings.EqualFold(cfg.Index.Backend, "qdrant") {
		dir := cfg.Index.Path
		if strings.EqualFold(cfg.Index.Backend, "sqlite") {
			dir = filepath.Dir(dir)
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	svc, err := service.FromConfig(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	discovery, err := mcpserver.LoadDiscovery(cfg.Server.MCPConfigPath)
	if err != nil {
		logger.Warn("Discovery document skipped", "path", cfg.Server.MCPConfigPath, "error", err)
	} else if discovery == nil {
		logger.Warn("Discovery document not found, static discovery endpoints skipped", "path", cfg.Server.MCPConfigPath)
	}

	server := mcpserver.NewServer(&mcpserver.Config{Querier: svc})
	httpServer := &http.Server{
		Addr: net.JoinHostPort("0.0.0.0", strconv.Itoa(cfg.Server.Port)),
		Handler: mcpserver.NewRouter(mcpserver.RouterConfig{
			Server:         server,
			Querier:        svc,
			Discovery:      discovery,
			AllowedOrigins: cfg.Server.AllowedOrigins,
			Logger:         logger,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", "addr", httpServer.Addr, "index", svc.IndexStatus(ctx))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	if cfg.Server.ServerMode {
		// HTTP mode: serve until a signal arrives or the listener fails
		select {
		case <-ctx.Done():
		case err := <-serveErr:
			if err != nil {
				return err
			}
		}
	} else {
		// Stdio mode: run MCP server over stdin/stdout for local clients,
		// with the HTTP endpoints in the background for local testing
		logger.Info("Starting Expo Documentation MCP Server (stdio mode)")
		if err := server.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
