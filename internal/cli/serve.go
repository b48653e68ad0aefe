package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/khanglvm/ric/internal/mcp"
	"github.com/khanglvm/ric/internal/version"
)

// shutdownTimeout bounds the metrics listener shutdown.
const shutdownTimeout = 5 * time.Second

// NewServeCmd creates the 'serve' command for running the MCP server.
func NewServeCmd() *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server (stdio transport)",
		Long: `Start the ric MCP server using stdio transport.

The server exposes these tools to AI clients:
  • ric_session_start   - Open a session, optionally with its own alpha
  • ric_session_step    - Record a tool run and get the next recommendations
  • ric_session_memory  - Show a session's strongest weights
  • ric_session_end     - Close a session
  • ric_tool_confidence - Confidence scores of tools that follow a tool
  • ric_tool_search     - Search the tool catalog by name

Sessions live in memory and end when the server stops. Logs go to stderr.`,
		Example: `  # Run directly
  ric serve

  # Expose Prometheus metrics while serving
  ric serve --metrics-addr :9090

  # Add to Claude Code
  claude mcp add ric -- ric serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, metricsAddr)
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (default from config)")

	return cmd
}

// runServe starts the MCP server with stdio transport and signal handling.
// Implements graceful shutdown on SIGINT/SIGTERM/SIGQUIT.
func runServe(cmd *cobra.Command, metricsAddr string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	if metricsAddr == "" {
		metricsAddr = a.cfg.MetricsAddr
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer a.closeStore(context.Background(), store)

	server, err := mcp.NewServer(ctx, store, mcp.Options{
		Alpha:          a.cfg.Recommender.Alpha,
		ScoreLimit:     a.cfg.Recommender.ScoreLimit,
		RecommendLimit: a.cfg.Recommender.RecommendLimit,
		QueryTimeout:   a.cfg.Store.QueryTimeout,
		Version:        version.Version,
		Limiter:        a.limiter,
	}, a.logger, a.metrics)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	var metricsServer *http.Server
	if metricsAddr != "" {
		metricsServer = startMetricsServer(metricsAddr, a)
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer signal.Stop(sigChan)

	// Run server in separate goroutine
	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Run(ctx)
	}()

	var runErr error

	// Wait for either signal or server error
	select {
	case sig := <-sigChan:
		a.logger.Info("shutting down", zap.String("signal", sig.String()))
		cancel()
		<-errChan

	case err := <-errChan:
		// Run returned (stdin closed or error)
		if err != nil && !errors.Is(err, context.Canceled) {
			runErr = fmt.Errorf("server error: %w", err)
		}
	}

	if metricsServer != nil {
		shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("metrics server shutdown failed", zap.Error(err))
		}
		stop()
	}

	if err := server.Close(); err != nil {
		a.logger.Warn("error during cleanup", zap.Error(err))
	}

	a.logger.Info("shutdown complete")
	return runErr
}

// startMetricsServer serves /metrics in the background.
func startMetricsServer(addr string, a *app) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.metrics.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		a.logger.Info("metrics listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	return srv
}
