package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/carlookout/server/internal/api"
	"github.com/carlookout/server/internal/metrics"
)

var (
	// Server flags (override config/env)
	serverHost string
	serverPort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the aggregation HTTP server",
	Long: `Start the aggregation HTTP server and begin accepting search requests.

The server will:
- Load configuration from environment variables
- Register one adapter per YAML file in the sources directory
- Start the HTTP server with search, health, and metrics endpoints
- Handle graceful shutdown on SIGINT/SIGTERM

Examples:
  # Start with default configuration (from env vars)
  carlookout serve

  # Start on a specific host and port
  carlookout serve --host 127.0.0.1 --port 9090

  # Start with debug logging
  carlookout serve --log-level debug`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

func init() {
	serveCmd.Flags().StringVar(&serverHost, "host", "", "server host address (default: 0.0.0.0)")
	serveCmd.Flags().IntVar(&serverPort, "port", 0, "server port (default: 8080)")
}

func runServer() error {
	app, err := buildApp(context.Background())
	if err != nil {
		return err
	}
	defer app.Close()

	cfg := app.cfg
	logger := app.logger

	// Override config with flags if provided
	if serverHost != "" {
		cfg.Server.Host = serverHost
	}
	if serverPort != 0 {
		cfg.Server.Port = serverPort
	}

	logger.Info().Msg("starting carlookout server")
	metrics.Init(Version, GitCommit, BuildDate)
	logger.Info().Str("version", Version).Msg("metrics initialized")

	// Evict expired cache entries in the background
	purgeCtx, purgeCancel := context.WithCancel(context.Background())
	defer purgeCancel()
	go runCachePurge(purgeCtx, app, cfg.Cache.PurgeInterval)

	// Start database metrics collector when the seen store is enabled
	if app.pool != nil {
		dbCollector := metrics.NewDBCollector(app.pool)
		collectorCtx, collectorCancel := context.WithCancel(context.Background())
		go dbCollector.Start(collectorCtx, 15*time.Second)
		defer collectorCancel()
		defer dbCollector.Stop()
		logger.Info().Msg("database metrics collector started")
	}

	handler := api.NewRouter(cfg, app.service, app.breaker, Version, logger)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           handler,
		ReadTimeout:       10 * time.Second, // Total time to read request
		WriteTimeout:      30 * time.Second, // Total time to write response
		ReadHeaderTimeout: 5 * time.Second,  // Time to read headers
		MaxHeaderBytes:    1 << 20,          // 1 MB max header size
	}

	// Start server in background
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// Wait for shutdown signal
	return gracefulShutdown(server, logger)
}

func runCachePurge(ctx context.Context, app *app, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if evicted := app.cache.Purge(); evicted > 0 {
				app.logger.Debug().Int("evicted", evicted).Msg("purged expired cache entries")
			}
		}
	}
}

func gracefulShutdown(server *http.Server, logger zerolog.Logger) error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
		return err
	}

	logger.Info().Msg("server stopped")
	return nil
}
