package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/litekit/litebridge/internal/config"
	"github.com/litekit/litebridge/internal/logging"
	"github.com/litekit/litebridge/internal/registry"
	"github.com/litekit/litebridge/internal/web"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// CLI flags
var (
	port      int
	bind      string
	dataDir   string
	apiKey    string
	verbosity int

	// Timeout flags (advanced)
	httpReadTimeout time.Duration
	httpIdleTimeout time.Duration
	shutdownTimeout time.Duration
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "litebridge",
		Short: "litebridge - embedded SQLite service",
		Long:  `litebridge hosts SQLite databases behind a handle-based API: open, execute, query, insert, update and batch, with typed parameters and results.`,
		RunE:  run,
	}

	// Flags
	rootCmd.Flags().IntVarP(&port, "port", "p", 0, "HTTP server port (required, or set PORT env var)")
	rootCmd.Flags().StringVarP(&bind, "bind", "b", "", "IP address to bind to (e.g., 127.0.0.1, 0.0.0.0)")
	rootCmd.Flags().StringVarP(&dataDir, "data-dir", "d", "./data", "Directory relative database paths resolve under (or set DATA_DIR env var)")
	rootCmd.Flags().StringVar(&apiKey, "api-key", "", "API key required on /api routes (or set API_KEY env var; empty disables the check)")
	rootCmd.Flags().CountVarP(&verbosity, "verbose", "v", "Increase verbosity (-v debug, -vv trace)")

	// Advanced timeout flags
	rootCmd.Flags().DurationVar(&httpReadTimeout, "http-read-timeout", 15*time.Second, "Timeout for reading HTTP request bodies")
	rootCmd.Flags().DurationVar(&httpIdleTimeout, "http-idle-timeout", 120*time.Second, "Keep-alive timeout between requests")
	rootCmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 30*time.Second, "Graceful shutdown timeout")

	// Version command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("litebridge %s (commit: %s, built: %s)\n", version, commit, date)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	// Check for PORT env var if flag not set
	if port == 0 {
		if envPort := os.Getenv("PORT"); envPort != "" {
			if _, err := fmt.Sscanf(envPort, "%d", &port); err != nil {
				return fmt.Errorf("invalid PORT environment variable %q: %w", envPort, err)
			}
		}
	}

	// Check for DATA_DIR env var if using default
	if dataDir == "./data" {
		if envDir := os.Getenv("DATA_DIR"); envDir != "" {
			dataDir = envDir
		}
	}

	if apiKey == "" {
		apiKey = os.Getenv("API_KEY")
	}

	// Validate port
	if port == 0 {
		return fmt.Errorf("--port flag or PORT environment variable is required")
	}

	// Validate bind address if provided
	if bind != "" {
		if ip := net.ParseIP(bind); ip == nil {
			return fmt.Errorf("invalid bind address: %s", bind)
		}
	}

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	// Setup logging
	loader := config.NewLoader()
	logging.Apply(verbosity, loader, logging.FilePathForDataDir(dataDir))

	// Configure global timeouts
	config.SetGlobalTimeouts(&config.TimeoutConfig{
		HTTPRead: httpReadTimeout,
		HTTPIdle: httpIdleTimeout,
		Shutdown: shutdownTimeout,
	})

	if apiKey == "" {
		log.Warn().Msg("No API key configured; /api routes are unauthenticated. Consider --api-key or the API_KEY env var.")
	}

	log.Info().
		Str("version", version).
		Int("port", port).
		Str("bind", bind).
		Str("data_dir", dataDir).
		Msg("Starting litebridge")

	// Registry and its collaborators
	reg := registry.New(dataDir)
	defer reg.CloseAll()

	server := web.NewServer(reg, port, bind, apiKey)
	reg.AddEventSink(server.Broker())

	watcher, err := registry.NewWatcher(reg)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize database file watcher")
	} else {
		defer watcher.Stop()
		reg.AddEventSink(watcher)
		watcher.Start()
	}

	maintenance := registry.NewMaintenance(reg, loader.String("maintenance.schedule", registry.DefaultMaintenanceSchedule))
	if err := maintenance.Start(); err != nil {
		log.Warn().Err(err).Msg("Failed to start maintenance scheduler")
	} else {
		defer maintenance.Stop()
	}

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	// Start server
	if err := server.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server error")
	}

	log.Info().Msg("litebridge stopped")
	return nil
}
