package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fraser/skycast/internal/config"
	"github.com/fraser/skycast/internal/logger"
	"github.com/fraser/skycast/internal/metrics"
	"github.com/fraser/skycast/internal/server"
	"github.com/fraser/skycast/pkg/dispatch"
	"github.com/fraser/skycast/pkg/tool"
	"github.com/fraser/skycast/pkg/weather"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the skycast invocation server",
	Long: `Run the skycast invocation server in the foreground.
The server registers the weather tools, listens for WebSocket sessions
and single-shot HTTP invocations, and shuts down gracefully on SIGINT
or SIGTERM.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader(cfgFile)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	// Fail fast on a broken configuration rather than at first use.
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	appLogger, err := logger.New(logger.Config{
		Level:   cfg.Logging.Level,
		File:    cfg.Logging.File,
		Console: true,
		Pretty:  true,
		MaxSize: cfg.Logging.MaxSize,
		MaxAge:  cfg.Logging.MaxAge,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	log := appLogger.GetZerolog()
	log.Info().
		Str("version", version).
		Msg("Starting skycast")

	client, err := weather.NewClient(weather.Config{
		Key:     cfg.Weather.Key,
		BaseURL: cfg.Weather.BaseURL,
		Timeout: time.Duration(cfg.Weather.Timeout) * time.Second,
		Logger:  log,
	})
	if err != nil {
		return fmt.Errorf("failed to create weather client: %w", err)
	}

	registry := tool.NewRegistry()
	if err := weather.Register(registry, client); err != nil {
		return fmt.Errorf("failed to register tools: %w", err)
	}
	registry.Freeze()
	log.Info().Strs("tools", registry.Names()).Msg("Tool registry frozen")

	dispatcher := dispatch.New(
		time.Duration(cfg.Dispatch.TimeBudget)*time.Second,
		cfg.Dispatch.MaxResultBytes,
		log,
	)

	srv, err := server.New(server.Config{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		MaxSessions:     cfg.Server.MaxSessions,
		MaxMessageBytes: cfg.Server.MaxMessageBytes,
		Registry:        registry,
		Dispatcher:      dispatcher,
		Metrics:         metrics.NewMetrics(),
		Logger:          log,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	if err := srv.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	if err := srv.Stop(); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	return nil
}
