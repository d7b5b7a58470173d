package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/makr91/zoneweaver-api/pkg/api"
	"github.com/makr91/zoneweaver-api/pkg/artifact"
	"github.com/makr91/zoneweaver-api/pkg/command"
	"github.com/makr91/zoneweaver-api/pkg/config"
	"github.com/makr91/zoneweaver-api/pkg/executors"
	"github.com/makr91/zoneweaver-api/pkg/log"
	"github.com/makr91/zoneweaver-api/pkg/logstream"
	"github.com/makr91/zoneweaver-api/pkg/metrics"
	"github.com/makr91/zoneweaver-api/pkg/registry"
	"github.com/makr91/zoneweaver-api/pkg/scheduler"
	"github.com/makr91/zoneweaver-api/pkg/storage"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "zoneweaverd",
	Short: "zoneweaverd - host-local control plane for OmniOS zone appliances",
	Long: `zoneweaverd exposes a REST/WebSocket control surface over an
asynchronous task queue that drives zone provisioning, artifact
management, host lifecycle operations, and log streaming on a single
illumos/OmniOS host.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"zoneweaverd version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(serveCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the zoneweaverd control plane",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		dataDir, _ := cmd.Flags().GetString("data-dir")
		listenAddr, _ := cmd.Flags().GetString("listen-addr")
		apiKey, _ := cmd.Flags().GetString("api-key")

		logger := log.WithComponent("zoneweaverd")

		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if err := os.MkdirAll(dataDir, 0750); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}

		store, err := storage.NewBoltStore(dataDir)
		if err != nil {
			return fmt.Errorf("failed to open store: %w", err)
		}
		defer store.Close()

		runner := command.NewRunner()

		reg := registry.New()

		baseDeps := &executors.Deps{Runner: runner, Store: store}
		zoneDeps := &executors.ZoneDeps{
			Deps: baseDeps,
			ProvisioningRootFor: func(zoneName string) string {
				return filepath.Join(dataDir, "provisioning", zoneName)
			},
		}
		perf := cfg.HostMonitoring().Performance
		monitoringDeps := &executors.MonitoringDeps{
			CommandTimeout: time.Duration(perf.CommandTimeoutSeconds) * time.Second,
			BatchSize:      perf.BatchSize,
		}
		executors.Register(reg, baseDeps, zoneDeps, monitoringDeps)

		artifactEngine := artifact.New(store, cfg.ArtifactStorage(), runner)
		artifact.Register(reg, artifactEngine)

		queue := scheduler.New(store, reg, cfg.TaskQueue())

		logs := logstream.New(store, cfg.SystemLogs())

		collector := metrics.NewCollector(store)
		metrics.SetVersion(Version)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		if err := queue.Start(ctx); err != nil {
			return fmt.Errorf("failed to start task queue: %w", err)
		}
		defer queue.Stop()

		logs.Start(ctx)
		defer logs.Stop()

		collector.Start()
		defer collector.Stop()

		server := api.New(queue, store, artifactEngine, logs, cfg, apiKey)

		errCh := make(chan error, 1)
		go func() {
			logger.Info().Str("addr", listenAddr).Msg("control surface listening")
			if err := server.Start(ctx, listenAddr); err != nil {
				errCh <- err
			}
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		select {
		case <-sigCh:
			logger.Info().Msg("shutting down")
		case err := <-errCh:
			logger.Error().Err(err).Msg("control surface error")
		}

		cancel()
		return nil
	},
}

func init() {
	serveCmd.Flags().String("config", "/etc/zoneweaver/config.yaml", "Path to configuration file")
	serveCmd.Flags().String("data-dir", "/var/lib/zoneweaver", "Data directory for the embedded store")
	serveCmd.Flags().String("listen-addr", "127.0.0.1:8080", "Address the HTTP/WS control surface listens on")
	serveCmd.Flags().String("api-key", "", "Required value of the X-Zoneweaver-Api-Key header; empty disables auth")
}
