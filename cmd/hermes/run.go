package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"clearlink-hq/hermes/pkg/audit"
	"clearlink-hq/hermes/pkg/audit/retention"
	auditstorage "clearlink-hq/hermes/pkg/audit/storage"
	"clearlink-hq/hermes/pkg/cli"
	"clearlink-hq/hermes/pkg/config"
	"clearlink-hq/hermes/pkg/expander"
	"clearlink-hq/hermes/pkg/fallback"
	"clearlink-hq/hermes/pkg/pipeline"
	"clearlink-hq/hermes/pkg/rules"
	"clearlink-hq/hermes/pkg/rules/store"
	"clearlink-hq/hermes/pkg/sanitizer"
	"clearlink-hq/hermes/pkg/server"
	"clearlink-hq/hermes/pkg/settings"
	"clearlink-hq/hermes/pkg/telemetry/health"
	"clearlink-hq/hermes/pkg/telemetry/logging"
	"clearlink-hq/hermes/pkg/telemetry/metrics"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the hermes API server",
	Long: `Start the hermes API server with the specified configuration.

The server loads the rule catalogue, refreshes it on the configured
schedule, and serves cleaning requests plus history, stats, settings,
health, and metrics endpoints.

Examples:
  # Start with defaults (in-memory stores, rules from the public catalogue)
  hermes run

  # Start with a config file
  hermes run --config /etc/hermes/hermes.yaml

  # Override the listen address
  hermes run --listen 0.0.0.0:8080

  # Validate config without starting the server
  hermes run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting the server")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Initialize(cfgFile)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	logger, err := logging.New(&cfg.Telemetry.Logging, nil)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	slog.SetDefault(logger)

	if runFlags.dryRun {
		fmt.Println("configuration valid")
		return nil
	}

	ctx, stop := cli.SignalContext()
	defer stop()

	collector := metrics.NewCollector(&metrics.Config{
		Enabled:         cfg.Telemetry.Metrics.Enabled,
		Namespace:       cfg.Telemetry.Metrics.Namespace,
		Subsystem:       cfg.Telemetry.Metrics.Subsystem,
		DurationBuckets: cfg.Telemetry.Metrics.DurationBuckets,
	}, nil)

	ruleStore, err := buildRuleStore(cfg, collector, logger)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	if err := ruleStore.Start(ctx); err != nil {
		return cli.NewCommandError("run", fmt.Errorf("starting rule store: %w", err))
	}
	defer ruleStore.Stop()
	if rs := ruleStore.Current(); rs != nil {
		collector.SetActiveRules(rs.Version, rs.ProviderCount())
		logger.Info("rule catalogue loaded",
			"version", rs.Version, "providers", rs.ProviderCount())
	}

	san := sanitizer.New(ruleStore, logger)

	var exp *expander.Expander
	if cfg.Expander.Enabled {
		exp = expander.New(&expander.Config{
			Allowlist:     cfg.Expander.Allowlist,
			MaxHops:       cfg.Expander.MaxHops,
			PerHopTimeout: cfg.Expander.PerHopTimeout,
			TotalTimeout:  cfg.Expander.TotalTimeout,
		}, nil, logger)
	}

	var fb *fallback.Client
	if cfg.Fallback.Endpoint != "" {
		fb = fallback.New(&fallback.Config{
			Endpoint: cfg.Fallback.Endpoint,
			Timeout:  cfg.Fallback.Timeout,
			MaxKeys:  cfg.Fallback.MaxKeys,
		}, nil, logger)
	}

	settingsBackend, err := buildSettingsBackend(cfg)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer settingsBackend.Close()
	settingsService := settings.NewService(settingsBackend, logger)

	var recorder *audit.Recorder
	var history audit.Storage
	if cfg.Audit.Enabled {
		history, err = buildAuditStorage(cfg, logger)
		if err != nil {
			return cli.NewCommandError("run", err)
		}
		defer history.Close()

		recorder = audit.NewRecorder(history, &audit.RecorderConfig{
			Enabled:      true,
			AsyncBuffer:  cfg.Audit.AsyncBuffer,
			WriteTimeout: cfg.Audit.WriteTimeout,
		}, logger)
		defer recorder.Close()

		if cfg.Audit.PruneSchedule != "" {
			pruner := retention.NewPruner(history, &retention.Config{
				RetentionDays: cfg.Audit.RetentionDays,
				PruneSchedule: cfg.Audit.PruneSchedule,
			}, logger)
			scheduler := pruner.Scheduler()
			if err := scheduler.Start(ctx); err != nil {
				logger.Warn("retention scheduler failed to start", "error", err)
			} else {
				defer scheduler.Stop()
			}
		}
	}

	p, err := pipeline.New(pipeline.Deps{
		Sanitizer: san,
		Settings:  settingsService,
		Expander:  exp,
		Fallback:  fb,
		Recorder:  recorder,
		Metrics:   collector,
		Logger:    logger,
	})
	if err != nil {
		return cli.NewCommandError("run", err)
	}

	checker := health.New(0)
	checker.Register("rules", ruleStore.Healthy)
	checker.Register("settings", settingsService.Ping)
	if history != nil {
		checker.Register("audit", history.Ping)
	}

	srv, err := server.New(cfg, server.Deps{
		Pipeline:  p,
		Settings:  settingsService,
		History:   history,
		Health:    checker,
		Metrics:   collector,
		Logger:    logger,
		Version:   Version,
		Commit:    GitCommit,
		BuildTime: BuildDate,
	})
	if err != nil {
		return cli.NewCommandError("run", err)
	}

	fmt.Printf("hermes %s listening on %s\n", Version, cfg.Server.ListenAddress)
	if err := srv.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}
	return nil
}

// newRuleSource builds the document source from the configured location:
// an http(s) URL fetches remotely, anything else reads a local file.
func newRuleSource(cfg *config.Config, logger *slog.Logger) store.Source {
	if strings.HasPrefix(cfg.Rules.Source, "http://") || strings.HasPrefix(cfg.Rules.Source, "https://") {
		return store.NewHTTPSource(cfg.Rules.Source, cfg.Rules.FetchTimeout, logger)
	}
	fileSource := store.NewFileSource(cfg.Rules.Source, logger)
	if !cfg.Rules.WatchFile {
		return noWatchSource{inner: fileSource}
	}
	return fileSource
}

// noWatchSource hides a file source's Watch method so the store does not
// start the fsnotify loop when hot reload is disabled.
type noWatchSource struct {
	inner store.Source
}

func (s noWatchSource) Fetch(ctx context.Context) ([]byte, error) { return s.inner.Fetch(ctx) }
func (s noWatchSource) Location() string                          { return s.inner.Location() }

func buildRuleStore(cfg *config.Config, collector *metrics.Collector, logger *slog.Logger) (*store.Store, error) {
	source := newRuleSource(cfg, logger)

	// The refresh hook needs the store to read the committed snapshot, so
	// it binds the variable assigned below.
	var s *store.Store
	storeCfg := &store.Config{
		RefreshSchedule: cfg.Rules.RefreshSchedule,
		FetchTimeout:    cfg.Rules.FetchTimeout,
		InitialRetries:  cfg.Rules.InitialRetries,
		InitialBackoff:  cfg.Rules.InitialBackoff,
		OnRefresh: func(version int64, err error) {
			collector.RecordRefresh(refreshOutcome(err))
			if err == nil && s != nil {
				if rs := s.Current(); rs != nil {
					collector.SetActiveRules(rs.Version, rs.ProviderCount())
				}
			}
		},
	}

	var err error
	s, err = store.New(source, storeCfg, logger)
	return s, err
}

func refreshOutcome(err error) string {
	if err == nil {
		return metrics.RefreshSuccess
	}
	var compileErr *rules.CompileError
	if errors.As(err, &compileErr) {
		return metrics.RefreshCompileError
	}
	return metrics.RefreshFetchError
}

func buildSettingsBackend(cfg *config.Config) (settings.Backend, error) {
	switch cfg.Settings.Backend {
	case "sqlite":
		return settings.NewSQLiteBackend(cfg.Settings.DBPath)
	default:
		return settings.NewMemoryBackend(), nil
	}
}

func buildAuditStorage(cfg *config.Config, logger *slog.Logger) (audit.Storage, error) {
	switch cfg.Audit.Backend {
	case "sqlite":
		sqliteCfg := auditstorage.DefaultSQLiteConfig()
		sqliteCfg.Path = cfg.Audit.DBPath
		return auditstorage.NewSQLiteStorage(sqliteCfg, logger)
	default:
		return auditstorage.NewMemoryStorage(), nil
	}
}
