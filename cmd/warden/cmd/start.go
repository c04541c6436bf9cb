package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/warden-hq/warden/internal/adapter/inbound/admin"
	"github.com/warden-hq/warden/internal/adapter/outbound/memory"
	"github.com/warden-hq/warden/internal/adapter/outbound/sqlite"
	"github.com/warden-hq/warden/internal/adapter/outbound/state"
	"github.com/warden-hq/warden/internal/config"
	"github.com/warden-hq/warden/internal/domain/auth"
	"github.com/warden-hq/warden/internal/domain/capability"
	"github.com/warden-hq/warden/internal/domain/event"
	"github.com/warden-hq/warden/internal/service"
	"github.com/warden-hq/warden/internal/telemetry"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the governance server",
	Long: `Start the Warden governance server.

The server loads roles and policies from governance.json (seeding starter
roles and policies on first boot), then serves the admin API for runs,
approvals, and policy management.

Examples:
  # Start with config file settings
  warden start

  # Start with a specific config file
  warden --config /path/to/config.yaml start`,
	RunE: runStart,
}

var devMode bool

func init() {
	startCmd.Flags().BoolVar(&devMode, "dev", false, "Enable development mode (verbose logging, dev API key)")
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	// Load without validation so CLI flags can override first.
	cfg, err := config.LoadConfigRaw()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if devMode {
		cfg.DevMode = true
	}
	cfg.SetDevDefaults()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	// Resolve governance file path: CLI flag > env var > config > default.
	statePath := stateFilePath
	if statePath == "" {
		statePath = os.Getenv("WARDEN_STATE_PATH")
	}
	if statePath == "" {
		statePath = cfg.State.Path
	}

	// Signal context for graceful shutdown. stop() restores default signal
	// handling so a second Ctrl+C does a hard kill.
	ctx, stop := signal.NotifyContext(context.Background(), gracefulSignals()...)
	go func() {
		<-ctx.Done()
		stop()
	}()

	logLevel := parseLogLevel(cfg.Server.LogLevel)
	if cfg.DevMode {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))

	if configFile := config.ConfigFileUsed(); configFile != "" {
		logger.Info("loaded config", "file", configFile)
	}

	if err := run(ctx, cfg, statePath, logger); err != nil {
		return err
	}
	logger.Info("warden stopped")
	return nil
}

// run wires all components together and serves until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config, statePath string, logger *slog.Logger) error {
	if cfg.DevMode {
		logger.Warn("development mode enabled; do not use in production")
	}

	if err := telemetry.Init("warden", buildVersion, cfg.Telemetry.Output); err != nil {
		return fmt.Errorf("failed to init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := telemetry.NewMetrics(registry)

	// Load or create the governance file.
	stateStore := state.NewFileStateStore(statePath, logger)
	govState, err := stateStore.Load()
	if err != nil {
		return fmt.Errorf("failed to load governance state: %w", err)
	}
	logger.Info("governance state loaded",
		"path", statePath,
		"roles", len(govState.Roles),
		"policies", len(govState.Policies),
	)

	// Populate in-memory stores from the governance file.
	roleStore := memory.NewRoleStore()
	runStore := memory.NewRunStore()
	policyStore := memory.NewPolicyStore()

	for i := range govState.Roles {
		if err := roleStore.SaveRole(ctx, &govState.Roles[i]); err != nil {
			return fmt.Errorf("failed to load role %s: %w", govState.Roles[i].ID, err)
		}
	}
	if len(govState.Policies) > 0 {
		if err := policyStore.ReplaceAll(ctx, govState.Policies); err != nil {
			return fmt.Errorf("failed to load policies: %w", err)
		}
	}

	// First boot: seed starter roles and policies, then persist.
	if err := service.Seed(ctx, roleStore, policyStore, logger); err != nil {
		return err
	}
	if len(govState.Roles) == 0 || len(govState.Policies) == 0 {
		govState.Roles, _ = roleStore.ListRoles(ctx)
		govState.Policies, _ = policyStore.GetAllPolicies(ctx)
		if err := stateStore.Save(govState); err != nil {
			return fmt.Errorf("failed to save initial governance state: %w", err)
		}
	}

	catalog := capability.NewRegistry(capability.DefaultCatalog()...)

	durations, err := telemetry.NewDurations()
	if err != nil {
		return fmt.Errorf("failed to create latency instruments: %w", err)
	}

	resolver, err := service.NewPolicyResolver(ctx, catalog, policyStore, logger,
		service.WithResolverCacheSize(cfg.Resolver.CacheSize),
		service.WithResolverMetrics(metrics),
		service.WithResolverDurations(durations),
	)
	if err != nil {
		return fmt.Errorf("failed to create policy resolver: %w", err)
	}

	journal, err := createJournal(cfg, logger)
	if err != nil {
		return err
	}

	bus := service.NewEventBus(journal, metrics, logger)
	defer func() { _ = bus.Close() }()

	ttl, err := time.ParseDuration(cfg.Approvals.TTL)
	if err != nil {
		ttl = 5 * time.Minute
		logger.Warn("invalid approvals.ttl, using default", "value", cfg.Approvals.TTL, "default", "5m")
	}
	approvalService := service.NewApprovalService(runStore, bus, logger,
		service.WithApprovalTTL(ttl),
		service.WithApprovalMetrics(metrics),
	)

	runService := service.NewRunService(runStore, roleStore, bus, logger)
	gate := service.NewGate(runStore, roleStore, resolver, approvalService, logger)
	policyAdmin := service.NewPolicyAdminService(policyStore, roleStore, resolver, stateStore, logger)
	correlator := event.NewCorrelator(runStore, logger)

	// Expiry sweeper.
	sweepInterval, err := time.ParseDuration(cfg.Approvals.SweepInterval)
	if err != nil {
		sweepInterval = 30 * time.Second
		logger.Warn("invalid approvals.sweep_interval, using default",
			"value", cfg.Approvals.SweepInterval, "default", "30s")
	}
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := approvalService.SweepExpired(ctx); n > 0 {
					logger.Info("expiry sweep completed", "expired", n)
				}
			}
		}
	}()

	keyring := buildKeyring(cfg)

	apiHandler := admin.NewAPIHandler(
		admin.WithRunService(runService),
		admin.WithGate(gate),
		admin.WithApprovalService(approvalService),
		admin.WithPolicyAdminService(policyAdmin),
		admin.WithRegistry(catalog),
		admin.WithRoleStore(roleStore),
		admin.WithCorrelator(correlator),
		admin.WithKeyring(keyring),
		admin.WithAPILogger(logger),
		admin.WithBuildInfo(&admin.BuildInfo{Version: buildVersion, Commit: buildCommit}),
	)

	mux := http.NewServeMux()
	mux.Handle("/", apiHandler.Routes())
	mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("warden listening",
			"addr", cfg.Server.HTTPAddr,
			"journal", cfg.Journal.Backend,
			"approval_ttl", ttl.String(),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	shutdownTimeout, err := time.ParseDuration(cfg.Server.ShutdownTimeout)
	if err != nil {
		shutdownTimeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

// createJournal builds the configured event journal backend.
func createJournal(cfg *config.Config, logger *slog.Logger) (event.Journal, error) {
	switch cfg.Journal.Backend {
	case "sqlite":
		journal, err := sqlite.NewEventJournal(cfg.Journal.Path, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open event journal: %w", err)
		}
		logger.Info("event journal: sqlite", "path", cfg.Journal.Path)
		return journal, nil
	case "memory":
		logger.Info("event journal: memory")
		return memory.NewEventJournal(), nil
	default:
		return nil, fmt.Errorf("unknown journal backend %q", cfg.Journal.Backend)
	}
}

// buildKeyring constructs the API keyring from configured hashes.
func buildKeyring(cfg *config.Config) *auth.Keyring {
	hashes := make(map[string]string, len(cfg.Auth.APIKeys))
	for i, h := range cfg.Auth.APIKeys {
		hashes[fmt.Sprintf("key-%d", i+1)] = h
	}
	return auth.NewKeyring(hashes)
}

// parseLogLevel converts a string log level to slog.Level. Returns
// slog.LevelInfo for unrecognized values.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
