package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/warden-hq/warden/internal/adapter/outbound/memory"
	"github.com/warden-hq/warden/internal/adapter/outbound/state"
	"github.com/warden-hq/warden/internal/config"
	"github.com/warden-hq/warden/internal/domain/capability"
	"github.com/warden-hq/warden/internal/service"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration and governance file",
	Long: `Validate warden.yaml and governance.json without starting the server.

Checks config schema, policy scope invariants, and compiles every rule
condition. Exits non-zero on the first problem found.`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigRaw()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg.SetDevDefaults()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	fmt.Println("config: ok")

	statePath := stateFilePath
	if statePath == "" {
		statePath = cfg.State.Path
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	stateStore := state.NewFileStateStore(statePath, logger)
	if !stateStore.Exists() {
		fmt.Printf("governance file %s not found (will be seeded on first start)\n", statePath)
		return nil
	}

	govState, err := stateStore.Load()
	if err != nil {
		return fmt.Errorf("governance file invalid: %w", err)
	}

	ctx := context.Background()
	policyStore := memory.NewPolicyStore()
	if err := policyStore.ReplaceAll(ctx, govState.Policies); err != nil {
		return fmt.Errorf("policies invalid: %w", err)
	}

	catalog := capability.NewRegistry(capability.DefaultCatalog()...)
	if _, err := service.NewPolicyResolver(ctx, catalog, policyStore, logger); err != nil {
		return fmt.Errorf("policies invalid: %w", err)
	}

	fmt.Printf("governance: ok (%d roles, %d policies)\n", len(govState.Roles), len(govState.Policies))
	return nil
}
