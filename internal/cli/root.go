package cli

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/fjod/pawmart/internal/config"
	"github.com/fjod/pawmart/internal/logger"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	LogLevel string

	// loadConfig is swapped in tests.
	loadConfig func() (*config.Config, error)
}

// NewRootCommand creates the root command for the pawmart binary.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{loadConfig: config.Load}

	cmd := &cobra.Command{
		Use:          "pawmart",
		Short:        "PawMart storefront and community feed",
		Long:         "PawMart serves the pet-supplies storefront API, the community feed and their background workers.",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level override (debug|info|warn|error)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewOrdersCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))
	cmd.AddCommand(NewGatewaySandboxCommand(opts))

	return cmd
}

// Execute runs the root command and returns the process exit code.
func Execute(ctx context.Context) int {
	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		return 1
	}
	return 0
}

func (o *RootOptions) setup() (*config.Config, *slog.Logger, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if o.LogLevel != "" {
		cfg.LogLevel = o.LogLevel
	}
	return cfg, logger.New(os.Stderr, "pawmart", cfg.LogLevel), nil
}
