package commands

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/mmynk/splitledger/internal/app"
	"github.com/mmynk/splitledger/internal/config"
	"github.com/mmynk/splitledger/pkg/logging"
)

var (
	cfgFile string
	cfg     *config.Config
	appCtx  *app.App
)

// Execute runs the splitledger CLI.
func Execute() error {
	return run(context.Background(), NewRootCmd())
}

func run(ctx context.Context, root *cobra.Command) error {
	defer closeApp()
	return root.ExecuteContext(ctx)
}

func closeApp() {
	if appCtx == nil {
		return
	}
	if err := appCtx.Close(); err != nil {
		slog.Error("Failed to close storage", "error", err)
	}
	appCtx = nil
}

// NewRootCmd builds the command tree. The application is wired once per
// invocation from the loaded configuration.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "splitledger",
		Short:        "Shared-expense ledger with debt simplification",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(cfgFile)
			if err != nil {
				return err
			}
			logger := logging.Setup(cfg.Log.Level)
			appCtx, err = app.New(cmd.Context(), cfg, logger)
			return err
		},
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./splitledger.yaml if present)")

	root.AddCommand(
		groupCmd(),
		expenseCmd(),
		balancesCmd(),
		netCmd(),
		suggestCmd(),
		settleCmd(),
		settlementCmd(),
		reconcileCmd(),
		auditCmd(),
	)
	return root
}
