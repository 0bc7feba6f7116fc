package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mmynk/splitledger/internal/metrics"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/report"
)

// reconcile <group> [--xlsx path]
func reconcileCmd() *cobra.Command {
	var xlsxPath string
	cmd := &cobra.Command{
		Use:   "reconcile <group>",
		Short: "Compare stored balances with a replay of the group's history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			groupID := args[0]
			discrepancies, err := appCtx.Ledger.Reconcile(ctx, groupID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(discrepancies) == 0 {
				fmt.Fprintln(out, "Balances match history.")
			} else {
				tw := newTable(out)
				fmt.Fprintln(tw, "A\tB\tSTORED\tEXPECTED\tDELTA")
				for _, d := range discrepancies {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", d.Pair.A, d.Pair.B, d.Stored, d.Expected, d.Delta)
				}
				if err := tw.Flush(); err != nil {
					return err
				}
			}

			if xlsxPath != "" {
				if err := writeReport(ctx, groupID, xlsxPath, discrepancies); err != nil {
					return err
				}
				fmt.Fprintf(out, "Report written to %s\n", xlsxPath)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&xlsxPath, "xlsx", "", "also write an Excel report to this path")
	return cmd
}

func writeReport(ctx context.Context, groupID, path string, discrepancies []models.Discrepancy) error {
	group, err := appCtx.Ledger.GetGroup(ctx, groupID)
	if err != nil {
		return err
	}
	balances, err := appCtx.Ledger.GetGroupBalances(ctx, groupID)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	if err := report.WriteReconciliation(f, group, discrepancies, balances); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// audit <group>... reconciles the groups on an interval and serves
// /metrics until interrupted.
func auditCmd() *cobra.Command {
	var (
		interval    time.Duration
		metricsAddr string
	)
	cmd := &cobra.Command{
		Use:   "audit <group>...",
		Short: "Periodically reconcile groups and expose Prometheus metrics",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if interval <= 0 {
				return fmt.Errorf("--interval must be positive")
			}
			if metricsAddr == "" {
				metricsAddr = cfg.Metrics.Addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler(appCtx.Registry))
			srv := &http.Server{Addr: metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				slog.Info("Metrics server starting", "address", metricsAddr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("metrics server: %w", err)
				}
				return nil
			})
			g.Go(func() error {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
			g.Go(func() error {
				return auditLoop(ctx, args, interval)
			})
			return g.Wait()
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", time.Minute, "time between reconciliation passes")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "listen address for /metrics (default from config)")
	return cmd
}

func auditLoop(ctx context.Context, groups []string, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		for _, groupID := range groups {
			// Discrepancies are logged and counted by the ledger.
			if _, err := appCtx.Ledger.Reconcile(ctx, groupID); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				slog.Error("Reconciliation failed", "group_id", groupID, "error", err)
			}
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
