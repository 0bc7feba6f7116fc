package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func balancesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balances <group>",
		Short: "Show who owes whom",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			balances, err := appCtx.Ledger.GetGroupBalances(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printBalances(cmd.OutOrStdout(), balances)
		},
	}
}

// net <group> [member]: one member's net position, or everyone's.
func netCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "net <group> [member]",
		Short: "Show net positions (positive means owed money)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			if len(args) == 2 {
				net, err := appCtx.Ledger.GetUserNetPosition(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				fmt.Fprintln(out, net)
				return nil
			}
			positions, err := appCtx.Ledger.GetNetPositions(ctx, args[0])
			if err != nil {
				return err
			}
			tw := newTable(out)
			fmt.Fprintln(tw, "MEMBER\tNET")
			for _, p := range positions {
				fmt.Fprintf(tw, "%s\t%s\n", p.UserID, p.Amount)
			}
			return tw.Flush()
		},
	}
}

func suggestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "suggest <group>",
		Short: "Suggest the fewest payments that settle the group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			instructions, err := appCtx.Ledger.SuggestSettlements(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printInstructions(cmd.OutOrStdout(), instructions)
		},
	}
}
