package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// settle <group> <from> <to> <amount>: record a payment that already happened.
func settleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "settle <group> <from> <to> <amount>",
		Short: "Record a completed payment and print its ID",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			amount, err := parseAmount(ctx, args[0], args[3])
			if err != nil {
				return err
			}
			id, err := appCtx.Ledger.CompleteSettlement(ctx, args[0], args[1], args[2], amount)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
}

func settlementCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settlement",
		Short: "Propose, accept and cancel settlements",
	}
	cmd.AddCommand(settlementProposeCmd(), settlementAcceptCmd(), settlementCancelCmd(), settlementListCmd())
	return cmd
}

func settlementProposeCmd() *cobra.Command {
	var note string
	cmd := &cobra.Command{
		Use:   "propose <group> <from> <to> <amount>",
		Short: "Propose a payment without touching balances",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			amount, err := parseAmount(ctx, args[0], args[3])
			if err != nil {
				return err
			}
			id, err := appCtx.Ledger.ProposeSettlement(ctx, args[0], args[1], args[2], amount, note)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
	cmd.Flags().StringVar(&note, "note", "", "free-text note")
	return cmd
}

func settlementAcceptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "accept <settlement>",
		Short: "Complete a pending settlement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return appCtx.Ledger.AcceptSettlement(cmd.Context(), args[0])
		},
	}
}

func settlementCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <settlement>",
		Short: "Cancel a pending settlement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return appCtx.Ledger.CancelSettlement(cmd.Context(), args[0])
		},
	}
}

func settlementListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <group>",
		Short: "List a group's settlements",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settlements, err := appCtx.Ledger.ListSettlements(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "ID\tFROM\tTO\tAMOUNT\tSTATUS\tNOTE")
			for _, st := range settlements {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", st.ID, st.FromID, st.ToID, st.Amount, st.Status, st.Note)
			}
			return tw.Flush()
		},
	}
}
