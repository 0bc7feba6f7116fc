package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mmynk/splitledger/internal/ledger"
)

func expenseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "expense",
		Short: "Record, change and list expenses",
	}
	cmd.AddCommand(expenseAddCmd(), expenseUpdateCmd(), expenseDeleteCmd(), expenseListCmd())
	return cmd
}

func addSplitFlags(cmd *cobra.Command, f *splitFlags) {
	cmd.Flags().StringSliceVar(&f.participants, "with", nil, "split equally among these members")
	cmd.Flags().StringToStringVar(&f.shares, "shares", nil, "exact shares, e.g. alice=10.00,bob=5.50")
	cmd.Flags().StringToStringVar(&f.percentages, "percent", nil, "percentages, e.g. alice=60,bob=40")
}

// expense add <group> <payer> <amount> --with a,b,c
func expenseAddCmd() *cobra.Command {
	var (
		split       splitFlags
		description string
	)
	cmd := &cobra.Command{
		Use:   "add <group> <payer> <amount>",
		Short: "Record an expense and print its ID",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			groupID, payer := args[0], args[1]
			amount, err := parseAmount(ctx, groupID, args[2])
			if err != nil {
				return err
			}
			spec, err := split.spec(amount.Currency)
			if err != nil {
				return err
			}
			id, err := appCtx.Ledger.RecordExpense(ctx, groupID, payer, amount, spec, ledger.WithDescription(description))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
	addSplitFlags(cmd, &split)
	cmd.Flags().StringVarP(&description, "description", "d", "", "what the expense was for")
	return cmd
}

func expenseUpdateCmd() *cobra.Command {
	var split splitFlags
	cmd := &cobra.Command{
		Use:   "update <expense> <amount>",
		Short: "Replace an expense's amount and split",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			expense, _, err := appCtx.Ledger.GetExpense(ctx, args[0])
			if err != nil {
				return err
			}
			amount, err := parseAmount(ctx, expense.GroupID, args[1])
			if err != nil {
				return err
			}
			spec, err := split.spec(amount.Currency)
			if err != nil {
				return err
			}
			return appCtx.Ledger.UpdateExpense(ctx, expense.ID, amount, spec)
		},
	}
	addSplitFlags(cmd, &split)
	return cmd
}

func expenseDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <expense>",
		Short: "Delete an expense and reverse its effect",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return appCtx.Ledger.DeleteExpense(cmd.Context(), args[0])
		},
	}
}

func expenseListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <group>",
		Short: "List a group's expenses",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			expenses, err := appCtx.Ledger.ListExpenses(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "ID\tPAYER\tAMOUNT\tSPLIT\tDESCRIPTION")
			for _, e := range expenses {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", e.ID, e.PayerID, e.Amount, e.SplitKind, e.Description)
			}
			return tw.Flush()
		},
	}
}
