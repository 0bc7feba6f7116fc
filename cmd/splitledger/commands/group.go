package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func groupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "group",
		Short: "Manage groups and their members",
	}
	cmd.AddCommand(groupCreateCmd(), groupAddMemberCmd(), groupRemoveMemberCmd(), groupShowCmd())
	return cmd
}

// group create <name> --currency USD --members a,b,c
func groupCreateCmd() *cobra.Command {
	var (
		currency string
		members  []string
	)
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a group and print its ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			group, err := appCtx.Ledger.CreateGroup(cmd.Context(), args[0], currency, members)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), group.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&currency, "currency", "USD", "ISO 4217 currency of the group")
	cmd.Flags().StringSliceVar(&members, "members", nil, "comma-separated member IDs")
	return cmd
}

func groupAddMemberCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add-member <group> <member>...",
		Short: "Add members to a group",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return appCtx.Ledger.AddMembers(cmd.Context(), args[0], args[1:]...)
		},
	}
}

func groupRemoveMemberCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove-member <group> <member>",
		Short: "Remove a member with no outstanding balances",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return appCtx.Ledger.RemoveMember(cmd.Context(), args[0], args[1])
		},
	}
}

func groupShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <group>",
		Short: "Show a group and its members",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			group, err := appCtx.Ledger.GetGroup(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%s)\n", group.Name, group.ID)
			fmt.Fprintf(out, "Currency: %s\n", group.Currency)
			fmt.Fprintf(out, "Members:  %s\n", strings.Join(group.Members, ", "))
			return nil
		},
	}
}
