package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mmynk/chama/internal/gateway"
)

func newGroupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "group",
		Short: "Find, create and join groups",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(
		newGroupListCmd(),
		newGroupCreateCmd(),
		newGroupJoinCmd(),
		newGroupLeaveCmd(),
		newGroupMembersCmd(),
	)
	return cmd
}

func newGroupListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the public group directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd)
			if _, err := a.authorize("/group"); err != nil {
				return err
			}
			groups, err := a.api.ListGroups(cmd.Context())
			if err != nil {
				return err
			}
			if len(groups) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No groups yet.")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME")
			for _, g := range groups {
				fmt.Fprintf(w, "%d\t%s\n", g.ID, g.Name)
			}
			return w.Flush()
		},
	}
}

func newGroupCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create NAME",
		Short: "Create a group and become its admin",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd)
			if _, err := a.authorize("/create-group"); err != nil {
				return err
			}
			resp, err := a.api.CreateGroup(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			if _, err := a.refreshProfile(cmd.Context()); err != nil {
				a.logger.Warn("Failed to refresh profile after creating a group", "error", err)
			}
			message := resp.Message
			if message == "" {
				message = fmt.Sprintf("Group created (id %d)", resp.GroupID)
			}
			fmt.Fprintln(cmd.OutOrStdout(), message)
			return nil
		},
	}
}

func newGroupJoinCmd() *cobra.Command {
	var groupID int64

	cmd := &cobra.Command{
		Use:   "join [CODE]",
		Short: "Ask to join a group by join code or directory id",
		Long: `Ask to join a group. The admin has to approve the request before you can
contribute.

Examples:
  chama group join AB12CD34
  chama group join --id 5`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd)
			if _, err := a.authorize("/group"); err != nil {
				return err
			}

			var resp *gateway.JoinResponse
			var err error
			switch {
			case groupID > 0:
				resp, err = a.api.JoinGroup(cmd.Context(), groupID)
			case len(args) == 1:
				resp, err = a.api.JoinGroupByCode(cmd.Context(), strings.ToUpper(strings.TrimSpace(args[0])))
			default:
				return fmt.Errorf("a join code or --id is required")
			}
			if err != nil {
				return err
			}

			message := resp.Message
			if message == "" {
				message = "Join request sent"
			}
			fmt.Fprintln(cmd.OutOrStdout(), message)
			return nil
		},
	}

	cmd.Flags().Int64Var(&groupID, "id", 0, "join by directory id instead of code")
	return cmd
}

func newGroupLeaveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "leave",
		Short: "Leave your group",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd)
			if _, err := a.authorize("/group"); err != nil {
				return err
			}
			resp, err := a.api.LeaveGroup(cmd.Context())
			if err != nil {
				return err
			}
			if _, err := a.refreshProfile(cmd.Context()); err != nil {
				a.logger.Warn("Failed to refresh profile after leaving the group", "error", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
			return nil
		},
	}
}

func newGroupMembersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "members",
		Short: "List the members of your group",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd)
			sess, err := a.authorize("/group")
			if err != nil {
				return err
			}
			if _, err := a.groupOf(cmd.Context(), sess); err != nil {
				return err
			}
			members, err := a.api.GroupMembers(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tROLE")
			for _, m := range members {
				role := "member"
				if m.IsAdmin {
					role = "admin"
				}
				fmt.Fprintf(w, "%d\t%s\t%s\n", m.ID, m.Name, role)
			}
			return w.Flush()
		},
	}
}
