package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newNotificationsCmd() *cobra.Command {
	var unreadOnly bool

	cmd := &cobra.Command{
		Use:   "notifications",
		Short: "List your notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd)
			if _, err := a.authorize("/notifications"); err != nil {
				return err
			}
			list, err := a.api.Notifications(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			shown := 0
			for _, n := range list {
				if unreadOnly && n.IsRead {
					continue
				}
				if shown == 0 {
					fmt.Fprintln(w, "ID\tDATE\t\tMESSAGE")
				}
				mark := ""
				if !n.IsRead {
					mark = "*"
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", n.ID, n.Date, mark, n.Message)
				shown++
			}
			if shown == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No notifications.")
				return nil
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&unreadOnly, "unread", false, "only show unread notifications")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "read ID",
			Short: "Mark a notification as read",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				a := appFrom(cmd)
				if _, err := a.authorize("/notifications"); err != nil {
					return err
				}
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				if _, err := a.api.MarkNotificationRead(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Marked as read.")
				return nil
			},
		},
		&cobra.Command{
			Use:   "read-all",
			Short: "Mark every notification as read",
			RunE: func(cmd *cobra.Command, args []string) error {
				a := appFrom(cmd)
				if _, err := a.authorize("/notifications"); err != nil {
					return err
				}
				if _, err := a.api.MarkAllNotificationsRead(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "All notifications marked as read.")
				return nil
			},
		},
		&cobra.Command{
			Use:   "count",
			Short: "Print the number of unread notifications",
			RunE: func(cmd *cobra.Command, args []string) error {
				a := appFrom(cmd)
				if _, err := a.authorize("/notifications"); err != nil {
					return err
				}
				n, err := a.api.UnreadNotificationCount(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), n)
				return nil
			},
		},
	)
	return cmd
}
