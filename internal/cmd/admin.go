package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mmynk/chama/internal/forms"
	"github.com/mmynk/chama/internal/models"
)

func newAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Group administration",
		Long: `Group administration. Every subcommand requires the logged in user to be
the admin of their group.

Examples:
  chama admin daily-amount 100
  chama admin loan-policy --rate 10 --method reducing
  chama admin announce --title "Meeting" --message "Saturday at 10"
  chama admin approve-loan 4
  chama admin join approve 21`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(
		newDailyAmountCmd(),
		newLoanPolicyCmd(),
		newAnnounceCmd(),
		newApproveLoanCmd(),
		newJoinRequestCmd(),
	)
	return cmd
}

// adminSession authorizes an admin command and returns the group it acts on.
func adminSession(ctx context.Context, a *app) (*models.Session, error) {
	sess, err := a.authorize("/admin")
	if err != nil {
		return nil, err
	}
	return a.groupOf(ctx, sess)
}

func newDailyAmountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "daily-amount AMOUNT",
		Short: "Set the group's daily contribution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd)
			sess, err := adminSession(cmd.Context(), a)
			if err != nil {
				return err
			}
			form := forms.NewDailyAmountForm(a.api, sess.GroupID, 0)
			form.Amount = args[0]
			return report(cmd, form.Banner, form.Submit(cmd.Context()))
		},
	}
}

func newLoanPolicyCmd() *cobra.Command {
	var rate, method string

	cmd := &cobra.Command{
		Use:   "loan-policy",
		Short: "Show or change the group's loan policy",
		Long: `Without flags, show the loan policy. With --rate and/or --method, create the
policy or update the existing one.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd)
			sess, err := adminSession(cmd.Context(), a)
			if err != nil {
				return err
			}
			current, err := a.api.LoanPolicy(cmd.Context(), sess.GroupID)
			if err != nil {
				return err
			}

			if rate == "" && method == "" {
				if current == nil {
					fmt.Fprintln(cmd.OutOrStdout(), "No loan policy set.")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Interest rate: %.2f%%\nMethod: %s\n", current.InterestRate, current.Method)
				return nil
			}

			form := forms.NewLoanPolicyForm(a.api, sess.GroupID, current)
			if rate != "" {
				form.InterestRate = rate
			}
			if method != "" {
				form.Method = method
			}
			return report(cmd, form.Banner, form.Submit(cmd.Context()))
		},
	}

	cmd.Flags().StringVar(&rate, "rate", "", "interest rate in percent (0-100)")
	cmd.Flags().StringVar(&method, "method", "", "interest method: flat or reducing")
	return cmd
}

func newAnnounceCmd() *cobra.Command {
	var title, message string

	cmd := &cobra.Command{
		Use:   "announce",
		Short: "Post an announcement to the group",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd)
			sess, err := adminSession(cmd.Context(), a)
			if err != nil {
				return err
			}
			form := forms.NewAnnouncementForm(a.api, sess.GroupID)
			form.Title, form.Message = title, message
			return report(cmd, form.Banner, form.Submit(cmd.Context()))
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "announcement title")
	cmd.Flags().StringVar(&message, "message", "", "announcement body")
	return cmd
}

func newApproveLoanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "approve-loan ID",
		Short: "Approve and disburse a pending loan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd)
			sess, err := adminSession(cmd.Context(), a)
			if err != nil {
				return err
			}
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			resp, err := a.api.ApproveLoan(cmd.Context(), sess.GroupID, id)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
			return nil
		},
	}
}

func newJoinRequestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "join",
		Short: "Approve or reject join requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	decide := func(use string, approve bool) *cobra.Command {
		return &cobra.Command{
			Use:   use + " ID",
			Short: use + " a join request",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				a := appFrom(cmd)
				if _, err := adminSession(cmd.Context(), a); err != nil {
					return err
				}
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				call := a.api.RejectJoinRequest
				if approve {
					call = a.api.ApproveJoinRequest
				}
				resp, err := call(cmd.Context(), id)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
				return nil
			},
		}
	}

	cmd.AddCommand(decide("approve", true), decide("reject", false))
	return cmd
}
