package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cast"
	"github.com/spf13/cobra"

	"github.com/mmynk/chama/internal/forms"
	"github.com/mmynk/chama/internal/models"
)

// amountCmd builds contribute, borrow and repay: one positional amount
// submitted through the matching form.
func amountCmd(use, short, path string, build func(forms.Finance) *forms.AmountForm) *cobra.Command {
	return &cobra.Command{
		Use:   use + " AMOUNT",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd)
			sess, err := a.authorize(path)
			if err != nil {
				return err
			}
			if _, err := a.groupOf(cmd.Context(), sess); err != nil {
				return err
			}

			form := build(a.api)
			form.Amount = args[0]
			err = form.Submit(cmd.Context())
			return report(cmd, form.Banner, err)
		},
	}
}

func newContributeCmd() *cobra.Command {
	return amountCmd("contribute", "Contribute to the group's savings", "/contribute", forms.NewContributionForm)
}

func newBorrowCmd() *cobra.Command {
	return amountCmd("borrow", "Request a loan up to your limit", "/borrow", forms.NewBorrowForm)
}

func newRepayCmd() *cobra.Command {
	return amountCmd("repay", "Repay your outstanding loans", "/repay", forms.NewRepayForm)
}

func newSummaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Show this month's contributions, share and loan limit",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd)
			if _, err := a.authorize("/finance"); err != nil {
				return err
			}
			s, err := a.api.AccountSummary(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "Group\t%s\n", s.GroupName)
			fmt.Fprintf(w, "Month\t%s\n", s.Month)
			fmt.Fprintf(w, "Daily amount\t%.2f\n", s.DailyAmount)
			fmt.Fprintf(w, "Contributed\t%.2f of %.2f required\n", s.MonthlyContributed, s.RequiredSoFar)
			if s.PendingAmount > 0 {
				fmt.Fprintf(w, "Pending\t%.2f\n", s.PendingAmount)
			}
			fmt.Fprintf(w, "Outstanding loan\t%.2f\n", s.OutstandingLoan)
			fmt.Fprintf(w, "Group funds\t%.2f\n", s.AdjustedGroupFunds)
			fmt.Fprintf(w, "Your share\t%.2f%%\n", s.PercentageShare)
			fmt.Fprintf(w, "Loan limit\t%.2f\n", s.LoanLimit)
			return w.Flush()
		},
	}
}

func newLoansCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "loans",
		Short: "List your loans",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd)
			if _, err := a.authorize("/finance"); err != nil {
				return err
			}
			loans, err := a.api.MyLoans(cmd.Context())
			if err != nil {
				return err
			}
			if len(loans) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No loans.")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tPRINCIPAL\tRATE\tOWING\tDISBURSED")
			for _, l := range loans {
				fmt.Fprintf(w, "%d\t%.2f\t%.1f%%\t%.2f\t%s\n", l.ID, l.Principal, l.InterestRate, l.AccruedBalance, l.DisbursedOn)
			}
			return w.Flush()
		},
	}
}

func newTransactionsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "transactions",
		Short: "List your ledger entries, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd)
			if _, err := a.authorize("/transactions"); err != nil {
				return err
			}
			txs, err := a.api.Transactions(cmd.Context())
			if err != nil {
				return err
			}
			if limit > 0 && len(txs) > limit {
				txs = txs[:limit]
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "DATE\tAMOUNT\tREASON")
			for _, tx := range txs {
				amount := tx.Amount
				if tx.Type == models.TransactionDebit {
					amount = -amount
				}
				fmt.Fprintf(w, "%s\t%+.2f\t%s\n", tx.Date, amount, tx.Reason)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "show at most this many entries (0 for all)")
	return cmd
}

func newWithdrawalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "withdrawal",
		Aliases: []string{"withdraw"},
		Short:   "Request and vote on withdrawals from the group funds",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	var reason string
	request := &cobra.Command{
		Use:   "request AMOUNT",
		Short: "Ask the group to approve a withdrawal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd)
			sess, err := a.authorize("/finance")
			if err != nil {
				return err
			}
			if _, err := a.groupOf(cmd.Context(), sess); err != nil {
				return err
			}
			form := forms.NewWithdrawalForm(a.api)
			form.Amount, form.Reason = args[0], reason
			if err := report(cmd, form.Banner, form.Submit(cmd.Context())); err != nil {
				return err
			}
			if form.Created != 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "Withdrawal id: %d\n", form.Created)
			}
			return nil
		},
	}
	request.Flags().StringVar(&reason, "reason", "", "why the money is needed")

	list := &cobra.Command{
		Use:   "list",
		Short: "List the group's pending withdrawals",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd)
			if _, err := a.authorize("/finance"); err != nil {
				return err
			}
			ws, err := a.api.GroupWithdrawals(cmd.Context())
			if err != nil {
				return err
			}
			if len(ws) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No pending withdrawals.")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tBY\tAMOUNT\tVOTES\tREASON")
			for _, wd := range ws {
				fmt.Fprintf(w, "%d\t%s\t%.2f\t%d/%d\t%s\n", wd.ID, wd.RequestedBy, wd.Amount, wd.Approvals, wd.Rejections, wd.Reason)
			}
			return w.Flush()
		},
	}

	cmd.AddCommand(
		request,
		list,
		voteCmd("approve", "Vote to approve a withdrawal", func(a *app, ctx context.Context, id int64) (string, error) {
			resp, err := a.api.ApproveWithdrawal(ctx, id)
			if err != nil {
				return "", err
			}
			return voteMessage(resp), nil
		}),
		voteCmd("reject", "Vote to reject a withdrawal", func(a *app, ctx context.Context, id int64) (string, error) {
			resp, err := a.api.RejectWithdrawal(ctx, id)
			if err != nil {
				return "", err
			}
			return voteMessage(resp), nil
		}),
		voteCmd("cancel", "Cancel a withdrawal you requested", func(a *app, ctx context.Context, id int64) (string, error) {
			resp, err := a.api.CancelWithdrawal(ctx, id)
			if err != nil {
				return "", err
			}
			return resp.Message, nil
		}),
	)
	return cmd
}

func voteCmd(use, short string, run func(a *app, ctx context.Context, id int64) (string, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd)
			if _, err := a.authorize("/finance"); err != nil {
				return err
			}
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			message, err := run(a, cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), message)
			return nil
		},
	}
}

func voteMessage(resp *models.VoteResponse) string {
	msg := resp.Message
	if resp.Status != "" && resp.Status != "pending" {
		msg = fmt.Sprintf("%s (withdrawal %s)", msg, resp.Status)
	}
	return msg
}

func parseID(raw string) (int64, error) {
	id, err := cast.ToInt64E(raw)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}
