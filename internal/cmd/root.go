// Package cmd implements the chama command line client.
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mmynk/chama/internal/apperr"
	"github.com/mmynk/chama/internal/forms"
)

type appKey struct{}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	var (
		cfgFile string
		debug   bool
	)

	root := &cobra.Command{
		Use:   "chama",
		Short: "Client for chama group savings",
		Long: `chama talks to a chama finance backend: contribute to your group's savings,
borrow against them, vote on withdrawals and follow the group live.

Configuration is read from --config (YAML) and CHAMA_* environment variables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logOut := cmd.ErrOrStderr()
			if cmd.Annotations["terminal"] == "true" {
				logOut = nil
			}
			a, err := newApp(cmd.Context(), cfgFile, debug, logOut)
			if err != nil {
				return err
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey{}, a))
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a := appFrom(cmd); a != nil {
				return a.Close()
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "log at debug level")

	root.AddCommand(
		newLoginCmd(),
		newLogoutCmd(),
		newRegisterCmd(),
		newWhoamiCmd(),
		newGroupCmd(),
		newContributeCmd(),
		newBorrowCmd(),
		newRepayCmd(),
		newSummaryCmd(),
		newLoansCmd(),
		newTransactionsCmd(),
		newWithdrawalCmd(),
		newAdminCmd(),
		newNotificationsCmd(),
		newDashboardCmd(),
		newRouteCmd(),
	)
	return root
}

// ExecuteContext runs the command tree with ctx.
func ExecuteContext(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

func appFrom(cmd *cobra.Command) *app {
	a, _ := cmd.Context().Value(appKey{}).(*app)
	return a
}

// bannerError carries the message a form showed for a failed submit.
type bannerError struct {
	text string
	err  error
}

func (e *bannerError) Error() string { return e.text }
func (e *bannerError) Unwrap() error { return e.err }

// report prints a form's banner, or returns it as the command error.
func report(cmd *cobra.Command, b forms.Banner, err error) error {
	if err != nil {
		if b.Visible() {
			return &bannerError{text: b.Text, err: err}
		}
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), b.Text)
	return nil
}

// Message returns the text to print for an error returned by
// ExecuteContext. Typed client errors become their user-facing message.
func Message(err error) string {
	var be *bannerError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &be):
		return be.text
	case apperr.KindOf(err) == apperr.KindUnknown:
		return err.Error()
	}
	return apperr.UserMessage(err)
}
