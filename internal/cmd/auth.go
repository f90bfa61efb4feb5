package cmd

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mmynk/chama/internal/guard"
	"github.com/mmynk/chama/internal/models"
)

func newLoginCmd() *cobra.Command {
	var email, password, googleToken string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in with email and password",
		Long: `Log in to the chama backend. The session is stored locally and reused by
every other command until it expires or the server rejects it.

Examples:
  chama login --email akinyi@example.com
  chama login --google-token <id-token>`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd)

			var sess *models.Session
			var err error
			if googleToken != "" {
				sess, err = a.session.LoginWithGoogle(cmd.Context(), googleToken)
			} else {
				if email == "" {
					return fmt.Errorf("--email is required")
				}
				if password == "" {
					password, err = readSecret(cmd, "Password: ")
					if err != nil {
						return err
					}
				}
				sess, err = a.session.Login(cmd.Context(), email, password)
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", displayName(sess))
			fmt.Fprintf(cmd.OutOrStdout(), "Next: %s\n", landing(sess))
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (prompted when empty)")
	cmd.Flags().StringVar(&googleToken, "google-token", "", "Google ID token to exchange instead of a password")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Log out and remove the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd)
			if a.session.Current() == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "Not logged in.")
				return nil
			}
			if err := a.session.Logout(cmd.Context()); err != nil {
				return fmt.Errorf("failed to log out: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		},
	}
}

func newRegisterCmd() *cobra.Command {
	var req models.RegisterRequest

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Long: `Create an account. Most backends send a verification email first; log in
once the address is confirmed.

Examples:
  chama register --name Akinyi --email akinyi@example.com --phone 254700000001`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd)
			if req.Password == "" {
				var err error
				if req.Password, err = readSecret(cmd, "Password: "); err != nil {
					return err
				}
			}

			resp, sess, err := a.session.Register(cmd.Context(), req)
			if err != nil {
				return err
			}
			switch {
			case sess != nil:
				fmt.Fprintf(cmd.OutOrStdout(), "Registered and logged in as %s\n", displayName(sess))
			case resp.Message != "":
				fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
			default:
				fmt.Fprintln(cmd.OutOrStdout(), "Registration successful. Verify your email, then run `chama login`.")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Name, "name", "", "display name")
	cmd.Flags().StringVar(&req.Email, "email", "", "account email")
	cmd.Flags().StringVar(&req.Phone, "phone", "", "M-Pesa phone number (254xxxxxxxxx)")
	cmd.Flags().StringVar(&req.Password, "password", "", "account password (prompted when empty)")
	return cmd
}

func newWhoamiCmd() *cobra.Command {
	var refresh bool

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd)
			sess, err := a.authorize("/profile")
			if err != nil {
				return err
			}
			if refresh {
				if sess, err = a.refreshProfile(cmd.Context()); err != nil {
					return err
				}
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "User:   %s\n", displayName(sess))
			if sess.User != nil && sess.User.Email != "" {
				fmt.Fprintf(w, "Email:  %s\n", sess.User.Email)
			}
			switch {
			case sess.GroupID == 0:
				fmt.Fprintln(w, "Group:  none")
			case sess.User != nil && sess.User.GroupName != "":
				fmt.Fprintf(w, "Group:  %s (%d)\n", sess.User.GroupName, sess.GroupID)
			default:
				fmt.Fprintf(w, "Group:  %d\n", sess.GroupID)
			}
			if sess.IsAdmin {
				fmt.Fprintln(w, "Role:   admin")
			} else {
				fmt.Fprintln(w, "Role:   member")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "reload the profile from the server")
	return cmd
}

// landing is where a fresh session is sent.
func landing(sess *models.Session) string {
	if guard.Resolve("/admin/dashboard", sess).Allowed {
		return "chama dashboard (admin)"
	}
	if sess.GroupID == 0 {
		return "chama group create NAME or chama group join CODE"
	}
	return "chama dashboard"
}

func displayName(sess *models.Session) string {
	if sess.User != nil && sess.User.Name != "" {
		return sess.User.Name
	}
	return fmt.Sprintf("user %d", sess.UserID)
}

func readSecret(cmd *cobra.Command, prompt string) (string, error) {
	fmt.Fprint(cmd.ErrOrStderr(), prompt)
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
