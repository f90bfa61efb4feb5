package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/mmynk/chama/internal/metrics"
	"github.com/mmynk/chama/internal/pages"
	"github.com/mmynk/chama/internal/realtime"
	"github.com/mmynk/chama/internal/tui"
)

func newDashboardCmd() *cobra.Command {
	var member, offline bool

	cmd := &cobra.Command{
		Use:         "dashboard",
		Short:       "Open the live group dashboard",
		Annotations: map[string]string{"terminal": "true"},
		Long: `Open the live dashboard in the terminal. Admins get the admin dashboard
with pending loans, withdrawals and join requests; members get their own
account view. Both follow the group's realtime events and re-fetch at most
once per debounce window. Logs are written to the system temp directory
(chama.log) while the dashboard is open.

Examples:
  chama dashboard
  chama dashboard --member`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a := appFrom(cmd)
			if _, err := a.authorize("/dashboard"); err != nil {
				return err
			}
			sess, err := a.refreshProfile(ctx)
			if err != nil {
				return err
			}
			if sess.GroupID == 0 {
				return ErrNoGroup
			}

			if a.registry != nil {
				stop := serveMetrics(a)
				defer stop()
			}

			opts := pages.Options{
				Cache:    a.store,
				Debounce: a.cfg.Debounce,
				Logger:   a.logger,
				Metrics:  a.metrics,
			}
			if !offline {
				ch, err := realtime.Connect(ctx, a.cfg.RealtimeURL, sess.GroupID, realtime.Options{
					Token:            a.session.Token,
					ReconnectInitial: a.cfg.ReconnectInitial,
					ReconnectMax:     a.cfg.ReconnectMax,
					Logger:           a.logger,
					Metrics:          a.metrics,
				})
				if err != nil {
					a.logger.Warn("Live updates unavailable", "error", err)
				} else {
					defer ch.Disconnect()
					opts.Channel = ch
				}
			}

			a.logger.Debug("Opening dashboard", "group_id", sess.GroupID, "admin", sess.IsAdmin)

			title := "Chama"
			if sess.User != nil && sess.User.GroupName != "" {
				title = sess.User.GroupName
			}
			teaOpts := []tea.ProgramOption{tea.WithAltScreen(), tea.WithInput(cmd.InOrStdin()), tea.WithOutput(cmd.OutOrStdout())}

			if sess.IsAdmin && !member {
				page := pages.NewAdminDashboard(a.api, sess.GroupID, opts)
				return tui.RunAdmin(ctx, title+" · admin", page, teaOpts...)
			}
			page := pages.NewMemberDashboard(a.api, sess.GroupID, opts)
			return tui.RunMember(ctx, title, page, teaOpts...)
		},
	}

	cmd.Flags().BoolVar(&member, "member", false, "show the member dashboard even for admins")
	cmd.Flags().BoolVar(&offline, "offline", false, "do not subscribe to realtime events")
	return cmd
}

// serveMetrics exposes the client's Prometheus metrics until stop is called.
func serveMetrics(a *app) (stop func()) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.HandlerFor(a.registry))
	srv := &http.Server{Addr: a.cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("Metrics server failed", "address", a.cfg.MetricsAddr, "error", err)
		}
	}()
	a.logger.Info("Serving metrics", "address", fmt.Sprintf("http://%s/metrics", a.cfg.MetricsAddr))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
