package cmd

import (
	"fmt"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mmynk/chama/internal/guard"
)

func newRouteCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "route [PATH...]",
		Short: "Explain which screens the current session may open",
		Long: `Resolve screen paths against the current session and print whether each one
renders or where it redirects.

Examples:
  chama route /admin/dashboard
  chama route --all`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd)
			sess := a.session.Current()

			paths := args
			if all || len(paths) == 0 {
				for p := range guard.Routes {
					paths = append(paths, p)
				}
				slices.Sort(paths)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Session: %s\n", guard.StateOf(sess))
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "PATH\tACCESS\tRESULT")
			for _, p := range paths {
				d := guard.Resolve(p, sess)
				result := "renders"
				if !d.Allowed {
					result = "redirects to " + d.Redirect
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", d.Path, d.Access, result)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "resolve every known route")
	return cmd
}
