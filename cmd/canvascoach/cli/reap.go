package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newReapCmd(opts *options) *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "reap",
		Short: "Reclaim sessions idle for longer than the session TTL",
		Long: `Delete assistant sessions that have been idle for longer than the session
TTL and clear them from their submissions. Without --once the reaper keeps
sweeping at the configured interval until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open()
			if err != nil {
				return err
			}
			defer a.Close()

			reaper := a.coach.NewReaper()
			out := cmd.OutOrStdout()

			if once {
				n, err := reaper.Sweep(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Reclaimed %d session(s)\n", n)
				return nil
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			fmt.Fprintf(out, "Reaping sessions idle for more than %s every %s (Ctrl+C to stop)\n",
				a.cfg.SessionTTL, reaper.Interval())
			stop := reaper.Start(ctx)
			<-ctx.Done()
			stop()
			fmt.Fprintln(out, "Reaper stopped")
			return nil
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "Sweep once and exit")
	return cmd
}
