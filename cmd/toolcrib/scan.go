package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/garyjia/toolcrib/internal/container"
)

func newScanOverdueCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "scan-overdue",
		Short: "Run one overdue-loan scan and exit",
		Long: `Run one overdue-loan scan and exit.

Each checked-out loan past its expected return time is flagged once and a
loan.overdue event is logged. Suitable for cron when the serve worker is
disabled.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := container.NewContainer(a.cfg, a.logger, container.WithoutWorkers())
			if err != nil {
				return err
			}
			if err := c.Start(cmd.Context()); err != nil {
				return err
			}
			// Close drains the dispatcher so the overdue events are logged.
			defer c.Close()

			n, err := c.OverdueWorker().ScanOnce(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d loans newly flagged overdue\n", n)
			return nil
		},
	}
}
