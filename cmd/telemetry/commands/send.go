package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"taiga-telemetry/internal/telemetry"
)

func (e *env) sendCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "send",
		Short: "Send the telemetry report once",
		Long: `Build the report and send it to the data plane now, then wait for the mirror sinks.

Use this as the entry point for external schedulers (cron, Kubernetes CronJob).
The command fails when the data plane rejects the event; mirror failures are only logged.
With ENABLE_TELEMETRY=False it does nothing and succeeds.`,
		Example: `  # Send from cron
  0 3 * * * telemetry send`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := e.config()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := e.openApp(ctx, cfg, e.version)
			if err != nil {
				return err
			}
			defer func() {
				closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), telemetry.ShutdownDrainDuration)
				defer cancel()
				_ = a.Close(closeCtx)
			}()

			if err := a.Job.Run(ctx); err != nil {
				return err
			}
			if !a.Job.Enabled() {
				fmt.Fprintln(cmd.OutOrStdout(), "telemetry is disabled; nothing sent")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "telemetry sent")
			return nil
		},
	}
}
