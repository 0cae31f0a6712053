package commands

import (
	"context"

	"github.com/spf13/cobra"
)

func (e *env) reportCommand() *cobra.Command {
	var propertiesOnly bool
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the message that would be sent, without sending it",
		Long: `Build the report exactly as send would and print it as JSON.

Works with ENABLE_TELEMETRY=False. The instance id is created if it does not exist
yet, unless telemetry is disabled; then userId stays empty until one exists.`,
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
			defer func() { _ = a.Close(context.WithoutCancel(ctx)) }()

			msg, err := a.Job.Compose(ctx)
			if err != nil {
				return err
			}
			if propertiesOnly {
				return writeJSON(cmd.OutOrStdout(), msg.Properties)
			}
			return writeJSON(cmd.OutOrStdout(), msg)
		},
	}
	cmd.Flags().BoolVarP(&propertiesOnly, "properties", "p", false, "print only the properties")
	return cmd
}
