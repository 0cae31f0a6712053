package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func (e *env) instanceIDCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "instance-id",
		Short: "Print the instance id, creating it on first use",
		Args:  cobra.NoArgs,
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

			id, err := a.Instances.GetOrCreate(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
}
