package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gezibash/pointcloud-transport/internal/cli"
	"github.com/gezibash/pointcloud-transport/internal/inspect"
	"github.com/gezibash/pointcloud-transport/pkg/transport"
)

func newListCmd(v *viper.Viper) *cobra.Command {
	var where string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List declared transports and whether their plugins load",
		Long: `List every declared transport, instantiate each publisher and subscriber
plugin once, and report which ones are unavailable. Problems are reported,
not returned: the command exits 0 whenever the report could be produced.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter, err := inspect.CompileFilter(where)
			if err != nil {
				return fmt.Errorf("--where: %w", err)
			}

			return cli.RunCommand(cmd.Context(), cli.CommandConfig{
				Name:   "list",
				Viper:  v,
				Stdout: cmd.OutOrStdout(),
				Stderr: cmd.ErrOrStderr(),
				Run: func(ctx context.Context, env *cli.Env, out *cli.Output) error {
					report := inspect.New(transport.Publishers, transport.Subscribers,
						inspect.WithLogger(env.Logger),
						inspect.WithMetrics(env.Metrics),
					).Run(ctx)

					if out.IsTerminal() {
						report.Styled(true).WrapAt(terminalWidth)
					}
					return out.Render(report.Filter(filter))
				},
			})
		},
	}

	cmd.Flags().StringVar(&where, "where", "", `CEL filter over transports, e.g. 'problem' or 'identity == "raw"'`)
	return cmd
}
