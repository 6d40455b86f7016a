package main

import (
	"context"
	"slices"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gezibash/pointcloud-transport/internal/cli"
	"github.com/gezibash/pointcloud-transport/internal/host"
)

func newBackendsCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "backends",
		Short: "List hosting backends and their default settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cli.RunCommand(cmd.Context(), cli.CommandConfig{
				Name:   "backends",
				Viper:  v,
				Stdout: cmd.OutOrStdout(),
				Stderr: cmd.ErrOrStderr(),
				Run: func(_ context.Context, _ *cli.Env, out *cli.Output) error {
					t := out.Table("host-backends", "Backend", "Setting", "Default")
					for _, name := range host.ListBackends() {
						defaults := host.GetDefaults(name)
						if len(defaults) == 0 {
							t.AddRow(name)
							continue
						}
						keys := make([]string, 0, len(defaults))
						for k := range defaults {
							keys = append(keys, k)
						}
						slices.Sort(keys)
						for _, k := range keys {
							t.AddRow(name, k, defaults[k])
						}
					}
					return t.Render()
				},
			})
		},
	}
}
