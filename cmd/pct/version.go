package main

import (
	"context"
	"runtime"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gezibash/pointcloud-transport/internal/cli"
	"github.com/gezibash/pointcloud-transport/internal/host"
	"github.com/gezibash/pointcloud-transport/pkg/transport"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func newVersionCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cli.RunCommand(cmd.Context(), cli.CommandConfig{
				Name:   "version",
				Viper:  v,
				Stdout: cmd.OutOrStdout(),
				Stderr: cmd.ErrOrStderr(),
				Run: func(_ context.Context, _ *cli.Env, out *cli.Output) error {
					return out.KV("version").
						Set("version", version).
						Set("commit", commit).
						Set("built", buildDate).
						Set("go", runtime.Version()).
						Set("publishers", transport.Publishers.DeclaredLookupNames()).
						Set("subscribers", transport.Subscribers.DeclaredLookupNames()).
						Set("backends", host.ListBackends()).
						Render()
				},
			})
		},
	}
}
