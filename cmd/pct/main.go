package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gezibash/pointcloud-transport/internal/config"

	_ "github.com/gezibash/pointcloud-transport/internal/host/memory"
	_ "github.com/gezibash/pointcloud-transport/internal/host/nats"
	_ "github.com/gezibash/pointcloud-transport/internal/host/redis"
	_ "github.com/gezibash/pointcloud-transport/pkg/transport/raw"
)

// terminalWidth is the wrap width for descriptions when writing to a TTY.
const terminalWidth = 100

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(viper.New()).ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "pct",
		Short:        "Point cloud transport tools",
		SilenceUsage: true,
	}
	config.BindFlags(rootCmd, v)

	rootCmd.AddCommand(newListCmd(v))
	rootCmd.AddCommand(newEchoCmd(v))
	rootCmd.AddCommand(newPublishCmd(v))
	rootCmd.AddCommand(newBackendsCmd(v))
	rootCmd.AddCommand(newVersionCmd(v))
	return rootCmd
}
