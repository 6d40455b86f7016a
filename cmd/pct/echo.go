package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gezibash/pointcloud-transport/internal/cli"
	"github.com/gezibash/pointcloud-transport/internal/config"
	"github.com/gezibash/pointcloud-transport/pkg/pointcloud"
	"github.com/gezibash/pointcloud-transport/pkg/transport"
)

func newEchoCmd(v *viper.Viper) *cobra.Command {
	var (
		flags    streamFlags
		group    string
		loopback bool
	)

	cmd := &cobra.Command{
		Use:   "echo",
		Short: "Subscribe to a topic and print one line per received cloud",
		Long: `Subscribe to a topic through the named transport and print a summary of
every cloud received. With --loopback, synthetic clouds are also published on
the same host, which makes the in-process memory backend useful on its own.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := flags.validate(); err != nil {
				return err
			}

			return cli.RunCommand(cmd.Context(), cli.CommandConfig{
				Name:   "echo",
				Viper:  v,
				Stdout: cmd.OutOrStdout(),
				Stderr: cmd.ErrOrStderr(),
				Run: func(ctx context.Context, env *cli.Env, out *cli.Output) error {
					backend, err := openHost(ctx, env)
					if err != nil {
						return err
					}
					defer func() { _ = backend.Close() }()

					qos, _ := flags.qos()
					received := make(chan *pointcloud.PointCloud, qos.QueueDepth())
					cb := func(cloud *pointcloud.PointCloud) {
						select {
						case received <- cloud:
						default:
							env.Logger.Warn("output lagging, cloud skipped", "seq", cloud.Header.Seq)
						}
					}

					var opts []transport.SubscriptionOption
					if group != "" {
						opts = append(opts, transport.WithGroup(group))
					}
					sub, err := transport.Subscribe(ctx, backend, flags.topic, flags.transport, cb, qos, opts...)
					if err != nil {
						return err
					}
					defer sub.Shutdown()
					env.Logger.Info("subscribed", "topic", sub.Topic(), "transport", flags.transport, "group", group)

					if loopback {
						pub, err := transport.Advertise(ctx, backend, flags.topic, flags.transport, qos)
						if err != nil {
							return err
						}
						defer pub.Shutdown()

						pubCtx, stop := context.WithCancel(ctx)
						done := make(chan struct{})
						// Runs before pub.Shutdown and backend.Close.
						defer func() {
							stop()
							<-done
						}()
						loop := flags
						loop.count = 0
						go func() {
							defer close(done)
							if _, err := publishLoop(pubCtx, pub, &loop); err != nil {
								env.Logger.Error("loopback publisher stopped", "error", err)
							}
						}()
					}

					n := 0
				recv:
					for flags.count == 0 || n < flags.count {
						select {
						case <-ctx.Done():
							break recv
						case cloud := <-received:
							n++
							if out.Format() == cli.FormatText {
								_, _ = fmt.Fprintln(out.Writer(), summary(cloud))
							}
						}
					}

					return out.Result("echo", fmt.Sprintf("received %d clouds", n)).
						With("topic", sub.Topic()).
						With("transport", flags.transport).
						With("publishers", sub.NumPublishers()).
						Render()
				},
			})
		},
	}

	flags.bind(cmd)
	config.BindHostFlags(cmd, v)
	cmd.Flags().StringVar(&group, "group", "", "queue group; members share the topic's messages")
	cmd.Flags().BoolVar(&loopback, "loopback", false, "also publish synthetic clouds on the same host")
	return cmd
}

func summary(c *pointcloud.PointCloud) string {
	return fmt.Sprintf("seq=%d frame=%s points=%d dense=%t stamp=%s",
		c.Header.Seq, c.Header.FrameID, c.Len(), c.IsDense, c.Header.Stamp.UTC().Format(time.RFC3339Nano))
}
