package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gezibash/pointcloud-transport/internal/cli"
	"github.com/gezibash/pointcloud-transport/internal/config"
	"github.com/gezibash/pointcloud-transport/internal/host"
	"github.com/gezibash/pointcloud-transport/pkg/pointcloud"
	"github.com/gezibash/pointcloud-transport/pkg/transport"
)

// streamFlags are shared by publish and echo.
type streamFlags struct {
	topic       string
	transport   string
	reliability string
	depth       int
	rate        float64
	points      int
	frame       string
	count       int
}

func (f *streamFlags) bind(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.topic, "topic", "", "base topic (required)")
	fl.StringVar(&f.transport, "transport", "raw", "transport name")
	fl.StringVar(&f.reliability, "reliability", transport.BestEffort.String(), "best_effort or reliable")
	fl.IntVar(&f.depth, "depth", transport.DefaultDepth, "queue depth")
	fl.Float64Var(&f.rate, "rate", 10, "clouds per second when publishing")
	fl.IntVar(&f.points, "points", 1024, "points per synthetic cloud")
	fl.StringVar(&f.frame, "frame", "pct", "frame id of synthetic clouds")
	fl.IntVar(&f.count, "count", 0, "stop after this many clouds (0 = until interrupted)")
	_ = cmd.MarkFlagRequired("topic")
}

func (f *streamFlags) qos() (transport.QoS, error) {
	r, err := transport.ParseReliability(f.reliability)
	if err != nil {
		return transport.QoS{}, err
	}
	q := transport.QoS{Reliability: r, Depth: f.depth}
	return q, q.Validate()
}

func (f *streamFlags) validate() error {
	if f.count < 0 {
		return errors.New("--count must not be negative")
	}
	if f.rate <= 0 {
		return errors.New("--rate must be positive")
	}
	_, err := f.qos()
	return err
}

func newPublishCmd(v *viper.Viper) *cobra.Command {
	var flags streamFlags

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish synthetic point clouds on a topic",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := flags.validate(); err != nil {
				return err
			}

			return cli.RunCommand(cmd.Context(), cli.CommandConfig{
				Name:   "publish",
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
					pub, err := transport.Advertise(ctx, backend, flags.topic, flags.transport, qos)
					if err != nil {
						return err
					}
					defer pub.Shutdown()
					env.Logger.Info("advertised", "topic", pub.Topic(), "transport", flags.transport)

					sent, err := publishLoop(ctx, pub, &flags)
					if err != nil {
						return err
					}

					return out.Result("publish", fmt.Sprintf("published %d clouds", sent)).
						With("topic", pub.Topic()).
						With("transport", flags.transport).
						With("subscribers", pub.NumSubscribers()).
						Render()
				},
			})
		},
	}

	flags.bind(cmd)
	config.BindHostFlags(cmd, v)
	return cmd
}

// publishLoop publishes synthetic clouds at flags.rate until flags.count
// clouds are sent or ctx is done. Cancellation is not an error.
func publishLoop(ctx context.Context, pub transport.PublisherPlugin, flags *streamFlags) (int, error) {
	gen := pointcloud.NewGenerator(flags.frame, flags.points)
	ticker := time.NewTicker(time.Duration(float64(time.Second) / flags.rate))
	defer ticker.Stop()

	sent := 0
	for flags.count == 0 || sent < flags.count {
		select {
		case <-ctx.Done():
			return sent, nil
		case <-ticker.C:
		}
		if err := pub.Publish(ctx, gen.Next()); err != nil {
			if ctx.Err() != nil {
				return sent, nil
			}
			return sent, fmt.Errorf("publish: %w", err)
		}
		sent++
	}
	return sent, nil
}

func openHost(ctx context.Context, env *cli.Env) (host.Backend, error) {
	return host.New(ctx, env.Config.Host.Backend, env.Config.Host.Config, env.Metrics)
}
