package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/viper"
	"go.opentelemetry.io/otel/attribute"

	"github.com/gezibash/pointcloud-transport/internal/config"
	"github.com/gezibash/pointcloud-transport/internal/observability"
	"github.com/gezibash/pointcloud-transport/pkg/transport"
)

// shutdownTimeout bounds flushing traces and stopping the metrics server.
const shutdownTimeout = 5 * time.Second

// CommandConfig configures one pct command invocation.
type CommandConfig struct {
	// Name identifies the command in logs and operation metrics.
	Name string

	// Viper holds flags bound by config.BindFlags.
	Viper *viper.Viper

	// Stdout receives rendered results; Stderr receives logs. Both default
	// to the process streams.
	Stdout io.Writer
	Stderr io.Writer

	// Timeout for the command. Zero means no timeout.
	Timeout time.Duration

	// Run is the command's business logic.
	Run func(ctx context.Context, env *Env, out *Output) error
}

// Env is what a command runs with.
type Env struct {
	Config  config.Config
	Logger  *slog.Logger
	Metrics *observability.Metrics
}

// RunCommand loads configuration, sets up observability, installs the
// transport instrumentation on the context and runs cfg.Run.
func RunCommand(ctx context.Context, cfg CommandConfig) (err error) {
	if cfg.Name == "" {
		return errors.New("command name required")
	}
	if cfg.Viper == nil {
		return errors.New("viper required")
	}
	if cfg.Run == nil {
		return errors.New("run function required")
	}
	stdout, stderr := cfg.Stdout, cfg.Stderr
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}

	conf, err := config.Load(cfg.Viper, cfg.Viper.GetString("config"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	obs, err := observability.New(ctx, conf.Observability.ObsConfig(), stderr)
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if cerr := obs.Close(shutdownCtx); cerr != nil {
			obs.Logger.Warn("shutdown incomplete", "error", cerr)
		}
	}()

	if conf.Observability.MetricsAddr != "" {
		obs.ServeMetrics(conf.Observability.MetricsAddr)
	}

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	ctx = transport.WithInstrumentation(ctx, obs.Logger, obs.Metrics)
	op, ctx := observability.StartOperation(ctx, obs.Metrics, "cmd."+cfg.Name)
	defer func() { op.End(err) }()
	op.Annotate(
		attribute.String("output", conf.Output),
		attribute.String("host.backend", conf.Host.Backend),
	)

	env := &Env{
		Config:  conf,
		Logger:  observability.Component(obs.Logger, cfg.Name),
		Metrics: obs.Metrics,
	}
	return cfg.Run(ctx, env, NewOutput(ParseFormat(conf.Output), stdout))
}
