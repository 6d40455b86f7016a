package transport

import (
	"context"
	"log/slog"

	"github.com/gezibash/pointcloud-transport/internal/observability"
)

type adapterOptions struct {
	logger  *slog.Logger
	metrics *observability.Metrics
}

// Option configures SimpleSubscriber and SimplePublisher.
type Option func(*adapterOptions)

// WithLogger sets the adapter logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *adapterOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics enables message counters.
func WithMetrics(m *observability.Metrics) Option {
	return func(o *adapterOptions) {
		o.metrics = m
	}
}

type instrumentationKey struct{}

// WithInstrumentation returns a context carrying a logger and metrics for
// plugin factories. Factories pick them up with FromContext.
func WithInstrumentation(ctx context.Context, logger *slog.Logger, m *observability.Metrics) context.Context {
	return context.WithValue(ctx, instrumentationKey{}, adapterOptions{logger: logger, metrics: m})
}

// FromContext returns an Option applying the instrumentation stored by
// WithInstrumentation, if any.
func FromContext(ctx context.Context) Option {
	stored, _ := ctx.Value(instrumentationKey{}).(adapterOptions)
	return func(o *adapterOptions) {
		if stored.logger != nil {
			o.logger = stored.logger
		}
		if stored.metrics != nil {
			o.metrics = stored.metrics
		}
	}
}

// InstrumentationFrom returns the logger and metrics stored by
// WithInstrumentation. The logger falls back to slog.Default().
func InstrumentationFrom(ctx context.Context) (*slog.Logger, *observability.Metrics) {
	stored, _ := ctx.Value(instrumentationKey{}).(adapterOptions)
	if stored.logger == nil {
		stored.logger = slog.Default()
	}
	return stored.logger, stored.metrics
}

func newAdapterOptions(transportName, role string, opts []Option) adapterOptions {
	o := adapterOptions{logger: slog.Default()}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	o.logger = o.logger.With("component", "transport", "transport", transportName, "role", role)
	return o
}
