// Package observability wires logging, metrics and tracing for pct commands
// and the transport adapters.
package observability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Observability holds all observability components.
type Observability struct {
	Logger         *slog.Logger
	Metrics        *Metrics
	TracerProvider trace.TracerProvider
	ServiceName    string
	ServiceVersion string

	closers *closers
}

// ObsConfig is the config subset needed by the observability package.
type ObsConfig struct {
	LogLevel       string
	LogFormat      string
	OTLPEndpoint   string
	OTLPProtocol   string
	ServiceName    string
	ServiceVersion string
}

// New initializes logging, tracing, and metrics. Logs are written to w.
func New(ctx context.Context, cfg ObsConfig, w io.Writer) (*Observability, error) {
	logger := SetupLogger(cfg.LogLevel, cfg.LogFormat, w)
	o := &Observability{
		Logger:         logger,
		Metrics:        NewMetrics(),
		ServiceName:    cfg.ServiceName,
		ServiceVersion: cfg.ServiceVersion,
		closers:        &closers{logger: Component(logger, "observability")},
	}

	if cfg.OTLPEndpoint == "" {
		o.TracerProvider = tracenoop.NewTracerProvider()
		logger.Debug("tracing disabled (no otlp_endpoint configured)")
		return o, nil
	}

	tp, err := newTracerProvider(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	o.TracerProvider = tp
	o.OnClose("tracer", tp.Shutdown)
	return o, nil
}

// OnClose registers fn to run on Close. Functions run in reverse
// registration order.
func (o *Observability) OnClose(name string, fn func(context.Context) error) {
	o.closers.push(name, fn)
}

// Close flushes traces and stops the metrics server.
func (o *Observability) Close(ctx context.Context) error {
	return o.closers.run(ctx)
}

// ServeMetrics starts the HTTP server for /metrics and /health. The server is
// stopped by Close.
func (o *Observability) ServeMetrics(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(o.Metrics.Registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		o.Logger.Info("metrics server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			o.Logger.Error("metrics server error", "error", err)
		}
	}()

	o.OnClose("metrics-server", srv.Shutdown)

	return srv
}
