package observability

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope for pct spans.
const TracerName = "pointcloud-transport"

// Operation statuses used as the status label of the operation metrics.
const (
	StatusOK       = "ok"
	StatusError    = "error"
	StatusCanceled = "canceled"
)

// StartSpan starts a span on the global tracer.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(TracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}

// EndSpan ends span, marking it failed when err is non-nil.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Operation is one traced and timed unit of work, such as a command run or
// a host connection.
type Operation struct {
	name    string
	started time.Time
	ctx     context.Context
	span    trace.Span
	log     *slog.Logger
	metrics *Metrics
}

// StartOperation opens a span named name and starts the clock. m may be nil.
func StartOperation(ctx context.Context, m *Metrics, name string, attrs ...attribute.KeyValue) (*Operation, context.Context) {
	ctx, span := StartSpan(ctx, name, attrs...)
	op := &Operation{
		name:    name,
		started: time.Now(),
		ctx:     ctx,
		span:    span,
		log:     slog.Default().With("operation", name),
		metrics: m,
	}
	op.log.DebugContext(ctx, "operation started")
	return op, ctx
}

// Logger returns a logger tagged with the operation name.
func (o *Operation) Logger() *slog.Logger { return o.log }

// Annotate adds attributes to the operation's span.
func (o *Operation) Annotate(attrs ...attribute.KeyValue) {
	o.span.SetAttributes(attrs...)
}

// End closes the span and records duration and outcome. A context
// cancellation is recorded as canceled rather than as an error.
func (o *Operation) End(err error) {
	elapsed := time.Since(o.started).Seconds()
	status := operationStatus(err)

	switch status {
	case StatusError:
		o.log.ErrorContext(o.ctx, "operation failed", "error", err, "duration", elapsed)
		EndSpan(o.span, err)
	case StatusCanceled:
		o.log.InfoContext(o.ctx, "operation canceled", "duration", elapsed)
		EndSpan(o.span, nil)
	default:
		o.log.DebugContext(o.ctx, "operation completed", "duration", elapsed)
		EndSpan(o.span, nil)
	}

	if o.metrics == nil {
		return
	}
	o.metrics.OperationDuration.WithLabelValues(o.name, status).Observe(elapsed)
	o.metrics.OperationTotal.WithLabelValues(o.name, status).Inc()
}

func operationStatus(err error) string {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, context.Canceled):
		return StatusCanceled
	default:
		return StatusError
	}
}
