// Package obs wires structured logging, tracing, and metrics for a run,
// in the shape of the corpus's observability package: a slog.Handler
// that injects contextual attributes, an OTel tracer/meter pair, and a
// Prometheus-backed metric set (spec.md's Design Notes §9, SPEC_FULL.md
// §1/§11).
package obs

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

const (
	attrTraceID  = "trace_id"
	attrSpanID   = "span_id"
	attrRunID    = "run_id"
	attrWorkflow = "workflow"
)

// RunAttrs carries static attributes injected into every record emitted
// through a RunHandler: the run identifier and the active workflow name
// (analyze/send/validate/report), in place of the teacher's
// service/env/mode triple.
type RunAttrs struct {
	RunID    string
	Workflow string
}

// RunHandler is an [slog.Handler] that injects the active run's
// identifier, workflow name, and OpenTelemetry trace context into every
// log record. Modeled on TracingHandler in
// pkg/observability/logger.go.
type RunHandler struct {
	inner slog.Handler
}

// NewRunHandler wraps inner, pre-attaching attrs so they survive any
// later WithGroup call.
func NewRunHandler(inner slog.Handler, attrs RunAttrs) *RunHandler {
	pre := []slog.Attr{slog.String(attrRunID, attrs.RunID)}
	if attrs.Workflow != "" {
		pre = append(pre, slog.String(attrWorkflow, attrs.Workflow))
	}

	return &RunHandler{inner: inner.WithAttrs(pre)}
}

// Enabled delegates to the inner handler.
func (h *RunHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle adds trace context attributes from the span context, then
// delegates to the inner handler.
func (h *RunHandler) Handle(ctx context.Context, record slog.Record) error {
	sc := trace.SpanContextFromContext(ctx)
	if sc.IsValid() {
		record.AddAttrs(
			slog.String(attrTraceID, sc.TraceID().String()),
			slog.String(attrSpanID, sc.SpanID().String()),
		)
	}

	if err := h.inner.Handle(ctx, record); err != nil {
		return fmt.Errorf("obs: handle log record: %w", err)
	}

	return nil
}

// WithAttrs returns a new RunHandler with additional attributes.
func (h *RunHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &RunHandler{inner: h.inner.WithAttrs(attrs)}
}

// WithGroup returns a new RunHandler with a group prefix.
func (h *RunHandler) WithGroup(name string) slog.Handler {
	return &RunHandler{inner: h.inner.WithGroup(name)}
}

// NewLogger builds the *slog.Logger used by every workflow: inner (the
// text or JSON handler chosen by the caller) wrapped with a RunHandler.
func NewLogger(inner slog.Handler, attrs RunAttrs) *slog.Logger {
	return slog.New(NewRunHandler(inner, attrs))
}
