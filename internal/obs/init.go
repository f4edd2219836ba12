package obs

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const (
	tracerName = "dicomsync"
	meterName  = "dicomsync"

	defaultShutdownTimeoutSec = 5
)

// Config selects how Init builds the logging/tracing/metrics stack.
type Config struct {
	// RunAttrs is injected into every log record (run_id, workflow).
	RunAttrs RunAttrs

	// LogJSON selects the JSON slog handler; otherwise plain text.
	LogJSON bool

	// LogLevel is the minimum level emitted.
	LogLevel slog.Level

	// Registerer is the Prometheus registry backing the metrics
	// exporter. A caller-supplied registry lets cmd/dicomsync serve
	// /metrics from the same registry Init populates. Defaults to
	// prometheus.DefaultRegisterer when nil.
	Registerer prometheus.Registerer
}

// Providers holds the initialized observability providers for a run.
type Providers struct {
	Tracer trace.Tracer
	Meter  metric.Meter
	Logger *slog.Logger

	// Shutdown flushes pending spans and releases resources. Must be
	// called before process exit.
	Shutdown func(ctx context.Context) error
}

// Init builds tracing, metrics, and logging for one run. Unlike the
// corpus's OTLP-exporting Init, dicomsync never ships telemetry off box:
// metrics are exposed locally via a Prometheus exporter/registry (the
// diagnostics HTTP server in cmd/dicomsync scrapes it), and traces use
// an always-on sampler with no exporter wired beyond the in-process span
// processor, since there is no collector endpoint in scope (SPEC_FULL.md
// §1/§11).
func Init(cfg Config) (Providers, error) {
	res, err := buildResource(cfg)
	if err != nil {
		return Providers{}, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)

	mp, err := buildMeterProvider(cfg, res)
	if err != nil {
		shutdownErr := tp.Shutdown(context.Background())

		return Providers{}, fmt.Errorf("obs: build meter provider: %w, tracer shutdown: %v", err, shutdownErr)
	}
	otel.SetMeterProvider(mp)

	logger := buildLogger(cfg)

	shutdown := func(ctx context.Context) error {
		deadline, cancel := context.WithTimeout(ctx, defaultShutdownTimeoutSec*time.Second)
		defer cancel()

		if err := tp.Shutdown(deadline); err != nil {
			return fmt.Errorf("obs: shutdown tracer provider: %w", err)
		}

		return nil
	}

	return Providers{
		Tracer:   tp.Tracer(tracerName),
		Meter:    mp.Meter(meterName),
		Logger:   logger,
		Shutdown: shutdown,
	}, nil
}

func buildResource(cfg Config) (*resource.Resource, error) {
	attrs := []resource.Option{
		resource.WithAttributes(semconv.ServiceName("dicomsync")),
	}

	if cfg.RunAttrs.RunID != "" {
		attrs = append(attrs, resource.WithAttributes(semconv.ServiceInstanceID(cfg.RunAttrs.RunID)))
	}

	res, err := resource.New(context.Background(), attrs...)
	if err != nil {
		return nil, fmt.Errorf("obs: build otel resource: %w", err)
	}

	return res, nil
}

func buildMeterProvider(cfg Config, res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	reg := cfg.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	exporter, err := otelprom.New(otelprom.WithRegisterer(reg))
	if err != nil {
		return nil, fmt.Errorf("obs: create prometheus exporter: %w", err)
	}

	return sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(res),
	), nil
}

func buildLogger(cfg Config) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{Level: cfg.LogLevel}

	var inner slog.Handler
	if cfg.LogJSON {
		inner = slog.NewJSONHandler(os.Stderr, handlerOpts)
	} else {
		inner = slog.NewTextHandler(os.Stderr, handlerOpts)
	}

	return NewLogger(inner, cfg.RunAttrs)
}
