package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/golos/golosmind/pkg/config"
	"github.com/golos/golosmind/pkg/logging"
)

const instrumentationName = "github.com/golos/golosmind"

var tracer trace.Tracer

// Init initializes OpenTelemetry with Jaeger and Prometheus exporters
func Init(cfg *config.TelemetryConfig) (func(), error) {
	logger := logging.WithComponent("telemetry")
	if !cfg.Enabled {
		logger.Info("Telemetry disabled")
		return func() {}, nil
	}

	ctx := context.Background()
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion("0.1.0"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	var shutdownFuncs []func(context.Context) error

	if cfg.JaegerURL != "" {
		jaegerExporter, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(cfg.JaegerURL)))
		if err != nil {
			return nil, fmt.Errorf("failed to create Jaeger exporter: %w", err)
		}
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(jaegerExporter),
			sdktrace.WithResource(res),
		)
		otel.SetTracerProvider(tp)
		shutdownFuncs = append(shutdownFuncs, tp.Shutdown)
		logger.Info("Jaeger exporter initialized", zap.String("url", cfg.JaegerURL))
	}

	if cfg.PrometheusEnabled {
		exporter, err := prometheus.New()
		if err != nil {
			return nil, fmt.Errorf("failed to create Prometheus exporter: %w", err)
		}
		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(exporter),
			sdkmetric.WithResource(res),
		)
		otel.SetMeterProvider(mp)
		shutdownFuncs = append(shutdownFuncs, mp.Shutdown)
		logger.Info("Prometheus exporter initialized", zap.Int("port", cfg.PrometheusPort))
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	tracer = otel.Tracer(cfg.ServiceName)

	shutdown := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		for _, fn := range shutdownFuncs {
			if err := fn(shutdownCtx); err != nil {
				logger.Error("Error shutting down telemetry", zap.Error(err))
			}
		}
	}
	return shutdown, nil
}

// Tracer returns the global tracer
func Tracer() trace.Tracer {
	if tracer == nil {
		return noop.NewTracerProvider().Tracer("golosmind")
	}
	return tracer
}

// StartSpan starts a new span
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, opts...)
}

// MetricsHandler serves the Prometheus registry the exporter writes to.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

type instruments struct {
	requests        metric.Int64Counter
	requestDuration metric.Float64Histogram
	blocks          metric.Int64Counter
	operations      metric.Int64Counter
}

var (
	instrumentsOnce sync.Once
	inst            instruments
)

// meters creates the instruments on first use, after Init has installed the
// meter provider.
func meters() *instruments {
	instrumentsOnce.Do(func() {
		m := otel.Meter(instrumentationName)
		logger := logging.WithComponent("telemetry")
		var err error
		if inst.requests, err = m.Int64Counter("golosmind.rpc.requests",
			metric.WithDescription("JSON-RPC requests by method and outcome")); err != nil {
			logger.Warn("counter unavailable", zap.Error(err))
		}
		if inst.requestDuration, err = m.Float64Histogram("golosmind.rpc.duration",
			metric.WithUnit("s"), metric.WithDescription("JSON-RPC request latency")); err != nil {
			logger.Warn("histogram unavailable", zap.Error(err))
		}
		if inst.blocks, err = m.Int64Counter("golosmind.indexer.blocks",
			metric.WithDescription("Blocks applied to the store")); err != nil {
			logger.Warn("counter unavailable", zap.Error(err))
		}
		if inst.operations, err = m.Int64Counter("golosmind.indexer.operations",
			metric.WithDescription("Operations applied by name")); err != nil {
			logger.Warn("counter unavailable", zap.Error(err))
		}
	})
	return &inst
}

// RecordRequest counts one JSON-RPC call.
func RecordRequest(ctx context.Context, method string, elapsed time.Duration, err error) {
	m := meters()
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.Bool("error", err != nil),
	)
	if m.requests != nil {
		m.requests.Add(ctx, 1, attrs)
	}
	if m.requestDuration != nil {
		m.requestDuration.Record(ctx, elapsed.Seconds(), attrs)
	}
}

// RecordBlock counts an applied block.
func RecordBlock(ctx context.Context) {
	if m := meters(); m.blocks != nil {
		m.blocks.Add(ctx, 1)
	}
}

// RecordOperation counts an applied operation.
func RecordOperation(ctx context.Context, name string) {
	if m := meters(); m.operations != nil {
		m.operations.Add(ctx, 1, metric.WithAttributes(attribute.String("op", name)))
	}
}
