package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/serverkit/container"
	"github.com/kbukum/serverkit/logger"
)

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	// ServiceName is the name of the server.
	ServiceName string
	// ServiceVersion is the version of the server.
	ServiceVersion string
	// Environment is the deployment environment.
	Environment string
	// Endpoint is the OTLP HTTP endpoint host:port (e.g., "localhost:4318").
	Endpoint string
	// Insecure allows insecure connections (for development).
	Insecure bool
	// Interval is the metric export interval.
	Interval time.Duration
}

// InitMeter initializes the OpenTelemetry meter provider and installs it
// globally. The provider should be shut down on exit.
func InitMeter(ctx context.Context, config MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(config.Endpoint),
	}
	if config.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(config.ServiceName, config.ServiceVersion, config.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	readerOpts := []sdkmetric.PeriodicReaderOption{}
	if config.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(config.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(mp)

	logger.Info("meter initialized", logger.Fields(
		"service", config.ServiceName,
		"endpoint", config.Endpoint,
		"interval", config.Interval.String(),
	))

	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// BootMetrics holds the instruments recorded while a server boots.
type BootMetrics struct {
	transitions  metric.Int64Counter
	failures     metric.Int64Counter
	bootDuration metric.Float64Histogram
	activations  metric.Int64Counter
}

// NewBootMetrics creates boot instruments on the given meter.
func NewBootMetrics(meter metric.Meter) (*BootMetrics, error) {
	transitions, err := meter.Int64Counter("server.service.transitions",
		metric.WithDescription("Service state transitions by target state"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating server.service.transitions counter: %w", err)
	}

	failures, err := meter.Int64Counter("server.service.failures",
		metric.WithDescription("Services that failed to start"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating server.service.failures counter: %w", err)
	}

	bootDuration, err := meter.Float64Histogram("server.boot.duration",
		metric.WithDescription("Time from boot start to a stable container"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating server.boot.duration histogram: %w", err)
	}

	activations, err := meter.Int64Counter("server.activations",
		metric.WithDescription("Startup actions run, by kind and outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating server.activations counter: %w", err)
	}

	return &BootMetrics{
		transitions:  transitions,
		failures:     failures,
		bootDuration: bootDuration,
		activations:  activations,
	}, nil
}

// Listener returns a container listener that records every transition.
func (m *BootMetrics) Listener() container.Listener {
	return func(t container.Transition) {
		ctx := context.Background()
		m.transitions.Add(ctx, 1, metric.WithAttributes(
			attribute.String("to", string(t.To)),
		))
		if t.To == container.StateFailed {
			m.failures.Add(ctx, 1, metric.WithAttributes(
				attribute.String("service", t.Service),
			))
		}
	}
}

// RecordActivation records a startup action and whether it succeeded.
func (m *BootMetrics) RecordActivation(ctx context.Context, kind string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.activations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("status", status),
	))
}

// RecordBoot records how long a boot took and how it ended.
func (m *BootMetrics) RecordBoot(ctx context.Context, phase string, d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.bootDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("phase", phase),
		attribute.String("status", status),
	))
}
