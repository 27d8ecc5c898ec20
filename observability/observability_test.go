package observability

import (
	"context"
	"fmt"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/kbukum/serverkit/container"
)

func TestConfigApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.Endpoint != "localhost:4318" {
		t.Errorf("expected Endpoint 'localhost:4318', got %s", cfg.Endpoint)
	}
	if cfg.SampleRate != 1.0 {
		t.Errorf("expected SampleRate 1.0, got %f", cfg.SampleRate)
	}
	if cfg.MetricInterval != 15*time.Second {
		t.Errorf("expected MetricInterval 15s, got %v", cfg.MetricInterval)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"disabled without endpoint", Config{SampleRate: 1}, false},
		{"enabled with endpoint", Config{Enabled: true, Endpoint: "otel:4318", SampleRate: 0.5}, false},
		{"enabled without endpoint", Config{Enabled: true, SampleRate: 1}, true},
		{"negative sample rate", Config{SampleRate: -0.1}, true},
		{"sample rate above one", Config{SampleRate: 1.5}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestConfigDerivedProviders(t *testing.T) {
	cfg := Config{Endpoint: "otel:4318", Insecure: true, SampleRate: 0.25, MetricInterval: time.Minute}

	tc := cfg.TracerConfig("srv", "1.2.3", "staging")
	if tc.ServiceName != "srv" || tc.ServiceVersion != "1.2.3" || tc.Environment != "staging" {
		t.Errorf("unexpected tracer identity: %+v", tc)
	}
	if tc.Endpoint != "otel:4318" || !tc.Insecure || tc.SampleRate != 0.25 {
		t.Errorf("unexpected tracer settings: %+v", tc)
	}

	mc := cfg.MeterConfig("srv", "1.2.3", "staging")
	if mc.Interval != time.Minute || mc.Endpoint != "otel:4318" {
		t.Errorf("unexpected meter settings: %+v", mc)
	}
}

func TestInitDisabledIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{}, "srv", "1.0.0", "test")
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown failed: %v", err)
	}
}

func TestInitEnabled(t *testing.T) {
	prevTP, prevMP := otel.GetTracerProvider(), otel.GetMeterProvider()
	defer func() {
		otel.SetTracerProvider(prevTP)
		otel.SetMeterProvider(prevMP)
	}()

	cfg := Config{Enabled: true, Insecure: true}
	cfg.ApplyDefaults()

	shutdown, err := Init(context.Background(), cfg, "srv", "1.0.0", "test")
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	// No collector is listening; only the shutdown path is exercised.
	_ = shutdown(ctx)
}

func TestSamplerFor(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{1.0, "AlwaysOnSampler"},
		{0.0, "AlwaysOffSampler"},
		{0.5, "TraceIDRatioBased{0.5}"},
	}
	for _, tc := range tests {
		if got := samplerFor(tc.rate).Description(); got != tc.want {
			t.Errorf("samplerFor(%v) = %s, want %s", tc.rate, got, tc.want)
		}
	}
}

func TestStartSpanRecordsError(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer tp.Shutdown(context.Background())
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(prev)

	ctx, span := StartSpan(context.Background(), SpanBootstrap)
	SetSpanAttribute(ctx, AttrBootID, "boot-1")
	SetSpanAttribute(ctx, AttrServiceCount, 3)
	SetSpanAttribute(ctx, "unsupported", struct{}{})
	SetSpanError(ctx, fmt.Errorf("boom"))
	span.End()

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Name != SpanBootstrap {
		t.Errorf("span name = %s", spans[0].Name)
	}
	if len(spans[0].Events) != 1 {
		t.Errorf("expected the error to be recorded as an event, got %d events", len(spans[0].Events))
	}
	if len(spans[0].Attributes) != 2 {
		t.Errorf("expected 2 attributes, got %d", len(spans[0].Attributes))
	}
}

func TestSpanHelpersWithoutSpan(t *testing.T) {
	ctx := context.Background()
	if SpanFromContext(ctx) == nil {
		t.Fatal("expected non-nil span (noop)")
	}
	SetSpanAttribute(ctx, "key", "value")
	SetSpanError(ctx, fmt.Errorf("no span error"))
}

func TestBootMetricsNoop(t *testing.T) {
	metrics, err := NewBootMetrics(noop.NewMeterProvider().Meter("test"))
	if err != nil {
		t.Fatalf("unexpected error creating metrics: %v", err)
	}
	ctx := context.Background()
	metrics.Listener()(container.Transition{Service: "a", From: container.StateStarting, To: container.StateUp})
	metrics.RecordActivation(ctx, "extension", nil)
	metrics.RecordBoot(ctx, "startup", time.Second, fmt.Errorf("failed"))
}

func TestBootMetricsListenerCountsTransitions(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer mp.Shutdown(context.Background())

	metrics, err := NewBootMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewBootMetrics failed: %v", err)
	}

	listen := metrics.Listener()
	listen(container.Transition{Service: "a", From: container.StateDown, To: container.StateStarting})
	listen(container.Transition{Service: "a", From: container.StateStarting, To: container.StateUp})
	listen(container.Transition{Service: "b", From: container.StateStarting, To: container.StateFailed})

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	totals := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				totals[m.Name] += dp.Value
			}
		}
	}
	if totals["server.service.transitions"] != 3 {
		t.Errorf("transitions = %d, want 3", totals["server.service.transitions"])
	}
	if totals["server.service.failures"] != 1 {
		t.Errorf("failures = %d, want 1", totals["server.service.failures"])
	}
}

func TestFromContainer(t *testing.T) {
	tests := []struct {
		name    string
		results []container.Health
		want    HealthStatus
	}{
		{"empty", nil, HealthStatusUp},
		{"all healthy", []container.Health{{Name: "a", Status: container.StatusHealthy}}, HealthStatusUp},
		{"starting", []container.Health{{Name: "a", Status: container.StatusHealthy}, {Name: "b", Status: container.StatusDegraded}}, HealthStatusDegraded},
		{"failed wins", []container.Health{{Name: "a", Status: container.StatusUnhealthy}, {Name: "b", Status: container.StatusDegraded}}, HealthStatusDown},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sh := FromContainer("srv", "1.0.0", tc.results)
			if sh.Status != tc.want {
				t.Errorf("status = %s, want %s", sh.Status, tc.want)
			}
			if len(sh.Components) != len(tc.results) {
				t.Errorf("components = %d, want %d", len(sh.Components), len(tc.results))
			}
		})
	}
}
