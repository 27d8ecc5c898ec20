// Package observability wires OpenTelemetry tracing and metrics for a
// server boot.
//
// InitTracer and InitMeter install global OTLP/HTTP providers. Boot work is
// traced with StartSpan; BootMetrics counts service state transitions and
// records how long a boot took to reach stability:
//
//	metrics, _ := observability.NewBootMetrics(observability.Meter("serverkit"))
//	c := container.New(container.WithListener(metrics.Listener()))
//
// With no provider installed the global no-op providers are used, so every
// call is safe without a collector.
package observability
