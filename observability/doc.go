// Package observability wires Prometheus metrics and OpenTelemetry tracing
// into agent runs.
//
// Metrics are registered on a caller supplied prometheus.Registerer so that
// several agents (or tests) can use independent registries. A nil *Metrics
// is valid and records nothing.
//
//	reg := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(reg)
//	tracer, shutdown := observability.NewTracer(observability.TraceConfig{
//	    ServiceName: "agentcore",
//	    Endpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
//	})
//	defer shutdown(context.Background())
package observability
