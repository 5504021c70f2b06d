// Package observability provides distributed tracing for tool execution,
// built on OpenTelemetry.
//
// A Tracer wraps an OTLP exporter and trace provider. With no endpoint
// configured it returns a no-op tracer, so callers can always hold a
// *Tracer without branching on whether tracing is enabled.
//
//	tracer, shutdown := observability.NewTracer(observability.TraceConfig{
//	    ServiceName: "skill-engine",
//	    Endpoint:    os.Getenv("OTEL_ENDPOINT"),
//	})
//	defer shutdown(context.Background())
//
//	ctx, span := tracer.TraceToolExecution(ctx, toolName)
//	defer span.End()
//	if err != nil {
//	    tracer.RecordError(span, err)
//	}
//
// GetTraceID and GetSpanID read the active span's ids out of a context for
// correlation with other structured logs (see internal/audit).
package observability
