// Package observability provides structured logging, Prometheus metrics and
// OpenTelemetry tracing for the concierge bot.
//
// # Logging
//
// NewLogger builds a *slog.Logger whose handler redacts secrets (bot tokens,
// database passwords, bearer tokens) from messages and attribute values and
// copies request-scoped fields and the active trace id from the context onto
// every record:
//
//	logger := observability.NewLogger(observability.LogConfig{Level: "info", Format: "json"})
//	ctx = observability.AddUserID(ctx, 42)
//	logger.InfoContext(ctx, "event handled", "kind", "message")
//
// # Metrics
//
// NewMetrics registers collectors with the given registerer. Passing a fresh
// prometheus.NewRegistry keeps tests isolated from the default registry:
//
//	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
//	metrics.RecordEvent("callback", "handled")
//	stores := storage.NewSQLStores(db, metrics.ObserveQuery)
//
// NewAdapterCollector exports a chat adapter's own counters at scrape time:
//
//	registry.MustRegister(observability.NewAdapterCollector(adapter.Metrics))
//
// # Tracing
//
// NewTracer exports spans over OTLP/gRPC when an endpoint is configured and
// falls back to a no-op tracer otherwise:
//
//	tracer, shutdown := observability.NewTracer(observability.TraceConfig{
//	    ServiceName: "concierge",
//	    Endpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
//	})
//	defer shutdown(context.Background())
//
//	ctx, span := tracer.TraceEvent(ctx, "message", userID)
//	defer span.End()
package observability
