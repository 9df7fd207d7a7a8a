package app

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/searchktools/fast-dispatch/config"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/fx"
)

// NewTracerProvider creates the TracerProvider dispatch spans come from.
// FD_TRACE_EXPORTER selects "none" (noop) or "stdout". Shutdown is
// handled by the fx lifecycle.
func NewTracerProvider(lc fx.Lifecycle, cfg *config.Config) (trace.TracerProvider, error) {
	exporter, err := newExporter(cfg.TraceExporter)
	if err != nil {
		return nil, err
	}
	if exporter == nil {
		return noop.NewTracerProvider(), nil
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter)),
		sdktrace.WithResource(newResource(cfg)),
	)

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return tp.Shutdown(ctx)
		},
	})

	return tp, nil
}

// newExporter returns nil for the "none" exporter
func newExporter(exporterType string) (sdktrace.SpanExporter, error) {
	switch exporterType {
	case config.TraceExporterNone, "":
		return nil, nil
	case config.TraceExporterStdout:
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	default:
		return nil, errors.Newf("unsupported FD_TRACE_EXPORTER: %q (supported: none, stdout)", exporterType)
	}
}

func newResource(cfg *config.Config) *resource.Resource {
	return resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.DeploymentEnvironment(cfg.Env),
	)
}
