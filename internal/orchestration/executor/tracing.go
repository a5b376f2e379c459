package executor

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/kittify/orchestrator/internal/orchestration/agents"
)

const tracerName = "github.com/kittify/orchestrator/internal/orchestration/executor"

// Tracer opens one span per agent invocation. This is a purely additive
// observability supplement (SPEC_FULL.md §3); the executor's behavior is
// identical whether or not a real tracer is wired in.
type Tracer interface {
	StartSpan(ctx context.Context, wpID, agentID string, role agents.Role) Span
}

// Span is the handle returned by StartSpan; SetAttribute is best-effort.
type Span interface {
	SetAttribute(key string, value int)
	End()
}

// OTelTracer wraps an OpenTelemetry tracer.
type OTelTracer struct {
	tracer trace.Tracer
}

// NewOTelTracer builds a Tracer backed by otel's global tracer provider.
// Call ConfigureOTLP first to point it at a collector; otherwise it uses
// whatever global provider is installed (a no-op one by default).
func NewOTelTracer() *OTelTracer {
	return &OTelTracer{tracer: otel.Tracer(tracerName)}
}

// ConfigureOTLP installs an OTLP/HTTP span exporter as the global trace
// provider, pointed at endpoint (e.g. "localhost:4318"). It returns a
// shutdown func the caller should defer.
func ConfigureOTLP(ctx context.Context, endpoint string) (func(context.Context) error, error) {
	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(endpoint), otlptracehttp.WithInsecure())
	if err != nil {
		return nil, err
	}
	provider := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(provider)
	return provider.Shutdown, nil
}

func (t *OTelTracer) StartSpan(ctx context.Context, wpID, agentID string, role agents.Role) Span {
	_, span := t.tracer.Start(ctx, "agent.invoke",
		trace.WithAttributes(
			attribute.String("wp_id", wpID),
			attribute.String("agent_id", agentID),
			attribute.String("role", string(role)),
		),
	)
	return &otelSpan{span: span}
}

type otelSpan struct {
	span trace.Span
}

func (s *otelSpan) SetAttribute(key string, value int) {
	s.span.SetAttributes(attribute.Int(key, value))
}

func (s *otelSpan) End() { s.span.End() }

// nopTracer is used when the caller passes a nil Tracer into New.
type nopTracer struct{}

func (nopTracer) StartSpan(context.Context, string, string, agents.Role) Span { return nopSpan{} }

type nopSpan struct{}

func (nopSpan) SetAttribute(string, int) {}
func (nopSpan) End()                     {}

func orNopTracer(t Tracer) Tracer {
	if t == nil {
		return nopTracer{}
	}
	return t
}
