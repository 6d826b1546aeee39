package otel

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-kratos/stepflow"
	"github.com/go-kratos/stepflow/graph"
)

const (
	traceScope = "stepflow"
)

var (
	nodeNameKey  = attribute.Key("stepflow.node.name")
	nodeIndexKey = attribute.Key("stepflow.node.index")
	runIDKey     = attribute.Key("stepflow.run.id")
)

// TraceOption defines options for the tracing middlewares.
type TraceOption func(*tracing)

// tracing holds configuration shared by the node and model tracing middlewares.
type tracing struct {
	system string // e.g., "openai", "anthropic", "gemini"
	tracer trace.Tracer
}

// WithSystem sets the AI system name for tracing, e.g., "openai", "anthropic", "gemini".
func WithSystem(system string) TraceOption {
	return func(t *tracing) {
		t.system = system
	}
}

// WithTracerProvider sets a custom TracerProvider for the tracing middleware.
func WithTracerProvider(tr trace.TracerProvider) TraceOption {
	return func(t *tracing) {
		t.tracer = tr.Tracer(traceScope)
	}
}

func newTracing(opts ...TraceOption) *tracing {
	t := &tracing{
		system: "_OTHER",
		tracer: otel.GetTracerProvider().Tracer(traceScope),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// NodeTracing returns a graph middleware that wraps every node execution in a span.
func NodeTracing(opts ...TraceOption) graph.Middleware {
	t := newTracing(opts...)
	return func(next graph.Handler) graph.Handler {
		return func(ctx context.Context, state graph.State) (graph.State, error) {
			name := "node"
			var attrs []attribute.KeyValue
			if nc, ok := graph.FromNodeContext(ctx); ok {
				name = nc.Name
				attrs = append(attrs,
					nodeNameKey.String(nc.Name),
					nodeIndexKey.Int(nc.Index),
					runIDKey.String(nc.RunID),
				)
			}
			ctx, span := t.tracer.Start(ctx, fmt.Sprintf("execute_node %s", name), trace.WithAttributes(attrs...))
			defer span.End()
			out, err := next(ctx, state)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return out, err
			}
			span.SetStatus(codes.Ok, codes.Ok.String())
			return out, nil
		}
	}
}

// ModelTracing returns a model middleware that adds OpenTelemetry GenAI spans
// to every chat invocation.
func ModelTracing(opts ...TraceOption) stepflow.Middleware {
	t := newTracing(opts...)
	return func(next stepflow.ModelInvoker) stepflow.ModelInvoker {
		return stepflow.Wrap(next, func(ctx context.Context, messages []*stepflow.Message, opts ...stepflow.ModelOption) (*stepflow.Message, error) {
			ctx, span := t.start(ctx, next.Name(), opts...)
			msg, err := next.Invoke(ctx, messages, opts...)
			t.end(span, msg, err)
			return msg, err
		})
	}
}

func (t *tracing) start(ctx context.Context, model string, opts ...stepflow.ModelOption) (context.Context, trace.Span) {
	ctx, span := t.tracer.Start(ctx, fmt.Sprintf("chat %s", model), trace.WithSpanKind(trace.SpanKindClient))
	mo := stepflow.NewModelOptions(opts...)
	span.SetAttributes(
		semconv.GenAIOperationNameChat,
		semconv.GenAISystemKey.String(t.system),
		semconv.GenAIRequestModel(model),
		semconv.GenAIRequestTemperature(mo.Temperature),
		semconv.GenAIRequestTopP(mo.TopP),
	)
	if mo.MaxOutputTokens > 0 {
		span.SetAttributes(semconv.GenAIRequestMaxTokens(int(mo.MaxOutputTokens)))
	}
	// the node that issued the call, when the invocation happens inside a run
	if nc, ok := graph.FromNodeContext(ctx); ok {
		span.SetAttributes(nodeNameKey.String(nc.Name), runIDKey.String(nc.RunID))
	}
	return ctx, span
}

func (t *tracing) end(span trace.Span, msg *stepflow.Message, err error) {
	defer span.End()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Ok, codes.Ok.String())
	if msg == nil {
		return
	}
	if msg.FinishReason != "" {
		span.SetAttributes(semconv.GenAIResponseFinishReasons(msg.FinishReason))
	}
	if msg.Usage.InputTokens > 0 {
		span.SetAttributes(semconv.GenAIUsageInputTokens(int(msg.Usage.InputTokens)))
	}
	if msg.Usage.OutputTokens > 0 {
		span.SetAttributes(semconv.GenAIUsageOutputTokens(int(msg.Usage.OutputTokens)))
	}
}
