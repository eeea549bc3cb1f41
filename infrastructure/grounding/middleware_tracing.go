package grounding

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracedModel implements distributed tracing for request observability.
type tracedModel struct {
	next   CoreModel
	tracer trace.Tracer
}

// TracingMiddleware creates middleware that wraps each request in an
// OpenTelemetry span, recording model, prompt size, token usage, and errors.
func TracingMiddleware(serviceName string) Middleware {
	tracer := otel.Tracer(serviceName)
	return func(next CoreModel) CoreModel {
		return &tracedModel{
			next:   next,
			tracer: tracer,
		}
	}
}

// DoRequest executes the request within a trace span.
func (t *tracedModel) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	ctx, span := t.tracer.Start(ctx, "grounding.request",
		trace.WithAttributes(
			attribute.String("grounding.model", t.next.GetModel()),
			attribute.Int("grounding.prompt.length", len(prompt)),
		),
	)
	defer span.End()

	response, tokensIn, tokensOut, err := t.next.DoRequest(ctx, prompt, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(
			attribute.Int("grounding.tokens.input", tokensIn),
			attribute.Int("grounding.tokens.output", tokensOut),
		)
	}

	return response, tokensIn, tokensOut, err
}

// GetModel returns the model name from the wrapped implementation.
func (t *tracedModel) GetModel() string { return t.next.GetModel() }

// SetModel updates the model name in the wrapped implementation.
func (t *tracedModel) SetModel(m string) { t.next.SetModel(m) }
