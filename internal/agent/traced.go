package agent

import (
	"context"
	"log/slog"

	"finagent/internal/metrics"
	"finagent/internal/trace"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

type tracedTool struct {
	Tool
}

func withTrace(t Tool) Tool {
	return &tracedTool{Tool: t}
}

func (t *tracedTool) Execute(ctx context.Context, input string) (string, error) {
	ctx, span := trace.Tracer().Start(ctx, t.Name(),
		oteltrace.WithAttributes(
			attribute.String("gen_ai.operation.name", "execute_tool"),
			attribute.String("gen_ai.tool.name", t.Name()),
			attribute.String("gen_ai.tool.input", input),
			attribute.String("agent.run_id", RunIDFromContext(ctx)),
		),
	)
	defer span.End()

	slog.Debug("tool call", "tool", t.Name(), "run_id", RunIDFromContext(ctx), "input", input)

	result, err := t.Tool.Execute(ctx, input)
	metrics.ToolCalls.WithLabelValues(t.Name(), metrics.Status(err)).Inc()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return result, err
	}

	span.SetAttributes(attribute.Int("gen_ai.tool.output_length", len(result)))
	return result, nil
}
