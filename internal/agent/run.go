package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"finagent/internal/llm"
	"finagent/internal/metrics"
	"finagent/internal/trace"

	"github.com/google/uuid"
	"github.com/openai/openai-go/v3/responses"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// maxTurns bounds the number of model calls in one run.
const maxTurns = 16

var ErrTooManyTurns = errors.New("agent exceeded the maximum number of model turns")

// Run answers one message. Tool calls requested by the model are executed
// and fed back until the model replies without calling any. emit may be nil.
func (a *Agent) Run(ctx context.Context, message string, emit func(Event)) (*RunResponse, error) {
	emit = serialize(emit)

	start := time.Now()
	runID := uuid.NewString()
	ctx = contextWithRunID(ctx, runID)

	ctx, span := trace.Tracer().Start(ctx, "agent.run",
		oteltrace.WithAttributes(
			attribute.String("agent.id", a.id),
			attribute.String("agent.run_id", runID),
			attribute.String("session.id", SessionIDFromContext(ctx)),
			attribute.String("user.message", Clip(message, 200)),
		),
	)
	defer span.End()

	input := []responses.ResponseInputItemUnionParam{
		responses.ResponseInputItemParamOfMessage(a.systemPrompt, "developer"),
		responses.ResponseInputItemParamOfMessage(message, "user"),
	}

	out := &RunResponse{
		RunID:       runID,
		SessionID:   SessionIDFromContext(ctx),
		AgentID:     a.id,
		AgentName:   a.name,
		ContentType: a.format.String(),
		Model:       a.binding.ModelID,
		CreatedAt:   start,
	}

	resp, err := a.loop(ctx, input, out, emit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		emit(Event{Type: EventError, Data: err.Error()})
		return nil, err
	}

	content := llm.OutputText(resp)
	if a.showToolCalls && len(out.ToolCalls) > 0 {
		content = formatToolCalls(out.ToolCalls) + content
	}
	out.Content = content
	if resp.Model != "" {
		out.Model = string(resp.Model)
	}
	out.Metrics.Duration = time.Since(start)

	slog.Debug("agent run finished",
		"agent", a.id,
		"run_id", runID,
		"model_calls", out.Metrics.ModelCalls,
		"tool_calls", len(out.ToolCalls),
	)

	emit(Event{Type: EventDone, Data: out})
	return out, nil
}

func (a *Agent) loop(ctx context.Context, input []responses.ResponseInputItemUnionParam, out *RunResponse, emit func(Event)) (*responses.Response, error) {
	for turn := 0; turn < maxTurns; turn++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		llmCtx, llmSpan := trace.Tracer().Start(ctx, "llm.turn",
			oteltrace.WithAttributes(attribute.Int("llm.turn", turn)),
		)
		resp, err := a.provider.ChatStream(llmCtx, input, a.tools, func(token string) {
			emit(Event{Type: EventToken, Data: token})
		})
		if err != nil {
			llmSpan.RecordError(err)
			llmSpan.SetStatus(codes.Error, err.Error())
			llmSpan.End()
			return nil, err
		}

		llmSpan.SetAttributes(
			attribute.String("llm.model", string(resp.Model)),
			attribute.Int64("llm.input_tokens", resp.Usage.InputTokens),
			attribute.Int64("llm.output_tokens", resp.Usage.OutputTokens),
		)
		llmSpan.End()

		out.Metrics.ModelCalls++
		out.Metrics.InputTokens += resp.Usage.InputTokens
		out.Metrics.OutputTokens += resp.Usage.OutputTokens
		metrics.ModelTokens.WithLabelValues(a.binding.ModelID, "input").Add(float64(resp.Usage.InputTokens))
		metrics.ModelTokens.WithLabelValues(a.binding.ModelID, "output").Add(float64(resp.Usage.OutputTokens))

		input = append(input, outputToInput(resp.Output)...)

		var calls []responses.ResponseFunctionToolCall
		for _, item := range resp.Output {
			if item.Type == "function_call" {
				calls = append(calls, item.AsFunctionCall())
			}
		}
		if len(calls) == 0 {
			return resp, nil
		}

		results, records := a.act(ctx, calls, emit)
		out.ToolCalls = append(out.ToolCalls, records...)
		input = append(input, results...)
	}
	return nil, ErrTooManyTurns
}

// act executes tool calls in parallel. Tool failures are not fatal: the
// error text goes back to the model as the call's output.
func (a *Agent) act(ctx context.Context, calls []responses.ResponseFunctionToolCall, emit func(Event)) ([]responses.ResponseInputItemUnionParam, []ToolCall) {
	for _, fc := range calls {
		emit(Event{Type: EventToolCall, Data: map[string]string{
			"name":      fc.Name,
			"arguments": fc.Arguments,
		}})
	}

	var wg sync.WaitGroup
	results := make([]responses.ResponseInputItemUnionParam, len(calls))
	records := make([]ToolCall, len(calls))

	for i, fc := range calls {
		wg.Add(1)
		go func(i int, fc responses.ResponseFunctionToolCall) {
			defer wg.Done()

			rec := ToolCall{Name: fc.Name, Arguments: fc.Arguments}
			output := a.execute(ctx, fc, &rec)
			records[i] = rec
			results[i] = responses.ResponseInputItemParamOfFunctionCallOutput(fc.CallID, output)
			emit(Event{Type: EventToolResult, Data: map[string]string{
				"name":    fc.Name,
				"content": output,
			}})
		}(i, fc)
	}

	wg.Wait()
	return results, records
}

func (a *Agent) execute(ctx context.Context, fc responses.ResponseFunctionToolCall, rec *ToolCall) (output string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("tool panicked", "name", fc.Name, "panic", r)
			rec.Error = fmt.Sprint(r)
			output = "error: tool failed"
		}
	}()

	tool, ok := a.registry.Get(fc.Name)
	if !ok {
		slog.Warn("unknown tool call", "agent", a.id, "name", fc.Name)
		rec.Error = "unknown tool"
		return "error: unknown tool"
	}

	result, err := withTrace(tool).Execute(ctx, fc.Arguments)
	if err != nil {
		slog.Warn("tool execution failed", "agent", a.id, "name", fc.Name, "error", err)
		rec.Error = err.Error()
		return "error: " + err.Error()
	}
	rec.Result = result
	return result
}

// serialize makes emit safe to call from concurrent tool goroutines.
func serialize(emit func(Event)) func(Event) {
	if emit == nil {
		return func(Event) {}
	}
	var mu sync.Mutex
	return func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		emit(ev)
	}
}

// outputToInput converts model output items into input items for the next
// turn. Only the item kinds this agent produces are carried over.
func outputToInput(output []responses.ResponseOutputItemUnion) []responses.ResponseInputItemUnionParam {
	var items []responses.ResponseInputItemUnionParam
	for _, item := range output {
		switch item.Type {
		case "message":
			v := item.AsMessage().ToParam()
			items = append(items, responses.ResponseInputItemUnionParam{OfOutputMessage: &v})
		case "function_call":
			v := item.AsFunctionCall().ToParam()
			items = append(items, responses.ResponseInputItemUnionParam{OfFunctionCall: &v})
		case "reasoning":
			v := item.AsReasoning().ToParam()
			items = append(items, responses.ResponseInputItemUnionParam{OfReasoning: &v})
		default:
			slog.Debug("skipping output item", "type", item.Type)
		}
	}
	return items
}

// formatToolCalls renders the calls made during a run the way they are
// shown ahead of the answer.
func formatToolCalls(calls []ToolCall) string {
	var b strings.Builder
	b.WriteString("Running:\n")
	for _, c := range calls {
		fmt.Fprintf(&b, " - %s(%s)\n", c.Name, formatArgs(c.Arguments))
	}
	b.WriteString("\n")
	return b.String()
}

func formatArgs(raw string) string {
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return raw
	}
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, args[k])
	}
	return strings.Join(parts, ", ")
}
