// Package dispatch routes a query to one agent and turns its answer into
// display text.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"finagent/internal/agent"
	"finagent/internal/metrics"
	"finagent/internal/trace"
	"finagent/internal/tracking"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// Runner is one dispatchable agent. Run may return any response shape
// FromValue understands.
type Runner interface {
	ID() string
	Name() string
	Run(ctx context.Context, query string, emit func(agent.Event)) (any, error)
}

type agentRunner struct {
	a *agent.Agent
}

func (r agentRunner) ID() string   { return r.a.ID() }
func (r agentRunner) Name() string { return r.a.Name() }

func (r agentRunner) Run(ctx context.Context, query string, emit func(agent.Event)) (any, error) {
	resp, err := r.a.Run(ctx, query, emit)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Runners adapts agents for the dispatcher, keeping their order.
func Runners(agents ...*agent.Agent) []Runner {
	out := make([]Runner, len(agents))
	for i, a := range agents {
		out[i] = agentRunner{a: a}
	}
	return out
}

type AgentInfo struct {
	ID   string `json:"agent_id"`
	Name string `json:"name"`
}

type Dispatcher struct {
	runners []Runner
	byID    map[string]Runner
	timeout time.Duration
	tracker tracking.Tracker
}

func New(runners []Runner, timeout time.Duration, tracker tracking.Tracker) *Dispatcher {
	if tracker == nil {
		tracker = tracking.Noop{}
	}
	d := &Dispatcher{
		runners: runners,
		byID:    make(map[string]Runner, len(runners)),
		timeout: timeout,
		tracker: tracker,
	}
	for _, r := range runners {
		d.byID[r.ID()] = r
	}
	return d
}

// Agents lists the reachable agents in the order they were given.
func (d *Dispatcher) Agents() []AgentInfo {
	out := make([]AgentInfo, len(d.runners))
	for i, r := range d.runners {
		out[i] = AgentInfo{ID: r.ID(), Name: r.Name()}
	}
	return out
}

func (d *Dispatcher) Has(agentID string) bool {
	_, ok := d.byID[agentID]
	return ok
}

func (d *Dispatcher) Dispatch(ctx context.Context, agentID, query string) (string, error) {
	return d.DispatchStream(ctx, agentID, query, nil)
}

// DispatchStream runs query on the agent and returns the normalized answer.
// Events are forwarded to emit until DispatchStream returns; emit may be nil.
func (d *Dispatcher) DispatchStream(ctx context.Context, agentID, query string, emit func(agent.Event)) (string, error) {
	runner, ok := d.byID[agentID]
	label := agentID
	if !ok {
		label = "unknown"
	}
	query = strings.TrimSpace(query)
	if query == "" {
		metrics.DispatchTotal.WithLabelValues(label, "invalid").Inc()
		return "", &ValidationError{Field: "query", Message: "Please enter a query."}
	}
	if !ok {
		metrics.DispatchTotal.WithLabelValues(label, "invalid").Inc()
		return "", &ValidationError{Field: "agent", Message: fmt.Sprintf("unknown agent %q", agentID)}
	}

	start := time.Now()
	ctx, span := trace.Tracer().Start(ctx, "dispatch",
		oteltrace.WithAttributes(
			attribute.String("agent.id", agentID),
			attribute.Int("query.length", len(query)),
		),
	)
	defer span.End()

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	g := newGate(emit)
	defer g.close()

	text, err := d.run(ctx, runner, query, g.emit)

	metrics.DispatchDuration.WithLabelValues(agentID).Observe(time.Since(start).Seconds())
	metrics.DispatchTotal.WithLabelValues(agentID, metrics.Status(err)).Inc()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Error("dispatch failed", "agent", agentID, "error", err)
		d.tracker.CaptureError(ctx, err, map[string]string{"agent": agentID})
		return "", err
	}

	slog.Info("dispatch finished", "agent", agentID, "duration", time.Since(start), "chars", len(text))
	return text, nil
}

type outcome struct {
	text string
	err  error
}

// run calls the agent on its own goroutine so the deadline holds even when
// the agent ignores ctx. The answer is normalized on that goroutine too, so a
// malformed response is recovered like a panicking agent.
func (d *Dispatcher) run(ctx context.Context, r Runner, query string, emit func(agent.Event)) (string, error) {
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				slog.Error("agent panicked", "agent", r.ID(), "panic", p)
				done <- outcome{err: fmt.Errorf("agent panicked: %v", p)}
			}
		}()
		v, err := r.Run(ctx, query, emit)
		if err != nil {
			done <- outcome{err: err}
			return
		}
		done <- outcome{text: Normalize(FromValue(v))}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			return "", &DispatchError{Agent: r.ID(), Err: out.err}
		}
		return out.text, nil
	case <-ctx.Done():
		err := ctx.Err()
		if d.timeout > 0 && errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("no answer within %s: %w", d.timeout, err)
		}
		return "", &DispatchError{Agent: r.ID(), Err: err}
	}
}

// gate forwards events until closed, so a late agent cannot write to a
// response that has already finished.
type gate struct {
	mu     sync.Mutex
	next   func(agent.Event)
	closed bool
}

func newGate(next func(agent.Event)) *gate {
	return &gate{next: next}
}

func (g *gate) emit(ev agent.Event) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed || g.next == nil {
		return
	}
	g.next(ev)
}

func (g *gate) close() {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()
}
