package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"finagent/internal/agent"
	"finagent/internal/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	id, name string
	calls    atomic.Int32
	run      func(ctx context.Context, query string, emit func(agent.Event)) (any, error)
}

func (f *fakeRunner) ID() string   { return f.id }
func (f *fakeRunner) Name() string { return f.name }

func (f *fakeRunner) Run(ctx context.Context, query string, emit func(agent.Event)) (any, error) {
	f.calls.Add(1)
	return f.run(ctx, query, emit)
}

func returning(v any, err error) func(context.Context, string, func(agent.Event)) (any, error) {
	return func(context.Context, string, func(agent.Event)) (any, error) { return v, err }
}

type recordingTracker struct {
	mu   sync.Mutex
	errs []error
	tags []map[string]string
}

func (r *recordingTracker) CaptureError(ctx context.Context, err error, tags map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
	r.tags = append(r.tags, tags)
}

func (r *recordingTracker) Flush(time.Duration) {}

func threeRunners(v any) []*fakeRunner {
	return []*fakeRunner{
		{id: agent.IDWebSearch, name: "Web Search Agent", run: returning(v, nil)},
		{id: agent.IDFinancial, name: "Financial Agent", run: returning(v, nil)},
		{id: agent.IDMulti, name: "Multi Agent", run: returning(v, nil)},
	}
}

func newDispatcher(runners []*fakeRunner, tracker *recordingTracker) *Dispatcher {
	rs := make([]Runner, len(runners))
	for i, r := range runners {
		rs[i] = r
	}
	if tracker == nil {
		return New(rs, time.Second, nil)
	}
	return New(rs, time.Second, tracker)
}

func TestFromValueShapes(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  string
	}{
		{name: "content accessor", value: &agent.RunResponse{Content: "AAPL is up 2%"}, want: "AAPL is up 2%"},
		{name: "mapping with content", value: map[string]any{"content": "AAPL is up 2%", "model": "x"}, want: "AAPL is up 2%"},
		{name: "string mapping", value: map[string]string{"content": "hi"}, want: "hi"},
		{name: "mapping without content", value: map[string]any{"price": 204}, want: `{"price":204}`},
		{name: "null content", value: map[string]any{"content": nil}, want: ""},
		{name: "plain string", value: "AAPL is up 2%", want: "AAPL is up 2%"},
		{name: "content field", value: struct{ Content string }{Content: "AAPL is up 2%"}, want: "AAPL is up 2%"},
		{name: "content field pointer", value: &struct {
			Content string
			Model   string
		}{Content: "AAPL is up 2%", Model: "x"}, want: "AAPL is up 2%"},
		{name: "non-string content field", value: struct{ Content int }{Content: 7}, want: "{7}"},
		{name: "other value", value: 42, want: "42"},
		{name: "nil", value: nil, want: ""},
		{name: "already a result", value: TextResult("done"), want: "done"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(FromValue(tt.value)))
		})
	}
}

func TestFromValueAccessorBeatsMapping(t *testing.T) {
	resp := &agent.RunResponse{Content: "from accessor"}
	_, isText := FromValue(resp).(TextResult)
	assert.True(t, isText)

	_, isStructured := FromValue(map[string]any{"content": "x"}).(StructuredResult)
	assert.True(t, isStructured)
}

func TestDispatchEveryAgent(t *testing.T) {
	for _, shape := range []any{
		&agent.RunResponse{Content: "answer"},
		map[string]any{"content": "answer"},
		"answer",
		struct{ A int }{A: 1},
	} {
		d := newDispatcher(threeRunners(shape), nil)
		for _, info := range d.Agents() {
			out, err := d.Dispatch(context.Background(), info.ID, "What is new in AI?")
			require.NoError(t, err, info.ID)
			assert.NotEmpty(t, out, info.ID)
		}
	}
}

func TestDispatchFinancialScenario(t *testing.T) {
	runners := threeRunners(nil)
	runners[1].run = func(ctx context.Context, query string, emit func(agent.Event)) (any, error) {
		assert.Equal(t, "Show me AAPL stock performance", query)
		return map[string]any{"content": "AAPL is up 2%"}, nil
	}
	d := newDispatcher(runners, nil)

	out, err := d.Dispatch(context.Background(), agent.IDFinancial, "  Show me AAPL stock performance\n")
	require.NoError(t, err)
	assert.Equal(t, "AAPL is up 2%", out)
}

func TestDispatchRejectsEmptyQuery(t *testing.T) {
	runners := threeRunners("unused")
	d := newDispatcher(runners, nil)

	for _, q := range []string{"", "   ", "\n\t"} {
		_, err := d.Dispatch(context.Background(), agent.IDMulti, q)
		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "query", ve.Field)
		assert.Equal(t, "Please enter a query.", ve.Message)
	}
	for _, r := range runners {
		assert.Zero(t, r.calls.Load())
	}
}

func TestDispatchRejectsUnknownAgent(t *testing.T) {
	d := newDispatcher(threeRunners("x"), nil)

	_, err := d.Dispatch(context.Background(), "stock-bot", "hello")
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "agent", ve.Field)
	assert.False(t, d.Has("stock-bot"))
	assert.True(t, d.Has(agent.IDMulti))
}

func TestDispatchErrorThenRecovery(t *testing.T) {
	netErr := errors.New("dial tcp: connection refused")
	runners := threeRunners("ok")
	var fail atomic.Bool
	fail.Store(true)
	runners[0].run = func(context.Context, string, func(agent.Event)) (any, error) {
		if fail.Swap(false) {
			return nil, netErr
		}
		return "latest AI news", nil
	}
	tracker := &recordingTracker{}
	d := newDispatcher(runners, tracker)

	_, err := d.Dispatch(context.Background(), agent.IDWebSearch, "AI news")
	var de *DispatchError
	require.ErrorAs(t, err, &de)
	assert.ErrorIs(t, err, netErr)
	assert.Equal(t, agent.IDWebSearch, de.Agent)
	assert.Equal(t, "An error occurred: dial tcp: connection refused", de.UserMessage())

	require.Len(t, tracker.errs, 1)
	assert.Equal(t, agent.IDWebSearch, tracker.tags[0]["agent"])

	out, err := d.Dispatch(context.Background(), agent.IDWebSearch, "AI news")
	require.NoError(t, err)
	assert.Equal(t, "latest AI news", out)
}

func TestDispatchRecoversPanic(t *testing.T) {
	runners := threeRunners("ok")
	runners[2].run = func(context.Context, string, func(agent.Event)) (any, error) {
		panic("nil map write")
	}
	d := newDispatcher(runners, nil)

	_, err := d.Dispatch(context.Background(), agent.IDMulti, "anything")
	var de *DispatchError
	require.ErrorAs(t, err, &de)
	assert.Contains(t, de.UserMessage(), "nil map write")

	out, err := d.Dispatch(context.Background(), agent.IDFinancial, "anything")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
}

type brokenResponse struct {
	inner *struct{ text string }
}

func (b *brokenResponse) GetContent() string { return b.inner.text }

func TestDispatchRecoversMalformedResponse(t *testing.T) {
	tracker := &recordingTracker{}
	runners := threeRunners("ok")
	runners[1].run = returning(&brokenResponse{}, nil)
	d := newDispatcher(runners, tracker)

	var out string
	var err error
	require.NotPanics(t, func() {
		out, err = d.Dispatch(context.Background(), agent.IDFinancial, "AAPL")
	})
	assert.Empty(t, out)
	var de *DispatchError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, agent.IDFinancial, de.Agent)
	assert.Contains(t, de.UserMessage(), "agent panicked")
	require.Len(t, tracker.errs, 1)

	out, err = d.Dispatch(context.Background(), agent.IDWebSearch, "anything")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
}

func TestDispatchLabelsUnknownAgentOnEmptyQuery(t *testing.T) {
	d := newDispatcher(threeRunners("ok"), nil)
	bogus := "agent-" + t.Name()

	// Seed the bounded label so only a leaked id can add a series.
	metrics.DispatchTotal.WithLabelValues("unknown", "invalid")
	before := testutil.CollectAndCount(metrics.DispatchTotal)

	_, err := d.Dispatch(context.Background(), bogus, "  ")
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "query", ve.Field)

	assert.Equal(t, before, testutil.CollectAndCount(metrics.DispatchTotal))
}

func TestDispatchTimeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	runners := threeRunners("ok")
	runners[0].run = func(ctx context.Context, q string, emit func(agent.Event)) (any, error) {
		<-release
		return "too late", nil
	}
	rs := []Runner{runners[0]}
	d := New(rs, 20*time.Millisecond, nil)

	_, err := d.Dispatch(context.Background(), agent.IDWebSearch, "slow")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorContains(t, err, "no answer within 20ms")
}

func TestDispatchStreamForwardsEvents(t *testing.T) {
	runners := threeRunners(nil)
	runners[1].run = func(ctx context.Context, q string, emit func(agent.Event)) (any, error) {
		emit(agent.Event{Type: agent.EventToken, Data: "AAPL "})
		emit(agent.Event{Type: agent.EventToken, Data: "is up"})
		return &agent.RunResponse{Content: "AAPL is up"}, nil
	}
	d := newDispatcher(runners, nil)

	var tokens []string
	out, err := d.DispatchStream(context.Background(), agent.IDFinancial, "AAPL?", func(ev agent.Event) {
		tokens = append(tokens, ev.Data.(string))
	})
	require.NoError(t, err)
	assert.Equal(t, "AAPL is up", out)
	assert.Equal(t, []string{"AAPL ", "is up"}, tokens)
}

func TestGateDropsLateEvents(t *testing.T) {
	var got int
	g := newGate(func(agent.Event) { got++ })
	g.emit(agent.Event{})
	g.close()
	g.emit(agent.Event{})
	assert.Equal(t, 1, got)

	newGate(nil).emit(agent.Event{})
}

func TestAgentsOrder(t *testing.T) {
	d := newDispatcher(threeRunners("x"), nil)
	assert.Equal(t, []AgentInfo{
		{ID: "web-search", Name: "Web Search Agent"},
		{ID: "financial", Name: "Financial Agent"},
		{ID: "multi", Name: "Multi Agent"},
	}, d.Agents())
}
