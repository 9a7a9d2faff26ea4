package playground

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"finagent/internal/agent"
	"finagent/internal/dispatch"
	"finagent/internal/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDispatcher struct {
	events  []agent.Event
	content string
	err     error

	sessionID string
	query     string
}

func (f *fakeDispatcher) Has(id string) bool {
	return id == agent.IDWebSearch || id == agent.IDFinancial
}

func (f *fakeDispatcher) DispatchStream(ctx context.Context, agentID, query string, emit func(agent.Event)) (string, error) {
	f.sessionID = agent.SessionIDFromContext(ctx)
	f.query = query
	if strings.TrimSpace(query) == "" {
		return "", &dispatch.ValidationError{Field: "query", Message: "Please enter a query."}
	}
	for _, ev := range f.events {
		emit(ev)
	}
	return f.content, f.err
}

var binding = &llm.Binding{Provider: "groq", ModelID: "llama-3.3-70b-versatile"}

func leafAgents() []*agent.Agent {
	opts := []agent.Option{agent.WithFormat(agent.FormatMarkdown)}
	return []*agent.Agent{
		agent.New(nil, binding, agent.WebSearchProfile, opts...),
		agent.New(nil, binding, agent.FinancialProfile, opts...),
	}
}

func newTestServer(t *testing.T, d *fakeDispatcher) (*Server, *httptest.Server) {
	s := NewServer(&Backend{Agents: leafAgents(), Dispatcher: d})
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func post(t *testing.T, url, body string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(b)
}

func TestStatus(t *testing.T) {
	_, ts := newTestServer(t, &fakeDispatcher{})

	resp, err := http.Get(ts.URL + "/v1/playground/status")
	require.NoError(t, err)
	defer resp.Body.Close()

	var got map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, map[string]string{"playground": "available"}, got)
}

func TestListAgentsOnlyLeaves(t *testing.T) {
	_, ts := newTestServer(t, &fakeDispatcher{})

	resp, err := http.Get(ts.URL + "/v1/playground/agents")
	require.NoError(t, err)
	defer resp.Body.Close()

	var got []agentDescriptor
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Len(t, got, 2)
	assert.Equal(t, agent.IDWebSearch, got[0].AgentID)
	assert.Equal(t, "Financial Agent", got[1].Name)
	assert.Equal(t, "llama-3.3-70b-versatile", got[1].Model)
	assert.Equal(t, []string{"Use tables to display the Data"}, got[1].Instructions)
	assert.True(t, got[0].Markdown)
}

func TestRunReturnsRunResponse(t *testing.T) {
	d := &fakeDispatcher{
		content: "AAPL is up 2%",
		events: []agent.Event{{Type: agent.EventDone, Data: &agent.RunResponse{
			RunID:   "run-1",
			AgentID: agent.IDFinancial,
			Content: "AAPL is up 2%",
		}}},
	}
	_, ts := newTestServer(t, d)

	resp, body := post(t, ts.URL+"/v1/playground/agents/financial/runs",
		`{"message":"Show me AAPL stock performance","session_id":"s-1"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "s-1", d.sessionID)

	var got agent.RunResponse
	require.NoError(t, json.Unmarshal([]byte(body), &got))
	assert.Equal(t, "AAPL is up 2%", got.Content)
	assert.Equal(t, "run-1", got.RunID)
}

func TestRunWithoutDoneEventReturnsContent(t *testing.T) {
	d := &fakeDispatcher{content: "plain"}
	_, ts := newTestServer(t, d)

	resp, body := post(t, ts.URL+"/v1/playground/agents/web-search/runs", `{"message":"news"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var got map[string]string
	require.NoError(t, json.Unmarshal([]byte(body), &got))
	assert.Equal(t, "plain", got["content"])
	assert.NotEmpty(t, got["session_id"])
	assert.Equal(t, got["session_id"], d.sessionID)
}

func TestRunErrors(t *testing.T) {
	d := &fakeDispatcher{err: &dispatch.DispatchError{Agent: "financial", Err: errors.New("rate limited")}}
	_, ts := newTestServer(t, d)

	resp, body := post(t, ts.URL+"/v1/playground/agents/multi/runs", `{"message":"x"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, body, "agent not found")

	resp, _ = post(t, ts.URL+"/v1/playground/agents/financial/runs", `{"message":`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = post(t, ts.URL+"/v1/playground/agents/financial/runs", `{"message":"  "}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body, "Please enter a query.")

	resp, body = post(t, ts.URL+"/v1/playground/agents/financial/runs", `{"message":"AAPL"}`)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, body, "An error occurred: rate limited")
}

func TestRunStream(t *testing.T) {
	d := &fakeDispatcher{
		content: "AAPL is up",
		events: []agent.Event{
			{Type: agent.EventToolCall, Data: map[string]string{"name": "get_current_stock_price", "arguments": `{"symbol":"AAPL"}`}},
			{Type: agent.EventToken, Data: "AAPL "},
			{Type: agent.EventToken, Data: "is up"},
			{Type: agent.EventDone, Data: &agent.RunResponse{Content: "AAPL is up"}},
		},
	}
	_, ts := newTestServer(t, d)

	resp, body := post(t, ts.URL+"/v1/playground/agents/financial/runs", `{"message":"AAPL","stream":true}`)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	assert.Contains(t, body, "event: tool_call\n")
	assert.Contains(t, body, `data: {"content":"AAPL "}`)
	assert.Contains(t, body, "event: done\n")
	assert.NotContains(t, body, "event: error")
	assert.Less(t, strings.Index(body, "event: tool_call"), strings.Index(body, "event: done"))
}

func TestRunStreamError(t *testing.T) {
	d := &fakeDispatcher{err: &dispatch.DispatchError{Agent: "web-search", Err: context.DeadlineExceeded}}
	_, ts := newTestServer(t, d)

	_, body := post(t, ts.URL+"/v1/playground/agents/web-search/runs", `{"message":"slow","stream":true}`)
	assert.Contains(t, body, "event: error\n")
	assert.Contains(t, body, "An error occurred: context deadline exceeded")
}

func TestCORSPreflight(t *testing.T) {
	_, ts := newTestServer(t, &fakeDispatcher{})

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/v1/playground/agents/financial/runs", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestSwapBackend(t *testing.T) {
	s, ts := newTestServer(t, &fakeDispatcher{})

	old := s.Swap(&Backend{Agents: leafAgents()[:1], Dispatcher: &fakeDispatcher{}})
	require.NotNil(t, old)
	assert.Len(t, old.Agents, 2)

	resp, err := http.Get(ts.URL + "/v1/playground/agents")
	require.NoError(t, err)
	defer resp.Body.Close()
	var got []agentDescriptor
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Len(t, got, 1)
}

func TestWatchCallsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("#\n"), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var reloads atomic.Int32
	done := make(chan struct{})
	go func() {
		defer close(done)
		Watch(ctx, path, 10*time.Millisecond, func(context.Context) error {
			reloads.Add(1)
			return errors.New("bad config")
		})
	}()

	// Give Watch time to take its first snapshot.
	time.Sleep(30 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("[model]\n"), 0o600))
	assert.Eventually(t, func() bool { return reloads.Load() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte("[model]\nid = \"other\"\n"), 0o600))
	assert.Eventually(t, func() bool { return reloads.Load() == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}
