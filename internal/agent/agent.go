package agent

import (
	"slices"
	"time"

	"finagent/internal/llm"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/responses"
)

type EventType string

const (
	EventToken      EventType = "token"
	EventToolCall   EventType = "tool_call"
	EventToolResult EventType = "tool_result"
	EventDone       EventType = "done"
	EventError      EventType = "error"
)

type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data"`
}

// Format selects how an agent is told to shape its answers.
type Format int

const (
	FormatPlain Format = iota
	FormatMarkdown
)

func (f Format) String() string {
	if f == FormatMarkdown {
		return "markdown"
	}
	return "text"
}

// Agent pairs the shared model binding with a role, ordered toolkits and
// ordered instructions. A non-empty team makes it a composite agent that can
// hand tasks to its members. Agents are immutable once built and safe for
// concurrent Run calls.
type Agent struct {
	id            string
	name          string
	role          string
	binding       *llm.Binding
	provider      llm.Provider
	toolkits      []Toolkit
	instructions  []string
	team          []*Agent
	format        Format
	showToolCalls bool

	registry     *Registry
	tools        []responses.ToolUnionParam
	systemPrompt string
}

type Option func(*Agent)

func WithToolkits(tks ...Toolkit) Option {
	return func(a *Agent) { a.toolkits = append(a.toolkits, tks...) }
}

func WithTeam(members ...*Agent) Option {
	return func(a *Agent) { a.team = append(a.team, members...) }
}

func WithFormat(f Format) Option {
	return func(a *Agent) { a.format = f }
}

func WithShowToolCalls(show bool) Option {
	return func(a *Agent) { a.showToolCalls = show }
}

// New builds an agent from a profile. The tool list handed to the model is
// fixed here, in toolkit order followed by team transfer tools.
func New(provider llm.Provider, binding *llm.Binding, p Profile, opts ...Option) *Agent {
	a := &Agent{
		id:           p.ID,
		name:         p.Name,
		role:         p.Role,
		binding:      binding,
		provider:     provider,
		instructions: slices.Clone(p.Instructions),
		registry:     NewRegistry(),
	}
	for _, opt := range opts {
		opt(a)
	}

	for _, tk := range a.toolkits {
		for _, t := range tk.Tools() {
			a.registry.Register(t)
		}
	}
	for _, m := range a.team {
		a.registry.Register(newTransferTool(m))
	}

	for _, t := range a.registry.All() {
		schema, _ := t.InputSchema().(map[string]any)
		a.tools = append(a.tools, responses.ToolUnionParam{
			OfFunction: &responses.FunctionToolParam{
				Name:        t.Name(),
				Description: openai.String(t.Description()),
				Parameters:  schema,
				Strict:      openai.Bool(true),
			},
		})
	}
	a.systemPrompt = buildSystemPrompt(a)

	return a
}

func (a *Agent) ID() string            { return a.id }
func (a *Agent) Name() string          { return a.name }
func (a *Agent) Role() string          { return a.role }
func (a *Agent) Binding() *llm.Binding { return a.binding }
func (a *Agent) Format() Format        { return a.format }
func (a *Agent) Instructions() []string {
	return slices.Clone(a.instructions)
}

func (a *Agent) Team() []*Agent {
	return slices.Clone(a.team)
}

// ToolNames lists the functions exposed to the model, in order.
func (a *Agent) ToolNames() []string {
	all := a.registry.All()
	names := make([]string, len(all))
	for i, t := range all {
		names[i] = t.Name()
	}
	return names
}

// SystemPrompt is the developer message sent ahead of every query.
func (a *Agent) SystemPrompt() string { return a.systemPrompt }

// ToolCall records one function invocation made during a run.
type ToolCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
	Result    string `json:"result,omitempty"`
	Error     string `json:"error,omitempty"`
}

type Metrics struct {
	InputTokens  int64         `json:"input_tokens"`
	OutputTokens int64         `json:"output_tokens"`
	ModelCalls   int           `json:"model_calls"`
	Duration     time.Duration `json:"duration"`
}

// RunResponse is what a run hands back to its caller.
type RunResponse struct {
	RunID       string     `json:"run_id"`
	SessionID   string     `json:"session_id,omitempty"`
	AgentID     string     `json:"agent_id"`
	AgentName   string     `json:"agent_name"`
	Content     string     `json:"content"`
	ContentType string     `json:"content_type"`
	Model       string     `json:"model"`
	ToolCalls   []ToolCall `json:"tool_calls,omitempty"`
	Metrics     Metrics    `json:"metrics"`
	CreatedAt   time.Time  `json:"created_at"`
}

func (r *RunResponse) GetContent() string {
	if r == nil {
		return ""
	}
	return r.Content
}
