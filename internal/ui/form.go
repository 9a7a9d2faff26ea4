// Package ui serves the interactive query form.
package ui

import (
	"context"
	"errors"
	"html/template"
	"log/slog"
	"strings"

	"finagent/internal/agent"
	"finagent/internal/dispatch"
)

// State is where the form is in its submit cycle.
type State int

const (
	Idle State = iota
	Submitting
	Displaying
	ShowingError
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Submitting:
		return "submitting"
	case Displaying:
		return "displaying"
	case ShowingError:
		return "showing_error"
	default:
		return "unknown"
	}
}

// Dispatcher is what the form needs from dispatch.Dispatcher.
type Dispatcher interface {
	Agents() []dispatch.AgentInfo
	Dispatch(ctx context.Context, agentID, query string) (string, error)
}

// View is everything the page template renders.
type View struct {
	State    State
	Agents   []dispatch.AgentInfo
	Selected string
	Query    string
	Examples []string

	Content  string
	HTML     template.HTML
	Warning  string
	Error    string
	Rendered bool
}

type Form struct {
	dispatcher Dispatcher
	observe    func(State)
}

type FormOption func(*Form)

// WithObserver is called on every state transition.
func WithObserver(fn func(State)) FormOption {
	return func(f *Form) { f.observe = fn }
}

func NewForm(d Dispatcher, opts ...FormOption) *Form {
	f := &Form{dispatcher: d, observe: func(State) {}}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Idle returns the empty form for agentID. Switching agents only changes the
// example queries shown.
func (f *Form) Idle(agentID string) View {
	agentID = f.resolve(agentID)
	f.observe(Idle)
	return View{
		State:    Idle,
		Agents:   f.dispatcher.Agents(),
		Selected: agentID,
		Examples: Examples(agentID),
	}
}

// Submit runs one submission through the state machine.
func (f *Form) Submit(ctx context.Context, agentID, query string) View {
	v := f.Idle(agentID)
	v.Query = query

	if strings.TrimSpace(query) == "" {
		v.State = ShowingError
		v.Warning = "Please enter a query."
		f.observe(ShowingError)
		return v
	}

	v.State = Submitting
	f.observe(Submitting)

	content, err := f.dispatcher.Dispatch(ctx, v.Selected, query)
	if err != nil {
		v.State = ShowingError
		var ve *dispatch.ValidationError
		var de *dispatch.DispatchError
		switch {
		case errors.As(err, &ve):
			v.Warning = ve.Message
		case errors.As(err, &de):
			v.Error = de.UserMessage()
		default:
			v.Error = "An error occurred: " + err.Error()
		}
		f.observe(ShowingError)
		return v
	}

	v.State = Displaying
	v.Content = content
	html, err := renderMarkdown(content)
	if err != nil {
		slog.Warn("markdown render failed, showing plain text", "error", err)
		html = template.HTML("<pre>" + template.HTMLEscapeString(content) + "</pre>")
	}
	v.HTML = html
	v.Rendered = true
	f.observe(Displaying)
	return v
}

func (f *Form) resolve(agentID string) string {
	agents := f.dispatcher.Agents()
	for _, a := range agents {
		if a.ID == agentID {
			return agentID
		}
	}
	if len(agents) > 0 {
		return agents[0].ID
	}
	return agent.IDWebSearch
}
