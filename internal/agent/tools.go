package agent

import (
	"context"
	"log/slog"
	"unicode/utf8"
)

type Tool interface {
	Name() string
	Description() string
	InputSchema() any
	Execute(ctx context.Context, input string) (string, error)
}

// Toolkit is a named capability that contributes one or more functions to an
// agent. Its functions come back in a stable order.
type Toolkit interface {
	Name() string
	Tools() []Tool
}

// Registry keeps tools in registration order; the order ends up in the
// model's tool list.
type Registry struct {
	order []Tool
	tools map[string]Tool
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

func (r *Registry) Register(t Tool) {
	if _, dup := r.tools[t.Name()]; dup {
		slog.Warn("duplicate tool ignored", "name", t.Name())
		return
	}
	r.tools[t.Name()] = t
	r.order = append(r.order, t)
}

func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

func (r *Registry) All() []Tool {
	out := make([]Tool, len(r.order))
	copy(out, r.order)
	return out
}

// Clip cuts s to at most n bytes, backing off to the start of a rune so the
// result stays valid UTF-8.
func Clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
