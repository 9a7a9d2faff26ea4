package agent

import (
	"log/slog"
	"sync"

	"finagent/internal/llm"
)

// Set is the three agents the application serves.
type Set struct {
	WebSearch *Agent
	Financial *Agent
	Multi     *Agent
}

// All returns the agents in declaration order.
func (s *Set) All() []*Agent {
	return []*Agent{s.WebSearch, s.Financial, s.Multi}
}

// Leaves returns the agents without a team.
func (s *Set) Leaves() []*Agent {
	return []*Agent{s.WebSearch, s.Financial}
}

func (s *Set) Get(id string) (*Agent, bool) {
	for _, a := range s.All() {
		if a.id == id {
			return a, true
		}
	}
	return nil, false
}

// Factory builds the agent set once. Every agent shares the same provider
// and binding.
type Factory struct {
	provider llm.Provider
	binding  *llm.Binding
	web      Toolkit
	finance  Toolkit

	once sync.Once
	set  *Set
}

func NewFactory(provider llm.Provider, binding *llm.Binding, web, finance Toolkit) *Factory {
	return &Factory{
		provider: provider,
		binding:  binding,
		web:      web,
		finance:  finance,
	}
}

// Build returns the memoized set; repeated calls return the same pointers.
func (f *Factory) Build() *Set {
	f.once.Do(func() {
		common := []Option{WithFormat(FormatMarkdown), WithShowToolCalls(true)}

		web := New(f.provider, f.binding, WebSearchProfile,
			append(common, WithToolkits(f.web))...)
		fin := New(f.provider, f.binding, FinancialProfile,
			append(common, WithToolkits(f.finance))...)
		multi := New(f.provider, f.binding, MultiProfile,
			append(common, WithTeam(web, fin))...)

		f.set = &Set{WebSearch: web, Financial: fin, Multi: multi}
		slog.Info("agents built", "binding", f.binding, "agents", len(f.set.All()))
	})
	return f.set
}
