package llm

import (
	"log/slog"

	"finagent/internal/config"
)

// Binding identifies the hosted chat model every agent talks to. Exactly one
// is built per process and shared by reference.
type Binding struct {
	Provider string
	ModelID  string
	BaseURL  string
	APIKey   string
}

func NewBinding(cfg config.ModelConfig, creds *config.Credentials) *Binding {
	return &Binding{
		Provider: cfg.Provider,
		ModelID:  cfg.ID,
		BaseURL:  cfg.BaseURL,
		APIKey:   creds.ModelKey,
	}
}

// LogValue keeps the key out of logs.
func (b *Binding) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("provider", b.Provider),
		slog.String("model", b.ModelID),
		slog.String("base_url", b.BaseURL),
	)
}
