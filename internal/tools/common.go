package tools

import (
	"encoding/json"
	"fmt"

	"finagent/internal/agent"
)

const maxOutputBytes = 10_000

func truncate(s string) string {
	if len(s) > maxOutputBytes {
		return agent.Clip(s, maxOutputBytes) + "\n... (truncated)"
	}
	return s
}

// toJSON renders a tool result for the model.
func toJSON(v any) (string, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding result: %w", err)
	}
	return truncate(string(b)), nil
}

func objectSchema(props map[string]any, required ...string) map[string]any {
	if required == nil {
		required = []string{}
	}
	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             required,
		"additionalProperties": false,
	}
}

func stringProp(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}
