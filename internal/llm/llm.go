package llm

import (
	"context"

	"github.com/openai/openai-go/v3/responses"
)

// Provider streams one model turn. onToken receives text deltas as they
// arrive; the completed response carries any function calls.
type Provider interface {
	ChatStream(ctx context.Context, input []responses.ResponseInputItemUnionParam, tools []responses.ToolUnionParam, onToken func(string)) (*responses.Response, error)
}

// OutputText concatenates the assistant text of a response.
func OutputText(resp *responses.Response) string {
	if resp == nil {
		return ""
	}
	var text string
	for _, item := range resp.Output {
		if item.Type != "message" {
			continue
		}
		for _, c := range item.AsMessage().Content {
			if c.Type == "output_text" {
				text += c.AsOutputText().Text
			}
		}
	}
	return text
}
