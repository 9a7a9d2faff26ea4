package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
	"github.com/openai/openai-go/v3/shared"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var errNoResponse = errors.New("stream ended without a completed response")

// OpenAIProvider talks to any OpenAI-compatible Responses endpoint (Groq
// exposes one under /openai/v1).
type OpenAIProvider struct {
	client  *openai.Client
	binding *Binding
}

func NewOpenAI(b *Binding) *OpenAIProvider {
	var opts []option.RequestOption
	if b.APIKey != "" {
		opts = append(opts, option.WithAPIKey(b.APIKey))
	}
	if b.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(b.BaseURL))
	}
	opts = append(opts, option.WithHTTPClient(&http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}))
	client := openai.NewClient(opts...)
	return &OpenAIProvider{client: &client, binding: b}
}

// Binding returns the shared binding this provider was built from.
func (o *OpenAIProvider) Binding() *Binding { return o.binding }

func (o *OpenAIProvider) ChatStream(ctx context.Context, input []responses.ResponseInputItemUnionParam, tools []responses.ToolUnionParam, onToken func(string)) (*responses.Response, error) {
	params := responses.ResponseNewParams{
		Model: shared.ResponsesModel(o.binding.ModelID),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: input,
		},
		Tools: tools,
	}

	stream := o.client.Responses.NewStreaming(ctx, params)
	defer stream.Close()

	var completed *responses.Response

	for stream.Next() {
		event := stream.Current()

		switch event.Type {
		case "response.output_text.delta":
			if event.Delta != "" && onToken != nil {
				onToken(event.Delta)
			}
		case "response.completed":
			completed = &event.Response
		case "response.failed":
			return nil, fmt.Errorf("response failed: %s", event.Response.Error.Message)
		}
	}

	if err := stream.Err(); err != nil {
		return nil, err
	}
	if completed == nil {
		return nil, errNoResponse
	}

	return completed, nil
}
