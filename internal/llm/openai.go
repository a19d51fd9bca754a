package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const defaultTimeout = 120 * time.Second

// OpenAIClient implements Completer against any OpenAI-compatible
// chat completions endpoint. Requests are sent once; the SDK's retries
// are disabled.
type OpenAIClient struct {
	client openai.Client
}

// NewOpenAIClient creates a client for baseURL authenticated with apiKey.
func NewOpenAIClient(apiKey, baseURL string) *OpenAIClient {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
		option.WithHTTPClient(&http.Client{Timeout: defaultTimeout}),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(baseURL, "/")+"/"))
	}
	return &OpenAIClient{client: openai.NewClient(opts...)}
}

// Complete sends req and returns the content of the first choice.
func (c *OpenAIClient) Complete(ctx context.Context, req GenerationRequest) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(req.Model),
		Messages:    toParams(req.Messages),
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty choices", ErrUpstream)
	}
	return resp.Choices[0].Message.Content, nil
}

func toParams(msgs []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(m.Text()))
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Text()))
		default:
			if !hasImage(m) {
				out = append(out, openai.UserMessage(m.Text()))
				continue
			}
			parts := make([]openai.ChatCompletionContentPartUnionParam, 0, len(m.Content))
			for _, p := range m.Content {
				if p.Type == PartImageURL && p.ImageURL != nil {
					parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
						URL: p.ImageURL.URL,
					}))
					continue
				}
				parts = append(parts, openai.TextContentPart(p.Text))
			}
			out = append(out, openai.UserMessage(parts))
		}
	}
	return out
}

func hasImage(m Message) bool {
	for _, p := range m.Content {
		if p.Type == PartImageURL {
			return true
		}
	}
	return false
}
