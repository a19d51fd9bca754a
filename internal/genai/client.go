// Package genai builds generation requests for campaign text, brand answers,
// image tags and filter queries, and memoizes their results.
package genai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kalambet/adcraft/internal/extract"
	"github.com/kalambet/adcraft/internal/llm"
	"github.com/kalambet/adcraft/internal/metrics"
)

const (
	systemPrompt       = "You are an AI marketing assistant."
	defaultTemperature = 0.7
	defaultMaxTokens   = 1000
)

// Options configures a Client. Zero values take the defaults.
type Options struct {
	Model       string
	VisionModel string
	Temperature float64
	MaxTokens   int
	HTTPClient  *http.Client
	Metrics     *metrics.Metrics
}

// Client is the only component that talks to the completion service.
type Client struct {
	completer   llm.Completer
	model       string
	visionModel string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
	cache       *Cache
	brand       *BrandContext
}

// New creates a Client with an empty cache and brand context.
func New(completer llm.Completer, opts Options) *Client {
	c := &Client{
		completer:   completer,
		model:       opts.Model,
		visionModel: opts.VisionModel,
		temperature: opts.Temperature,
		maxTokens:   opts.MaxTokens,
		httpClient:  opts.HTTPClient,
		cache:       NewCache(opts.Metrics),
		brand:       &BrandContext{},
	}
	if c.visionModel == "" {
		c.visionModel = c.model
	}
	if c.temperature == 0 {
		c.temperature = defaultTemperature
	}
	if c.maxTokens == 0 {
		c.maxTokens = defaultMaxTokens
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return c
}

// Cache exposes the response cache.
func (c *Client) Cache() *Cache {
	return c.cache
}

// GenerateText asks the model to respond to prompt with the given brand
// pages as context. Questions, when present, are itemized after the prompt.
func (c *Client) GenerateText(ctx context.Context, prompt string, brands []extract.BrandPage, questions []string) (string, error) {
	req := c.request(c.model,
		llm.TextMessage(llm.RoleSystem, systemPrompt),
		llm.TextMessage(llm.RoleUser, BuildContext(brands, prompt, questions)),
	)
	out, err := c.complete(ctx, req)
	if err != nil {
		return "", fmt.Errorf("generating text: %w", err)
	}
	return out, nil
}

// Query sends a two-message exchange and returns the trimmed answer.
func (c *Client) Query(ctx context.Context, system, message string) (string, error) {
	req := c.request(c.model,
		llm.TextMessage(llm.RoleSystem, system),
		llm.TextMessage(llm.RoleUser, message),
	)
	out, err := c.complete(ctx, req)
	if err != nil {
		return "", fmt.Errorf("querying model: %w", err)
	}
	return strings.TrimSpace(out), nil
}

func (c *Client) request(model string, msgs ...llm.Message) llm.GenerationRequest {
	return llm.GenerationRequest{
		Model:       model,
		Messages:    msgs,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}
}

func (c *Client) complete(ctx context.Context, req llm.GenerationRequest) (string, error) {
	return c.cache.Do(ctx, llm.Fingerprint(req), func() (string, error) {
		return c.completer.Complete(ctx, req)
	})
}

// BuildContext renders brand pages, the prompt and optional questions into
// the user message sent with GenerateText.
func BuildContext(brands []extract.BrandPage, prompt string, questions []string) string {
	var sb strings.Builder
	for _, b := range brands {
		fmt.Fprintf(&sb, "Brand URL: %s\n", b.URL)
		fmt.Fprintf(&sb, "URL Text: %s\n", strings.Join(b.TextBlocks, " "))
		fmt.Fprintf(&sb, "URL Images: %s\n\n", strings.Join(b.ImageURLs, ", "))
	}
	fmt.Fprintf(&sb, "Prompt: %s\n", prompt)
	if len(questions) > 0 {
		sb.WriteString("Questions:\n")
		for _, q := range questions {
			fmt.Fprintf(&sb, "- %s\n", q)
		}
	}
	return sb.String()
}
