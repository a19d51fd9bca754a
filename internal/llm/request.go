// Package llm models chat completion requests and the capability that
// answers them.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
)

// ErrUpstream marks failures reported by the completion service.
var ErrUpstream = errors.New("completion service error")

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"

	PartText     = "text"
	PartImageURL = "image_url"
)

// GenerationRequest is one chat completion call. Two requests with equal
// fields produce the same Fingerprint.
type GenerationRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

type Message struct {
	Role    string `json:"role"`
	Content []Part `json:"content"`
}

// Part is a text fragment or an image reference inside a message.
type Part struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

type ImageURL struct {
	URL string `json:"url"`
}

// TextMessage builds a single-part text message.
func TextMessage(role, text string) Message {
	return Message{Role: role, Content: []Part{{Type: PartText, Text: text}}}
}

// Text concatenates the text parts of m.
func (m Message) Text() string {
	var buf bytes.Buffer
	for _, p := range m.Content {
		if p.Type == PartText {
			buf.WriteString(p.Text)
		}
	}
	return buf.String()
}

// Fingerprint returns the canonical serialization of req: a JSON object with
// its top-level keys sorted. Message order is part of the fingerprint.
func Fingerprint(req GenerationRequest) string {
	fields := map[string]any{
		"model":       req.Model,
		"messages":    req.Messages,
		"temperature": req.Temperature,
		"max_tokens":  req.MaxTokens,
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// Every field is a plain value; encoding cannot fail.
	_ = enc.Encode(fields)
	return string(bytes.TrimRight(buf.Bytes(), "\n"))
}

// Completer answers a generation request with the first choice's text.
type Completer interface {
	Complete(ctx context.Context, req GenerationRequest) (string, error)
}
