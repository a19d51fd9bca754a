package llm

import (
	"strings"
	"testing"
)

func sampleRequest() GenerationRequest {
	return GenerationRequest{
		Model: "gpt-4o",
		Messages: []Message{
			TextMessage(RoleSystem, "You are an AI marketing assistant."),
			TextMessage(RoleUser, "Prompt: <summer sale> & more\n"),
		},
		Temperature: 0.7,
		MaxTokens:   1000,
	}
}

func TestFingerprint_Deterministic(t *testing.T) {
	a := Fingerprint(sampleRequest())
	b := Fingerprint(sampleRequest())
	if a != b {
		t.Errorf("fingerprints differ:\n%s\n%s", a, b)
	}
}

func TestFingerprint_SortedKeys(t *testing.T) {
	fp := Fingerprint(sampleRequest())

	order := []string{`"max_tokens"`, `"messages"`, `"model"`, `"temperature"`}
	last := -1
	for _, key := range order {
		i := strings.Index(fp, key)
		if i < 0 {
			t.Fatalf("fingerprint missing %s: %s", key, fp)
		}
		if i < last {
			t.Errorf("key %s out of order in %s", key, fp)
		}
		last = i
	}
	if !strings.Contains(fp, "<summer sale> & more") {
		t.Errorf("fingerprint escaped text literally: %s", fp)
	}
}

func TestFingerprint_SensitiveToEveryField(t *testing.T) {
	base := Fingerprint(sampleRequest())

	tests := []struct {
		name   string
		mutate func(*GenerationRequest)
	}{
		{"model", func(r *GenerationRequest) { r.Model = "gpt-4o-mini" }},
		{"temperature", func(r *GenerationRequest) { r.Temperature = 0.2 }},
		{"max tokens", func(r *GenerationRequest) { r.MaxTokens = 10 }},
		{"message text", func(r *GenerationRequest) { r.Messages[1].Content[0].Text = "other" }},
		{"message order", func(r *GenerationRequest) {
			r.Messages[0], r.Messages[1] = r.Messages[1], r.Messages[0]
		}},
		{"image part", func(r *GenerationRequest) {
			r.Messages[1].Content = append(r.Messages[1].Content, Part{Type: PartImageURL, ImageURL: &ImageURL{URL: "data:image/jpeg;base64,AA"}})
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := sampleRequest()
			tt.mutate(&req)
			if Fingerprint(req) == base {
				t.Errorf("changing %s did not change the fingerprint", tt.name)
			}
		})
	}
}

func TestMessageText(t *testing.T) {
	m := Message{Role: RoleUser, Content: []Part{
		{Type: PartText, Text: "tag "},
		{Type: PartImageURL, ImageURL: &ImageURL{URL: "http://x/y.png"}},
		{Type: PartText, Text: "this"},
	}}
	if got := m.Text(); got != "tag this" {
		t.Errorf("Text() = %q, want %q", got, "tag this")
	}
}
