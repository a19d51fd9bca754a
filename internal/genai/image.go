package genai

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"net/http"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/kalambet/adcraft/internal/llm"
)

const maxImageBytes = 20 << 20

// ErrImageFetch is returned when an image cannot be downloaded.
var ErrImageFetch = errors.New("image fetch failed")

// GenerateImageTags downloads imageURL, re-encodes it as an inline JPEG and
// asks the vision model for at most maxTags tags, in the order the model
// lists them. An image that cannot be decoded yields no tags and no error.
func (c *Client) GenerateImageTags(ctx context.Context, imageURL string, maxTags int) ([]string, error) {
	raw, err := c.fetchImage(ctx, imageURL)
	if err != nil {
		return nil, err
	}

	dataURL, err := jpegDataURL(raw)
	if err != nil {
		slog.Warn("could not decode image", "url", imageURL, "error", err)
		return []string{}, nil
	}

	req := c.request(c.visionModel,
		llm.TextMessage(llm.RoleSystem, systemPrompt),
		llm.Message{
			Role: llm.RoleUser,
			Content: []llm.Part{
				{Type: llm.PartText, Text: fmt.Sprintf("What are the top %d most relevant tags for this image? Return only the tags as a comma-separated list", maxTags)},
				{Type: llm.PartImageURL, ImageURL: &llm.ImageURL{URL: dataURL}},
			},
		},
	)
	out, err := c.complete(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("tagging image: %w", err)
	}
	return ParseTags(out, maxTags), nil
}

// ParseTags splits a comma-separated model answer into at most maxTags
// trimmed, non-empty tags.
func ParseTags(answer string, maxTags int) []string {
	tags := []string{}
	if maxTags <= 0 {
		return tags
	}
	for _, t := range strings.Split(strings.TrimSpace(answer), ",") {
		if len(tags) == maxTags {
			break
		}
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

func (c *Client) fetchImage(ctx context.Context, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrImageFetch, err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrImageFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d", ErrImageFetch, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrImageFetch, err)
	}
	if len(data) > maxImageBytes {
		return nil, fmt.Errorf("%w: image exceeds %d bytes", ErrImageFetch, maxImageBytes)
	}
	return data, nil
}

// jpegDataURL decodes raw in any registered format and returns it as a
// base64 JPEG data URL.
func jpegDataURL(raw []byte) (string, error) {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("decoding image: %w", err)
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 75}); err != nil {
		return "", fmt.Errorf("encoding jpeg: %w", err)
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
