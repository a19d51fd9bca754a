// Package tagger pairs image URLs with model-generated tags.
package tagger

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/kalambet/adcraft/internal/genai"
)

// DefaultMaxTags is used when a caller passes a non-positive limit.
const DefaultMaxTags = 10

// ImageTagSet is an image URL and the tags generated for it.
type ImageTagSet struct {
	ImageURL string   `json:"image_url"`
	Tags     []string `json:"tags"`
}

// TagGenerator produces tags for one image.
type TagGenerator interface {
	GenerateImageTags(ctx context.Context, imageURL string, maxTags int) ([]string, error)
}

type Tagger struct {
	gen     TagGenerator
	maxTags int
}

// New creates a Tagger. maxTags <= 0 selects DefaultMaxTags.
func New(gen TagGenerator, maxTags int) *Tagger {
	if maxTags <= 0 {
		maxTags = DefaultMaxTags
	}
	return &Tagger{gen: gen, maxTags: maxTags}
}

// Tag returns the tag set for imageURL. An image that cannot be downloaded
// is logged and comes back with no tags; model failures are returned.
func (t *Tagger) Tag(ctx context.Context, imageURL string, maxTags int) (ImageTagSet, error) {
	if maxTags <= 0 {
		maxTags = t.maxTags
	}
	tags, err := t.gen.GenerateImageTags(ctx, imageURL, maxTags)
	if errors.Is(err, genai.ErrImageFetch) {
		slog.Warn("image fetch failed", "url", imageURL, "error", err)
		return ImageTagSet{ImageURL: imageURL, Tags: []string{}}, nil
	}
	if err != nil {
		return ImageTagSet{}, err
	}
	if tags == nil {
		tags = []string{}
	}
	return ImageTagSet{ImageURL: imageURL, Tags: tags}, nil
}

// TagAll tags urls concurrently and returns the sets in input order. The
// first model failure cancels the rest.
func (t *Tagger) TagAll(ctx context.Context, urls []string) ([]ImageTagSet, error) {
	sets := make([]ImageTagSet, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, u := range urls {
		g.Go(func() error {
			set, err := t.Tag(gctx, u, t.maxTags)
			if err != nil {
				return err
			}
			sets[i] = set
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return sets, nil
}
