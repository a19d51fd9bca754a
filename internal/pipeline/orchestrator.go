// Package pipeline runs the campaign and brand question flows end to end.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kalambet/adcraft/internal/extract"
	"github.com/kalambet/adcraft/internal/filter"
	"github.com/kalambet/adcraft/internal/metrics"
	"github.com/kalambet/adcraft/internal/storage"
	"github.com/kalambet/adcraft/internal/tagger"
)

var (
	// ErrInappropriateContent is returned when generated text fails the policy filter.
	ErrInappropriateContent = errors.New("Inappropriate Content")
	// ErrIrrelevantContent is returned when generated text fails the relevance filter.
	ErrIrrelevantContent = errors.New("Irrelevant Content")
)

// PageExtractor turns brand URLs into pages, one per URL in input order.
type PageExtractor interface {
	ExtractAll(ctx context.Context, urls []string) []extract.BrandPage
}

// ImageTagger tags images, one set per URL in input order.
type ImageTagger interface {
	TagAll(ctx context.Context, urls []string) ([]tagger.ImageTagSet, error)
}

// Generator produces text and owns the accumulated brand context.
type Generator interface {
	GenerateText(ctx context.Context, prompt string, brands []extract.BrandPage, questions []string) (string, error)
	UpdateContext(pages []extract.BrandPage)
	HasContext() bool
	GetContext() []extract.BrandPage
}

// Assembler builds and persists campaigns.
type Assembler interface {
	BuildResponse(text string, tagged []tagger.ImageTagSet) (storage.Campaign, error)
	Answer(answer string) string
}

// Orchestrator wires extraction, tagging, generation, the filter gate and
// assembly. Both flows are linear and nothing is retried.
type Orchestrator struct {
	extractor PageExtractor
	tagger    ImageTagger
	generator Generator
	policy    filter.Filter
	relevance filter.Filter
	assembler Assembler
	metrics   *metrics.Metrics
}

// Deps lists the collaborators of an Orchestrator.
type Deps struct {
	Extractor PageExtractor
	Tagger    ImageTagger
	Generator Generator
	Policy    filter.Filter
	Relevance filter.Filter
	Assembler Assembler
	Metrics   *metrics.Metrics
}

func New(d Deps) *Orchestrator {
	return &Orchestrator{
		extractor: d.Extractor,
		tagger:    d.Tagger,
		generator: d.Generator,
		policy:    d.Policy,
		relevance: d.Relevance,
		assembler: d.Assembler,
		metrics:   d.Metrics,
	}
}

// ProcessRequest generates, gates and persists a campaign for prompt using
// brandURLs as context. Unreachable URLs contribute empty pages.
func (o *Orchestrator) ProcessRequest(ctx context.Context, prompt string, brandURLs []string) (storage.Campaign, error) {
	start := time.Now()

	pages := o.extractor.ExtractAll(ctx, brandURLs)

	tagged, err := o.tagger.TagAll(ctx, extract.AllImages(pages))
	if err != nil {
		return storage.Campaign{}, fmt.Errorf("tagging images: %w", err)
	}

	text, err := o.generator.GenerateText(ctx, prompt, pages, nil)
	if err != nil {
		return storage.Campaign{}, err
	}

	if err := o.gate(ctx, text, BrandName(pages)); err != nil {
		return storage.Campaign{}, err
	}

	c, err := o.assembler.BuildResponse(text, tagged)
	if err != nil {
		return storage.Campaign{}, err
	}

	slog.Debug("campaign pipeline complete",
		"campaign_id", c.ID,
		"pages", len(pages),
		"tagged_images", len(tagged),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return c, nil
}

// gate runs the policy filter, then the relevance filter.
func (o *Orchestrator) gate(ctx context.Context, text, brand string) error {
	steps := []struct {
		f      filter.Filter
		reject error
	}{
		{o.policy, ErrInappropriateContent},
		{o.relevance, ErrIrrelevantContent},
	}
	for _, s := range steps {
		ok, err := s.f.Apply(ctx, text, filter.Options{BrandName: brand})
		if err != nil {
			return err
		}
		if !ok {
			o.metrics.FilterRejected(s.f.Name())
			slog.Info("campaign rejected", "filter", s.f.Name(), "brand", brand)
			return s.reject
		}
	}
	return nil
}

// AnswerBrandQuestion answers question from brand context. With
// usePrevious and stored context, the stored pages are used and brandURLs
// is ignored; otherwise brandURLs are extracted and appended to the stored
// context. Answers are not filtered.
func (o *Orchestrator) AnswerBrandQuestion(ctx context.Context, question string, brandURLs []string, usePrevious bool) (string, error) {
	var pages []extract.BrandPage
	switch {
	case usePrevious && o.generator.HasContext():
		pages = o.generator.GetContext()
	case len(brandURLs) > 0:
		pages = o.extractor.ExtractAll(ctx, brandURLs)
		o.generator.UpdateContext(pages)
	}

	answer, err := o.generator.GenerateText(ctx, question, pages, []string{question})
	if err != nil {
		return "", err
	}
	return o.assembler.Answer(answer), nil
}
