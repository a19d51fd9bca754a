// Package filter gates generated text through model-judged content checks.
package filter

import (
	"context"
	"fmt"
	"strings"
)

// Options carries per-call inputs some filters need.
type Options struct {
	BrandName string
}

// Filter judges a text. Apply returns true when the text passes.
type Filter interface {
	Name() string
	Apply(ctx context.Context, text string, opts Options) (bool, error)
}

// Querier is the model exchange a filter relies on.
type Querier interface {
	Query(ctx context.Context, system, message string) (string, error)
}

// Passes interprets a model answer: it passes when the lower-cased answer
// contains "no" anywhere. The match is a plain substring test, so "not",
// "know" and "none" all pass.
func Passes(answer string) bool {
	return strings.Contains(strings.ToLower(strings.TrimSpace(answer)), "no")
}

var prohibitedCategories = []string{"profanity", "vulgarity", "racist", "hateful"}

// PolicyFilter rejects text the model flags for a prohibited category.
type PolicyFilter struct {
	q Querier
}

func NewPolicyFilter(q Querier) *PolicyFilter {
	return &PolicyFilter{q: q}
}

func (f *PolicyFilter) Name() string { return "policy" }

func (f *PolicyFilter) Apply(ctx context.Context, text string, _ Options) (bool, error) {
	answer, err := f.q.Query(ctx, "You are an expert in identifying intent and words in a text.", policyMessage(text))
	if err != nil {
		return false, fmt.Errorf("policy filter: %w", err)
	}
	return Passes(answer), nil
}

func policyMessage(text string) string {
	quoted := make([]string, len(prohibitedCategories))
	for i, c := range prohibitedCategories {
		quoted[i] = "'" + c + "'"
	}
	return fmt.Sprintf(`Given the following text:
'%s'

Identify any mentions of the following prohibited categories [%s] in the text.
If you are unsure whether a mentioned category is a present, err on the side of including it.
Return yes if the text contains words from of the prohibited categories and no otherwise.`,
		text, strings.Join(quoted, ", "))
}

// RelevanceFilter rejects text the model says mentions a rival of the brand.
type RelevanceFilter struct {
	q Querier
}

func NewRelevanceFilter(q Querier) *RelevanceFilter {
	return &RelevanceFilter{q: q}
}

func (f *RelevanceFilter) Name() string { return "relevance" }

func (f *RelevanceFilter) Apply(ctx context.Context, text string, opts Options) (bool, error) {
	answer, err := f.q.Query(ctx, "You are an expert in identifying brands and their rivals.", relevanceMessage(opts.BrandName, text))
	if err != nil {
		return false, fmt.Errorf("relevance filter: %w", err)
	}
	return Passes(answer), nil
}

func relevanceMessage(brand, text string) string {
	return fmt.Sprintf(`Given the following brand: '%s' and a piece of text:

'%s'

Identify any mentions of rival brands in the text.
If you are unsure whether a mentioned brand is a rival, err on the side of including it.
Return yes if it contains a rival brand and no otherwise`, brand, text)
}
