// Package campaign pairs generated text with tagged images and persists
// the result.
package campaign

import (
	"fmt"
	"log/slog"

	"github.com/kalambet/adcraft/internal/metrics"
	"github.com/kalambet/adcraft/internal/storage"
	"github.com/kalambet/adcraft/internal/tagger"
)

// Store persists assembled campaigns.
type Store interface {
	InsertCampaign(text string, images []storage.Image) (storage.Campaign, error)
}

type Assembler struct {
	store   Store
	metrics *metrics.Metrics
}

// New creates an Assembler. m may be nil.
func New(store Store, m *metrics.Metrics) *Assembler {
	return &Assembler{store: store, metrics: m}
}

// BuildResponse selects the images whose tags appear in text, persists the
// campaign and returns it with its new id and timestamp.
func (a *Assembler) BuildResponse(text string, tagged []tagger.ImageTagSet) (storage.Campaign, error) {
	images := Match(text, tagged)

	c, err := a.store.InsertCampaign(text, images)
	if err != nil {
		return storage.Campaign{}, fmt.Errorf("persisting campaign: %w", err)
	}
	a.metrics.CampaignCreated()
	slog.Info("campaign created", "campaign_id", c.ID, "images", len(c.Images))
	return c, nil
}

// Answer returns a brand answer unchanged. Answers are not persisted.
func (a *Assembler) Answer(answer string) string {
	return answer
}
