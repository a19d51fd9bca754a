package genai

import (
	"sync"

	"github.com/kalambet/adcraft/internal/extract"
)

// BrandContext accumulates brand pages for follow-up questions. It only
// grows and lives as long as the Client that owns it.
type BrandContext struct {
	mu    sync.RWMutex
	pages []extract.BrandPage
}

func (b *BrandContext) append(pages []extract.BrandPage) {
	b.mu.Lock()
	b.pages = append(b.pages, pages...)
	b.mu.Unlock()
}

func (b *BrandContext) has() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.pages) > 0
}

func (b *BrandContext) snapshot() []extract.BrandPage {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]extract.BrandPage, len(b.pages))
	copy(out, b.pages)
	return out
}

// UpdateContext appends pages to the stored brand context.
func (c *Client) UpdateContext(pages []extract.BrandPage) {
	c.brand.append(pages)
}

// HasContext reports whether at least one page has been stored.
func (c *Client) HasContext() bool {
	return c.brand.has()
}

// GetContext returns a copy of the stored pages in insertion order.
func (c *Client) GetContext() []extract.BrandPage {
	return c.brand.snapshot()
}
