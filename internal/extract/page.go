// Package extract fetches brand pages and reduces them to paragraph text
// and verified image URLs.
package extract

// BrandPage is the extracted content of one brand URL. It is never mutated
// after Extract returns it.
type BrandPage struct {
	URL        string   `json:"url"`
	Title      string   `json:"title,omitempty"`
	TextBlocks []string `json:"text"`
	ImageURLs  []string `json:"images"`
}

// Empty reports whether extraction produced no content.
func (p BrandPage) Empty() bool {
	return len(p.TextBlocks) == 0 && len(p.ImageURLs) == 0
}

// AllImages flattens the image URLs of pages in page order, keeping
// duplicates.
func AllImages(pages []BrandPage) []string {
	var out []string
	for _, p := range pages {
		out = append(out, p.ImageURLs...)
	}
	return out
}
