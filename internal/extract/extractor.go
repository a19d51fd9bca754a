package extract

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"
)

const (
	userAgent       = "Mozilla/5.0 (compatible; adcraft/1.0)"
	maxPageBytes    = 10 << 20
	imageCheckLimit = 8
)

// Extractor fetches brand URLs. It never retries and never returns an
// error: a page that cannot be fetched or parsed comes back empty.
type Extractor struct {
	httpClient *http.Client
}

// New creates an Extractor whose requests time out after timeout.
func New(timeout time.Duration) *Extractor {
	return NewWithClient(&http.Client{Timeout: timeout})
}

// NewWithClient creates an Extractor using c for all requests.
func NewWithClient(c *http.Client) *Extractor {
	return &Extractor{httpClient: c}
}

// Extract fetches rawURL and returns its paragraphs and the subset of its
// <img> sources that answer a HEAD request with an image content type.
func (e *Extractor) Extract(ctx context.Context, rawURL string) BrandPage {
	page := BrandPage{URL: rawURL}

	base, err := url.Parse(rawURL)
	if err != nil || (base.Scheme != "http" && base.Scheme != "https") {
		slog.Warn("skipping brand url", "url", rawURL, "reason", "not an http(s) url")
		return page
	}

	resp, err := e.get(ctx, rawURL)
	if err != nil {
		slog.Warn("page extraction failed", "url", rawURL, "error", err)
		return page
	}
	defer resp.Body.Close()

	body := io.LimitReader(resp.Body, maxPageBytes)

	if isPDF(resp, base) {
		blocks, err := pdfTextBlocks(body)
		if err != nil {
			slog.Warn("pdf extraction failed", "url", rawURL, "error", err)
			return page
		}
		page.TextBlocks = blocks
		return page
	}

	doc, err := html.Parse(body)
	if err != nil {
		slog.Warn("html parse failed", "url", rawURL, "error", err)
		return page
	}

	page.Title = extractTitle(doc)
	page.TextBlocks = extractParagraphs(doc)
	page.ImageURLs = e.verifiedImages(ctx, extractImageSources(doc, base))
	return page
}

// ExtractAll extracts urls concurrently and returns pages in input order.
func (e *Extractor) ExtractAll(ctx context.Context, urls []string) []BrandPage {
	pages := make([]BrandPage, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, u := range urls {
		g.Go(func() error {
			pages[i] = e.Extract(gctx, u)
			return nil
		})
	}
	_ = g.Wait()
	return pages
}

func (e *Extractor) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching page: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return resp, nil
}

// verifiedImages keeps the candidates whose HEAD response declares an
// image/* content type, preserving order and duplicates.
func (e *Extractor) verifiedImages(ctx context.Context, candidates []string) []string {
	ok := make([]bool, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(imageCheckLimit)
	for i, c := range candidates {
		g.Go(func() error {
			ok[i] = e.isImage(gctx, c)
			return nil
		})
	}
	_ = g.Wait()

	images := []string{}
	for i, c := range candidates {
		if ok[i] {
			images = append(images, c)
		}
	}
	return images
}

func (e *Extractor) isImage(ctx context.Context, imageURL string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, imageURL, nil)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", userAgent)

	// http.Client follows redirects for HEAD.
	resp, err := e.httpClient.Do(req)
	if err != nil {
		slog.Debug("image check failed", "url", imageURL, "error", err)
		return false
	}
	resp.Body.Close()
	return strings.HasPrefix(resp.Header.Get("Content-Type"), "image/")
}

func isPDF(resp *http.Response, u *url.URL) bool {
	if mt, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type")); err == nil && mt == "application/pdf" {
		return true
	}
	return strings.HasSuffix(strings.ToLower(u.Path), ".pdf")
}

// extractTitle prefers og:title over <title>.
func extractTitle(doc *html.Node) string {
	var og, title string
	walk(doc, func(n *html.Node) bool {
		switch n.Data {
		case "meta":
			if og == "" && strings.EqualFold(attr(n, "property"), "og:title") {
				og = strings.TrimSpace(attr(n, "content"))
			}
		case "title":
			if title == "" {
				title = strings.TrimSpace(nodeText(n))
			}
		}
		return true
	})
	if og != "" {
		return og
	}
	return title
}

// extractParagraphs returns the text of every <p> in document order.
func extractParagraphs(doc *html.Node) []string {
	blocks := []string{}
	walk(doc, func(n *html.Node) bool {
		if n.Data != "p" {
			return true
		}
		if text := strings.TrimSpace(nodeText(n)); text != "" {
			blocks = append(blocks, text)
		}
		return false
	})
	return blocks
}

// extractImageSources returns every non-empty <img src>, resolved against base.
func extractImageSources(doc *html.Node, base *url.URL) []string {
	var srcs []string
	walk(doc, func(n *html.Node) bool {
		if n.Data != "img" {
			return true
		}
		src := strings.TrimSpace(attr(n, "src"))
		if src == "" {
			return true
		}
		ref, err := url.Parse(src)
		if err != nil {
			return true
		}
		resolved := base.ResolveReference(ref)
		if resolved.Scheme == "http" || resolved.Scheme == "https" {
			srcs = append(srcs, resolved.String())
		}
		return true
	})
	return srcs
}

// walk visits element nodes depth-first. fn returns false to skip children.
func walk(n *html.Node, fn func(*html.Node) bool) {
	if n.Type == html.ElementNode {
		if n.Data == "script" || n.Data == "style" {
			return
		}
		if !fn(n) {
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var f func(*html.Node)
	f = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			f(c)
		}
	}
	f(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
