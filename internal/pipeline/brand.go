package pipeline

import (
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"

	"github.com/kalambet/adcraft/internal/extract"
)

// BrandName derives the brand the relevance filter protects from the first
// page: the registrable domain label of its host ("shop.acme.co.uk" gives
// "acme"), or the page title when the host has none.
func BrandName(pages []extract.BrandPage) string {
	if len(pages) == 0 {
		return ""
	}
	p := pages[0]
	if name := domainLabel(p.URL); name != "" {
		return name
	}
	return p.Title
}

func domainLabel(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := u.Hostname()
	if host == "" || net.ParseIP(host) != nil {
		return ""
	}
	etld1, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return ""
	}
	suffix, _ := publicsuffix.PublicSuffix(etld1)
	return strings.TrimSuffix(strings.TrimSuffix(etld1, suffix), ".")
}
