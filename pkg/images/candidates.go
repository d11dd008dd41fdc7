package images

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/dtnitsch/vincenzo/models"
	"github.com/dtnitsch/vincenzo/pkg/extractor"
)

const edgeImageClass = "EdgeImage_image__"

// Candidates lists preview image URLs found on page, in the order they should
// be tried: gallery images first, then other images on an allowed host, then
// og:image, then readability's lead image. Page order is kept within each group.
// An empty hosts list allows every host.
func Candidates(page *models.Page, hosts []string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		return nil
	}

	base, _ := url.Parse(page.BaseURL())
	c := &candidateList{base: base, seen: map[string]struct{}{}}

	imgs := doc.Find("img")
	imgs.Each(func(i int, s *goquery.Selection) {
		if !strings.Contains(s.AttrOr("class", ""), edgeImageClass) {
			return
		}
		c.add(imageSource(s), hosts)
	})
	imgs.Each(func(i int, s *goquery.Selection) {
		c.add(imageSource(s), hosts)
	})

	c.add(doc.Find(`meta[property="og:image"]`).AttrOr("content", ""), nil)

	if len(c.urls) == 0 {
		c.add(extractor.LeadImage(page), nil)
	}
	return c.urls
}

type candidateList struct {
	base *url.URL
	seen map[string]struct{}
	urls []string
}

func (c *candidateList) add(raw string, hosts []string) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "data:") {
		return
	}
	u, err := url.Parse(raw)
	if err != nil {
		return
	}
	if c.base != nil {
		u = c.base.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return
	}
	if !hostAllowed(u.Hostname(), hosts) {
		return
	}
	abs := u.String()
	if _, ok := c.seen[abs]; ok {
		return
	}
	c.seen[abs] = struct{}{}
	c.urls = append(c.urls, abs)
}

// imageSource prefers src and falls back to lazy-loading attributes.
func imageSource(s *goquery.Selection) string {
	for _, attr := range []string{"src", "data-src"} {
		if v := strings.TrimSpace(s.AttrOr(attr, "")); v != "" && !strings.HasPrefix(v, "data:") {
			return v
		}
	}
	return ""
}

func hostAllowed(host string, hosts []string) bool {
	if len(hosts) == 0 {
		return true
	}
	host = strings.ToLower(host)
	for _, h := range hosts {
		h = strings.ToLower(strings.TrimSpace(h))
		if h == "" {
			continue
		}
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}
