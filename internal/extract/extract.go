// Package extract pulls page title, visible body text, and outbound
// links from fetched HTML using goquery (spec.md §4.5, §6). Grounded on
// the teacher's internal/fetcher/extractor.go ContentExtractor, which
// uses the same library and article/body extraction shape; link
// discovery is added, since the teacher indexes to Elasticsearch rather
// than following outbound links itself.
package extract

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// nonContentSelectors lists elements stripped before extracting body text.
const nonContentSelectors = "script, style, nav, header, footer"

// Result is what Extract pulls from one HTML document.
type Result struct {
	Title string
	Body  string
	Links []string // absolute, not yet canonicalized
}

// Extract parses html (resolved against baseURL for relative links) and
// returns its title, body text, and outbound link targets.
func Extract(baseURL string, html []byte) (Result, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return Result{}, fmt.Errorf("extract: parse html: %w", err)
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return Result{}, fmt.Errorf("extract: parse base url: %w", err)
	}

	return Result{
		Title: extractTitle(doc),
		Body:  extractBodyText(doc),
		Links: extractLinks(doc, base),
	}, nil
}

func extractTitle(doc *goquery.Document) string {
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return title
	}
	if ogTitle, exists := doc.Find("meta[property='og:title']").Attr("content"); exists {
		return strings.TrimSpace(ogTitle)
	}
	return ""
}

// extractBodyText prefers <article> content; falls back to <body> with
// non-content elements stripped.
func extractBodyText(doc *goquery.Document) string {
	article := doc.Find("article").First()
	if article.Length() > 0 {
		article.Find(nonContentSelectors).Remove()
		return strings.TrimSpace(article.Text())
	}

	body := doc.Find("body").First()
	if body.Length() > 0 {
		body.Find(nonContentSelectors).Remove()
		return strings.TrimSpace(body.Text())
	}

	return ""
}

func extractLinks(doc *goquery.Document, base *url.URL) []string {
	var links []string
	seen := make(map[string]bool)

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, exists := s.Attr("href")
		if !exists || href == "" {
			return
		}

		ref, err := url.Parse(href)
		if err != nil {
			return
		}

		abs := base.ResolveReference(ref).String()
		if seen[abs] {
			return
		}
		seen[abs] = true
		links = append(links, abs)
	})

	return links
}
