package scraper

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// RenderedPage is the DOM capability the site extractors depend on
type RenderedPage interface {
	// QueryText returns the text of the first element matching selector
	QueryText(selector string) (string, bool)
	// QueryAllText returns the text of every element matching selector
	QueryAllText(selector string) []string
	// FullText returns the rendered text of the whole body
	FullText() string
	// FindStructuredData returns every JSON-LD object embedded in the page
	FindStructuredData() []map[string]interface{}
	// Click clicks the first clickable element whose visible text contains matchingText
	Click(matchingText string) bool
}

const clickableSelector = "button, [role='button'], a"

// HTMLPage is an immutable snapshot of a rendered page.
// The fetcher builds one after the browser finished rendering, so
// extraction never touches a live browser session.
type HTMLPage struct {
	doc       *goquery.Document
	innerText string
	url       string
}

// NewHTMLPage parses rendered HTML. innerText is the browser's
// document.body.innerText; when empty it is derived from the markup.
func NewHTMLPage(url, html, innerText string) (*HTMLPage, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse rendered html: %w", err)
	}
	return &HTMLPage{doc: doc, innerText: innerText, url: url}, nil
}

// URL returns the address the snapshot was taken from
func (p *HTMLPage) URL() string {
	return p.url
}

// Title returns the document title
func (p *HTMLPage) Title() string {
	return strings.TrimSpace(p.doc.Find("title").First().Text())
}

func (p *HTMLPage) QueryText(selector string) (string, bool) {
	sel := p.doc.Find(selector).First()
	if sel.Length() == 0 {
		return "", false
	}
	return sel.Text(), true
}

func (p *HTMLPage) QueryAllText(selector string) []string {
	var texts []string
	p.doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		texts = append(texts, s.Text())
	})
	return texts
}

func (p *HTMLPage) FullText() string {
	if p.innerText != "" {
		return p.innerText
	}
	body := p.doc.Find("body").Clone()
	body.Find("script, style, noscript").Remove()
	return body.Text()
}

func (p *HTMLPage) FindStructuredData() []map[string]interface{} {
	var objects []map[string]interface{}
	p.doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		var raw interface{}
		if err := json.Unmarshal([]byte(s.Text()), &raw); err != nil {
			return
		}
		objects = append(objects, flattenStructuredData(raw)...)
	})
	return objects
}

// Click on a snapshot has no effect; it only reports whether a target exists
func (p *HTMLPage) Click(matchingText string) bool {
	needle := strings.ToLower(matchingText)
	found := false
	p.doc.Find(clickableSelector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if strings.Contains(strings.ToLower(s.Text()), needle) {
			found = true
			return false
		}
		return true
	})
	return found
}

// flattenStructuredData unwraps top-level arrays and @graph containers
func flattenStructuredData(raw interface{}) []map[string]interface{} {
	switch v := raw.(type) {
	case map[string]interface{}:
		objects := []map[string]interface{}{v}
		if graph, ok := v["@graph"]; ok {
			objects = append(objects, flattenStructuredData(graph)...)
		}
		return objects
	case []interface{}:
		var objects []map[string]interface{}
		for _, item := range v {
			objects = append(objects, flattenStructuredData(item)...)
		}
		return objects
	}
	return nil
}

// textsContaining returns texts that contain phrase, most specific (shortest) first
func textsContaining(page RenderedPage, phrase string) []string {
	var matches []string
	for _, text := range page.QueryAllText("*") {
		if strings.Contains(text, phrase) {
			matches = append(matches, text)
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return len(matches[i]) < len(matches[j])
	})
	return matches
}
