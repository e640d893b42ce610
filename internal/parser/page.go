package parser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ScriptFunc evaluates a script body in the live page and returns its value
type ScriptFunc func(js string) (interface{}, error)

// Page is one read of the auction page: its address, visible text and markup.
// Script is optional; rules that need the page's own variables are skipped
// when it is nil.
type Page struct {
	URL    string
	Text   string
	HTML   string
	Script ScriptFunc

	doc *goquery.Document
}

// Document returns the parsed markup, parsing it on first use
func (p *Page) Document() *goquery.Document {
	if p.doc == nil {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(p.HTML))
		if err != nil {
			doc, _ = goquery.NewDocumentFromReader(strings.NewReader(""))
		}
		p.doc = doc
	}
	return p.doc
}

// Eval runs js when a script capability is present
func (p *Page) Eval(js string) (interface{}, bool) {
	if p.Script == nil {
		return nil, false
	}
	v, err := p.Script(js)
	if err != nil || v == nil {
		return nil, false
	}
	return v, true
}

// cleanText trims text and flattens line breaks the way the page renders a cell
func cleanText(s string) string {
	s = strings.ReplaceAll(s, "\n", "")
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\t", " ")
	return strings.TrimSpace(s)
}

// ownText returns only the text nodes directly under the selection
func ownText(s *goquery.Selection) string {
	var b strings.Builder
	s.Contents().Each(func(_ int, c *goquery.Selection) {
		if goquery.NodeName(c) == "#text" {
			b.WriteString(c.Text())
		}
	})
	return b.String()
}
