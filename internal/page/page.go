// Package page extracts links and controls from static HTML using XPath.
package page

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// ErrNoMatch is returned when an expression selects nothing.
var ErrNoMatch = errors.New("no element matched")

// Link is an anchor found on a page.
type Link struct {
	Href string
	// Markup is the anchor's outer HTML.
	Markup string
}

// Document is a parsed HTML page.
type Document struct {
	root *html.Node
}

// Parse builds a Document from raw markup.
func Parse(body []byte) (*Document, error) {
	root, err := htmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &Document{root: root}, nil
}

// Links returns every anchor selected by expr, in document order.
func (d *Document) Links(expr string) ([]Link, error) {
	nodes, err := htmlquery.QueryAll(d.root, expr)
	if err != nil {
		return nil, fmt.Errorf("evaluate xpath %q: %w", expr, err)
	}
	links := make([]Link, 0, len(nodes))
	for _, n := range nodes {
		if n.Type != html.ElementNode {
			continue
		}
		links = append(links, Link{
			Href:   htmlquery.SelectAttr(n, "href"),
			Markup: htmlquery.OutputHTML(n, true),
		})
	}
	return links, nil
}

// Disabled reports whether the first element selected by expr carries the
// disabled attribute. It returns ErrNoMatch when nothing is selected.
func (d *Document) Disabled(expr string) (bool, error) {
	n, err := htmlquery.Query(d.root, expr)
	if err != nil {
		return false, fmt.Errorf("evaluate xpath %q: %w", expr, err)
	}
	if n == nil {
		return false, fmt.Errorf("%q: %w", expr, ErrNoMatch)
	}
	return hasAttr(n, "disabled"), nil
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}
