// internal/dom/query.go
package dom

import (
	"fmt"

	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// WalkAction tells Walk how to continue after visiting a node.
type WalkAction int

const (
	// Continue descends into the children of the visited node.
	Continue WalkAction = iota
	// SkipChildren moves on to the next sibling without descending.
	SkipChildren
)

// Walk visits n and its descendants in document order. The children of a node
// are read after the visitor returns, so a visitor may mutate the node it is
// given (including inserting a first child) without corrupting the traversal
// of its siblings.
func Walk(n *html.Node, visit func(*html.Node) WalkAction) {
	if n == nil {
		return
	}
	if visit(n) == SkipChildren {
		return
	}
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		Walk(c, visit)
		c = next
	}
}

// Elements returns all elements beneath n (excluding n itself) in document
// order. The contents of <template> elements are skipped; the template
// elements themselves are still returned.
func Elements(n *html.Node) []*html.Node {
	var out []*html.Node
	Walk(n, func(c *html.Node) WalkAction {
		if c == n {
			return Continue
		}
		if c.Type != html.ElementNode {
			return Continue
		}
		out = append(out, c)
		if c.Data == "template" {
			return SkipChildren
		}
		return Continue
	})
	return out
}

// ElementsByTag returns all elements with the given tag in document order,
// including those inside templates.
func (d *Document) ElementsByTag(tag string) []*html.Node {
	var out []*html.Node
	Walk(d.root, func(c *html.Node) WalkAction {
		if c.Type == html.ElementNode && c.Data == tag {
			out = append(out, c)
		}
		return Continue
	})
	return out
}

// Query returns every element matching the CSS selector, in document order.
func (d *Document) Query(selector string) ([]*html.Node, error) {
	return QueryFrom(d.root, selector)
}

// QueryFrom evaluates a CSS selector against n and its descendants.
func QueryFrom(n *html.Node, selector string) ([]*html.Node, error) {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", selector, err)
	}
	return sel.MatchAll(n), nil
}

// QueryOne returns the first element matching the CSS selector, or nil.
func (d *Document) QueryOne(selector string) (*html.Node, error) {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", selector, err)
	}
	return sel.MatchFirst(d.root), nil
}

// XPath evaluates an XPath expression against the whole document.
func (d *Document) XPath(expr string) ([]*html.Node, error) {
	return XPathFrom(d.root, expr)
}

// XPathFrom evaluates an XPath expression relative to n. Relative expressions
// (".//option") are resolved against n.
func XPathFrom(n *html.Node, expr string) ([]*html.Node, error) {
	nodes, err := htmlquery.QueryAll(n, expr)
	if err != nil {
		return nil, fmt.Errorf("invalid xpath %q: %w", expr, err)
	}
	return nodes, nil
}
