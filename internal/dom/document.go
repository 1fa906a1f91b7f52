// internal/dom/document.go
package dom

import (
	"bytes"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Document is a parsed HTML document that is mutated in place by the optimizer.
//
// A Document owns every node beneath its root. It is not safe for concurrent
// mutation; callers that optimize several documents in parallel build one
// Document per goroutine.
type Document struct {
	root *html.Node
	html *html.Node
	head *html.Node
	body *html.Node

	ctx *Context
}

// Parse reads the complete markup from r and builds a Document.
func Parse(r io.Reader) (*Document, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, &ParseError{Reason: "failed to read input", Offset: -1, Err: err}
	}
	return ParseBytes(raw)
}

// ParseString is a convenience wrapper around ParseBytes.
func ParseString(markup string) (*Document, error) {
	return ParseBytes([]byte(markup))
}

// ParseBytes builds a Document from raw markup. Malformed-but-recoverable HTML
// (unclosed tags, stray end tags, missing head or body) is repaired the way a
// browser would repair it. Input that is not valid UTF-8 is rejected with a
// *ParseError.
func ParseBytes(raw []byte) (*Document, error) {
	if !utf8.Valid(raw) {
		return nil, &ParseError{Reason: "input is not valid UTF-8", Offset: firstInvalidRune(raw)}
	}

	// Scripting is disabled so that <noscript> content is parsed into elements,
	// which the boilerplate handling depends on.
	root, err := html.ParseWithOptions(bytes.NewReader(raw), html.ParseOptionEnableScripting(false))
	if err != nil {
		return nil, &ParseError{Reason: "tokenizer failure", Offset: -1, Err: err}
	}

	doc := &Document{root: root, ctx: NewContext()}
	doc.html = FirstChildElement(root, "html")
	if doc.html != nil {
		doc.head = FirstChildElement(doc.html, "head")
		doc.body = FirstChildElement(doc.html, "body")
	}
	if doc.html == nil || doc.head == nil || doc.body == nil {
		return nil, &ParseError{Reason: "document has no <html>, <head> and <body> structure", Offset: -1}
	}
	return doc, nil
}

// ParseFragment parses markup as if it were the content of a <body> element.
// The resulting nodes are returned as children of a detached container node,
// which can be queried and mutated like a document and serialized with
// InnerHTML.
func ParseFragment(markup string) (*html.Node, error) {
	if !utf8.ValidString(markup) {
		return nil, &ParseError{Reason: "fragment is not valid UTF-8", Offset: firstInvalidRune([]byte(markup))}
	}
	context := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragmentWithOptions(strings.NewReader(markup), context, html.ParseOptionEnableScripting(false))
	if err != nil {
		return nil, &ParseError{Reason: "tokenizer failure", Offset: -1, Err: err}
	}
	container := &html.Node{Type: html.DocumentNode}
	for _, n := range nodes {
		Detach(n)
		container.AppendChild(n)
	}
	return container, nil
}

// Root returns the document node.
func (d *Document) Root() *html.Node { return d.root }

// HTML returns the <html> element.
func (d *Document) HTML() *html.Node { return d.html }

// Head returns the <head> element.
func (d *Document) Head() *html.Node { return d.head }

// Body returns the <body> element.
func (d *Document) Body() *html.Node { return d.body }

// Context returns the per-run state attached to this document.
func (d *Document) Context() *Context { return d.ctx }

// String serializes the document. Serialization into a strings.Builder cannot
// fail, so the error is dropped.
func (d *Document) String() string {
	var sb strings.Builder
	_ = d.Serialize(&sb)
	return sb.String()
}

// Serialize writes the document markup to w.
func (d *Document) Serialize(w io.Writer) error {
	return render(w, d.root)
}

// ElementByID returns the first element carrying the given id, or nil.
func (d *Document) ElementByID(id string) *html.Node {
	var found *html.Node
	Walk(d.root, func(n *html.Node) WalkAction {
		if found != nil {
			return SkipChildren
		}
		if n.Type == html.ElementNode && Attr(n, "id") == id {
			found = n
			return SkipChildren
		}
		return Continue
	})
	return found
}

// firstInvalidRune reports the byte offset of the first invalid UTF-8 sequence.
func firstInvalidRune(raw []byte) int {
	for i := 0; i < len(raw); {
		r, size := utf8.DecodeRune(raw[i:])
		if r == utf8.RuneError && size <= 1 {
			return i
		}
		i += size
	}
	return -1
}
