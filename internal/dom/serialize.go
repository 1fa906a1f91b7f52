// internal/dom/serialize.go
package dom

import (
	"bufio"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// The serializer differs from html.Render in three ways that matter for AMP
// output: attributes with an empty value are written bare (<style amp-custom>),
// attribute values only escape '&' and '"' (so inline SVG data URIs stay
// readable), and nothing is re-ordered or normalized.

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "keygen": true, "link": true,
	"meta": true, "param": true, "source": true, "track": true, "wbr": true,
}

var rawTextElements = map[string]bool{
	"iframe": true, "noembed": true, "noframes": true, "plaintext": true,
	"script": true, "style": true, "xmp": true,
}

var (
	attrEscaper = strings.NewReplacer(`&`, "&amp;", `"`, "&quot;")
	textEscaper = strings.NewReplacer(`&`, "&amp;", `<`, "&lt;", `>`, "&gt;")
)

// InnerHTML serializes the children of n.
func InnerHTML(n *html.Node) string {
	var sb strings.Builder
	bw := bufio.NewWriter(&sb)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		_ = renderNode(bw, c)
	}
	_ = bw.Flush()
	return sb.String()
}

// OuterHTML serializes n including its own tag.
func OuterHTML(n *html.Node) string {
	var sb strings.Builder
	_ = render(&sb, n)
	return sb.String()
}

func render(w io.Writer, n *html.Node) error {
	bw := bufio.NewWriter(w)
	if err := renderNode(bw, n); err != nil {
		return err
	}
	return bw.Flush()
}

func renderNode(w *bufio.Writer, n *html.Node) error {
	switch n.Type {
	case html.DocumentNode:
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if err := renderNode(w, c); err != nil {
				return err
			}
		}
		return nil
	case html.DoctypeNode:
		return renderDoctype(w, n)
	case html.CommentNode:
		_, err := w.WriteString("<!--" + n.Data + "-->")
		return err
	case html.TextNode:
		if n.Parent != nil && n.Parent.Type == html.ElementNode && rawTextElements[n.Parent.Data] {
			_, err := w.WriteString(n.Data)
			return err
		}
		_, err := textEscaper.WriteString(w, n.Data)
		return err
	case html.ElementNode:
		return renderElement(w, n)
	case html.RawNode:
		_, err := w.WriteString(n.Data)
		return err
	}
	return nil
}

func renderElement(w *bufio.Writer, n *html.Node) error {
	w.WriteByte('<')
	w.WriteString(n.Data)
	for _, a := range n.Attr {
		w.WriteByte(' ')
		if a.Namespace != "" {
			w.WriteString(a.Namespace)
			w.WriteByte(':')
		}
		w.WriteString(a.Key)
		if a.Val != "" {
			w.WriteString(`="`)
			attrEscaper.WriteString(w, a.Val)
			w.WriteByte('"')
		}
	}
	if _, err := w.WriteString(">"); err != nil {
		return err
	}
	if voidElements[n.Data] {
		return nil
	}

	// Parsers drop a single newline directly after these start tags, so one has
	// to be written back when the content itself starts with a newline.
	if c := n.FirstChild; c != nil && c.Type == html.TextNode && strings.HasPrefix(c.Data, "\n") {
		switch n.Data {
		case "pre", "listing", "textarea":
			w.WriteByte('\n')
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := renderNode(w, c); err != nil {
			return err
		}
	}
	_, err := w.WriteString("</" + n.Data + ">")
	return err
}

func renderDoctype(w *bufio.Writer, n *html.Node) error {
	w.WriteString("<!DOCTYPE ")
	w.WriteString(n.Data)
	var public, system string
	for _, a := range n.Attr {
		switch a.Key {
		case "public":
			public = a.Val
		case "system":
			system = a.Val
		}
	}
	if public != "" {
		w.WriteString(` PUBLIC "` + public + `"`)
		if system != "" {
			w.WriteString(` "` + system + `"`)
		}
	} else if system != "" {
		w.WriteString(` SYSTEM "` + system + `"`)
	}
	_, err := w.WriteString(">")
	return err
}
