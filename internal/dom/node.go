// internal/dom/node.go
package dom

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// -- Attribute Access --

// LookupAttr returns the value of the named attribute and whether it is present.
// Attribute names are matched case-insensitively.
func LookupAttr(n *html.Node, key string) (string, bool) {
	if n == nil {
		return "", false
	}
	key = strings.ToLower(key)
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// Attr returns the value of the named attribute, or "" when absent.
func Attr(n *html.Node, key string) string {
	v, _ := LookupAttr(n, key)
	return v
}

// HasAttr reports whether the named attribute is present.
func HasAttr(n *html.Node, key string) bool {
	_, ok := LookupAttr(n, key)
	return ok
}

// SetAttr sets an attribute value. An existing attribute keeps its position;
// a new one is appended after all others so serialization reflects insertion order.
func SetAttr(n *html.Node, key, val string) {
	key = strings.ToLower(key)
	for i := range n.Attr {
		if n.Attr[i].Namespace == "" && n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// PrependAttr inserts an attribute in front of all existing attributes. If the
// attribute already exists it is moved to the front.
func PrependAttr(n *html.Node, key, val string) {
	RemoveAttr(n, key)
	n.Attr = append([]html.Attribute{{Key: strings.ToLower(key), Val: val}}, n.Attr...)
}

// InsertAttrAfter places an attribute directly after the attribute named after.
// When after is not present the attribute is appended.
func InsertAttrAfter(n *html.Node, after, key, val string) {
	RemoveAttr(n, key)
	after = strings.ToLower(after)
	attr := html.Attribute{Key: strings.ToLower(key), Val: val}
	for i := range n.Attr {
		if n.Attr[i].Key == after {
			n.Attr = append(n.Attr[:i+1], append([]html.Attribute{attr}, n.Attr[i+1:]...)...)
			return
		}
	}
	n.Attr = append(n.Attr, attr)
}

// InsertAttrBefore places an attribute directly before the attribute named before.
// When before is not present the attribute is appended.
func InsertAttrBefore(n *html.Node, before, key, val string) {
	RemoveAttr(n, key)
	before = strings.ToLower(before)
	attr := html.Attribute{Key: strings.ToLower(key), Val: val}
	for i := range n.Attr {
		if n.Attr[i].Key == before {
			n.Attr = append(n.Attr[:i], append([]html.Attribute{attr}, n.Attr[i:]...)...)
			return
		}
	}
	n.Attr = append(n.Attr, attr)
}

// RemoveAttr deletes the named attribute and reports whether it was present.
func RemoveAttr(n *html.Node, key string) bool {
	key = strings.ToLower(key)
	for i := range n.Attr {
		if n.Attr[i].Namespace == "" && n.Attr[i].Key == key {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return true
		}
	}
	return false
}

// AddClass appends class names to the class attribute, creating it if needed.
// Names already present are not repeated.
func AddClass(n *html.Node, classes ...string) {
	existing := strings.Fields(Attr(n, "class"))
	seen := make(map[string]bool, len(existing))
	for _, c := range existing {
		seen[c] = true
	}
	for _, c := range classes {
		if c == "" || seen[c] {
			continue
		}
		existing = append(existing, c)
		seen[c] = true
	}
	SetAttr(n, "class", strings.Join(existing, " "))
}

// HasClass reports whether the element carries the class name.
func HasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(Attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

// -- Node Construction --

// CreateElement builds a detached element. Attributes are given as alternating
// key/value pairs and keep the order they are passed in.
func CreateElement(tag string, kv ...string) *html.Node {
	tag = strings.ToLower(tag)
	n := &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
	}
	for i := 0; i+1 < len(kv); i += 2 {
		n.Attr = append(n.Attr, html.Attribute{Key: strings.ToLower(kv[i]), Val: kv[i+1]})
	}
	return n
}

// CreateText builds a detached text node.
func CreateText(text string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: text}
}

// -- Tree Mutation --

// Detach removes n from its parent, if any. The parent back-reference is cleared.
func Detach(n *html.Node) {
	if n != nil && n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

// AppendChild adds child as the last child of parent, detaching it first.
func AppendChild(parent, child *html.Node) {
	Detach(child)
	parent.AppendChild(child)
}

// PrependChild adds child as the first child of parent, detaching it first.
func PrependChild(parent, child *html.Node) {
	Detach(child)
	if parent.FirstChild == nil {
		parent.AppendChild(child)
		return
	}
	parent.InsertBefore(child, parent.FirstChild)
}

// InsertBefore inserts child into parent before ref. A nil ref appends.
func InsertBefore(parent, child, ref *html.Node) {
	Detach(child)
	parent.InsertBefore(child, ref)
}

// RemoveChild removes child from parent. It is a no-op when child belongs elsewhere.
func RemoveChild(parent, child *html.Node) {
	if child == nil || child.Parent != parent {
		return
	}
	parent.RemoveChild(child)
}

// ReplaceWith puts replacement at the position of old and detaches old.
func ReplaceWith(old, replacement *html.Node) {
	parent := old.Parent
	if parent == nil {
		return
	}
	Detach(replacement)
	parent.InsertBefore(replacement, old)
	parent.RemoveChild(old)
}

// Wrap inserts wrapper at the position of n and moves n inside it.
func Wrap(n, wrapper *html.Node) {
	ReplaceWith(n, wrapper)
	AppendChild(wrapper, n)
}

// -- Navigation --

// FirstChildElement returns the first direct child element with the given tag.
// An empty tag matches any element.
func FirstChildElement(n *html.Node, tag string) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && (tag == "" || c.Data == tag) {
			return c
		}
	}
	return nil
}

// HasAncestor reports whether any ancestor of n is an element with the given tag.
func HasAncestor(n *html.Node, tag string) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && p.Data == tag {
			return true
		}
	}
	return false
}

// IsElement reports whether n is an element with one of the given tags.
func IsElement(n *html.Node, tags ...string) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	if len(tags) == 0 {
		return true
	}
	for _, t := range tags {
		if n.Data == t {
			return true
		}
	}
	return false
}

// TextContent concatenates all descendant text.
func TextContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
		for cc := c.FirstChild; cc != nil; cc = cc.NextSibling {
			walk(cc)
		}
	}
	walk(n)
	return sb.String()
}

// SetTextContent replaces all children of n with a single text node.
func SetTextContent(n *html.Node, text string) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
	if text != "" {
		n.AppendChild(CreateText(text))
	}
}
