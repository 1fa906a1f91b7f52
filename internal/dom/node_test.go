package dom_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/amp-optimizer/internal/dom"
)

func TestAttributes_OrderIsPreserved(t *testing.T) {
	el := dom.CreateElement("amp-img", "height", "300", "layout", "responsive", "sizes", "100vw", "width", "400")

	dom.RemoveAttr(el, "sizes")
	dom.SetAttr(el, "layout", "fixed")
	dom.SetAttr(el, "id", "i-amp-id")

	assert.Equal(t, `<amp-img height="300" layout="fixed" width="400" id="i-amp-id"></amp-img>`, dom.OuterHTML(el))
}

func TestAttributes_Insertion(t *testing.T) {
	el := dom.CreateElement("div", "a", "1", "c", "3")

	dom.InsertAttrAfter(el, "a", "b", "2")
	dom.InsertAttrBefore(el, "a", "z", "0")
	dom.PrependAttr(el, "first", "")
	dom.InsertAttrAfter(el, "missing", "last", "9")

	assert.Equal(t, `<div first z="0" a="1" b="2" c="3" last="9"></div>`, dom.OuterHTML(el))
}

func TestAttributes_CaseInsensitiveLookup(t *testing.T) {
	el := dom.CreateElement("div", "data-x", "1")
	v, ok := dom.LookupAttr(el, "DATA-X")
	assert.True(t, ok)
	assert.Equal(t, "1", v)
	assert.False(t, dom.HasAttr(el, "data-y"))
	assert.False(t, dom.RemoveAttr(el, "data-y"))
	assert.False(t, dom.HasAttr(nil, "x"))
}

func TestAddClass(t *testing.T) {
	t.Run("Reuses empty class in place", func(t *testing.T) {
		el := dom.CreateElement("amp-img", "class", "", "layout", "container")
		dom.AddClass(el, "i-amphtml-layout-container")
		assert.Equal(t, `<amp-img class="i-amphtml-layout-container" layout="container"></amp-img>`, dom.OuterHTML(el))
	})

	t.Run("Appends without duplicates", func(t *testing.T) {
		el := dom.CreateElement("div", "class", "a b")
		dom.AddClass(el, "b", "c", "", "c")
		assert.Equal(t, "a b c", dom.Attr(el, "class"))
		assert.True(t, dom.HasClass(el, "c"))
		assert.False(t, dom.HasClass(el, "d"))
	})
}

func TestTreeMutation(t *testing.T) {
	parent := dom.CreateElement("div")
	a := dom.CreateElement("a")
	b := dom.CreateElement("b")
	c := dom.CreateElement("c")

	dom.AppendChild(parent, b)
	dom.PrependChild(parent, a)
	dom.InsertBefore(parent, c, nil)
	assert.Equal(t, `<div><a></a><b></b><c></c></div>`, dom.OuterHTML(parent))

	// Moving a node detaches it from its previous position first.
	dom.PrependChild(parent, c)
	assert.Equal(t, `<div><c></c><a></a><b></b></div>`, dom.OuterHTML(parent))

	span := dom.CreateElement("span")
	dom.ReplaceWith(a, span)
	assert.Nil(t, a.Parent)
	assert.Equal(t, `<div><c></c><span></span><b></b></div>`, dom.OuterHTML(parent))

	form := dom.CreateElement("form")
	dom.Wrap(b, form)
	assert.Equal(t, `<div><c></c><span></span><form><b></b></form></div>`, dom.OuterHTML(parent))
	assert.True(t, dom.HasAncestor(b, "div"))
	assert.False(t, dom.HasAncestor(b, "template"))

	// Removing from the wrong parent is a no-op.
	dom.RemoveChild(parent, b)
	assert.Same(t, form, b.Parent)
}

func TestTextContent(t *testing.T) {
	root, err := dom.ParseFragment(`<p>hello <b>big</b> world</p>`)
	require.NoError(t, err)
	p := dom.FirstChildElement(root, "p")
	assert.Equal(t, "hello big world", dom.TextContent(p))

	dom.SetTextContent(p, "replaced")
	assert.Equal(t, `<p>replaced</p>`, dom.OuterHTML(p))
	assert.Equal(t, html.TextNode, p.FirstChild.Type)

	dom.SetTextContent(p, "")
	assert.Nil(t, p.FirstChild)
}

func TestIsElement(t *testing.T) {
	el := dom.CreateElement("video")
	assert.True(t, dom.IsElement(el))
	assert.True(t, dom.IsElement(el, "iframe", "video"))
	assert.False(t, dom.IsElement(el, "img"))
	assert.False(t, dom.IsElement(dom.CreateText("x")))
	assert.False(t, dom.IsElement(nil))
}

func TestSerialize_RawAndEscapedContent(t *testing.T) {
	style := dom.CreateElement("style", "amp-custom", "")
	style.AppendChild(dom.CreateText(`a>b{content:"&"}`))
	assert.Equal(t, `<style amp-custom>a>b{content:"&"}</style>`, dom.OuterHTML(style))

	img := dom.CreateElement("img", "src", `data:image/svg+xml;charset=utf-8,<svg height="1"/>`)
	assert.Equal(t, `<img src="data:image/svg+xml;charset=utf-8,<svg height=&quot;1&quot;/>">`, dom.OuterHTML(img))

	pre := dom.CreateElement("pre")
	pre.AppendChild(dom.CreateText("\nline"))
	assert.Equal(t, "<pre>\n\nline</pre>", dom.OuterHTML(pre))
}
