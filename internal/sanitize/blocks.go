// internal/sanitize/blocks.go
package sanitize

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aymerick/douceur/parser"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/amp-optimizer/internal/dom"
)

// Block is one rendered block of CMS content together with the attributes the
// editor stored for it.
type Block struct {
	Name    string                 `json:"blockName"`
	Attrs   map[string]interface{} `json:"attrs"`
	Content string                 `json:"innerHTML"`
}

// Attachment carries the stored dimensions of a media attachment.
type Attachment struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// AttachmentLookup resolves media attachments by id.
type AttachmentLookup interface {
	Attachment(id int) (Attachment, bool)
}

// Attachments is an in-memory AttachmentLookup.
type Attachments map[int]Attachment

// Attachment implements AttachmentLookup.
func (a Attachments) Attachment(id int) (Attachment, bool) {
	att, ok := a[id]
	return att, ok
}

// BlockHandler rewrites the parsed content of one kind of block in place.
type BlockHandler interface {
	Apply(root *html.Node, block Block, ctx *dom.Context)
}

// blockAttributes maps editor properties to the data attributes the AMP
// sanitizers read, in the order they are injected.
var blockAttributes = []struct{ prop, attr string }{
	{"ampCarousel", "data-amp-carousel"},
	{"ampLayout", "data-amp-layout"},
	{"ampLightbox", "data-amp-lightbox"},
	{"ampNoLoading", "data-amp-noloading"},
}

// InjectBlockAttributes copies the AMP editor properties of a block onto the
// first element of its content. Booleans are written as "true" or "false".
func InjectBlockAttributes(root *html.Node, attrs map[string]interface{}) {
	first := firstElement(root)
	if first == nil {
		return
	}
	var injected []html.Attribute
	for _, m := range blockAttributes {
		v, ok := attrs[m.prop]
		if !ok || v == nil {
			continue
		}
		injected = append(injected, html.Attribute{Key: m.attr, Val: attrString(v)})
	}
	for i := len(injected) - 1; i >= 0; i-- {
		dom.PrependAttr(first, injected[i].Key, injected[i].Val)
	}
}

func attrString(v interface{}) string {
	switch t := v.(type) {
	case bool:
		return strconv.FormatBool(t)
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	default:
		return fmt.Sprint(t)
	}
}

func firstElement(root *html.Node) *html.Node {
	var found *html.Node
	dom.Walk(root, func(n *html.Node) dom.WalkAction {
		if found != nil {
			return dom.SkipChildren
		}
		if n != root && n.Type == html.ElementNode {
			found = n
			return dom.SkipChildren
		}
		return dom.Continue
	})
	return found
}

// -- Block Processor --

// BlockProcessor turns rendered blocks into AMP-compatible markup.
type BlockProcessor struct {
	base        *zap.Logger
	logger      *zap.Logger
	opts        []BlockOption
	homeURL     string
	attachments AttachmentLookup
	handlers    map[string]BlockHandler
}

// BlockOption configures a BlockProcessor.
type BlockOption func(*BlockProcessor)

// WithAttachments sets the lookup used for video dimensions.
func WithAttachments(l AttachmentLookup) BlockOption {
	return func(p *BlockProcessor) { p.attachments = l }
}

// WithBlockHandler registers or replaces the handler for a block name.
func WithBlockHandler(name string, h BlockHandler) BlockOption {
	return func(p *BlockProcessor) { p.handlers[name] = h }
}

// NewBlockProcessor creates a processor with the built-in block handlers.
func NewBlockProcessor(homeURL string, logger *zap.Logger, opts ...BlockOption) *BlockProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &BlockProcessor{
		base:        logger,
		logger:      logger.With(zap.String("component", "blocks")),
		opts:        opts,
		homeURL:     homeURL,
		attachments: Attachments{},
	}
	p.handlers = map[string]BlockHandler{
		"core/categories": categoriesBlock{homeURL: homeURL},
		"core/archives":   archivesBlock{},
		"core/video":      videoBlock{lookup: func(id int) (Attachment, bool) { return p.attachments.Attachment(id) }},
		"core/cover":      coverBlock{},
		"core/image":      placeholderBlock{},
		"core/audio":      placeholderBlock{},

		"core/legacy-widget": textWidgetBlock{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// With returns a new processor with additional options applied on top of the
// ones p was created with. p itself is not modified.
func (p *BlockProcessor) With(opts ...BlockOption) *BlockProcessor {
	all := make([]BlockOption, 0, len(p.opts)+len(opts))
	all = append(all, p.opts...)
	all = append(all, opts...)
	return NewBlockProcessor(p.homeURL, p.base, all...)
}

// Render applies the editor attributes and the block's handler to its content
// and returns the resulting markup. Counters for generated ids come from ctx.
func (p *BlockProcessor) Render(ctx *dom.Context, block Block) (string, error) {
	if block.Name == "" {
		return block.Content, nil
	}
	root, err := dom.ParseFragment(block.Content)
	if err != nil {
		return "", fmt.Errorf("failed to parse content of block %q: %w", block.Name, err)
	}

	if block.Name != "core/shortcode" && len(block.Attrs) > 0 {
		InjectBlockAttributes(root, block.Attrs)
	}
	if h, ok := p.handlers[block.Name]; ok {
		h.Apply(root, block, ctx)
		p.logger.Debug("Block rewritten.", zap.String("block", block.Name))
	}
	return dom.InnerHTML(root), nil
}

// -- Handlers --

type categoriesBlock struct {
	homeURL string
}

// Apply drops the dropdown script and submits a wrapping form on change.
func (b categoriesBlock) Apply(root *html.Node, _ Block, ctx *dom.Context) {
	formID := fmt.Sprintf("wp-block-categories-dropdown-%d-form", ctx.Next("block:categories"))

	scripts, _ := dom.XPathFrom(root, ".//script")
	for _, s := range scripts {
		dom.Detach(s)
	}

	selects, _ := dom.XPathFrom(root, ".//select")
	if len(selects) == 0 {
		return
	}
	sel := selects[0]
	form := dom.CreateElement("form", "action", b.homeURL, "method", "get", "target", "_top", "id", formID)
	dom.Wrap(sel, form)
	if dom.HasAttr(sel, "on") {
		AddAMPAction(sel, "change", formID+".submit")
	} else {
		dom.PrependAttr(sel, "on", "change:"+formID+".submit")
	}
}

type textWidgetBlock struct{}

// Apply stashes embed dimensions inside text widgets so that ProcessTextWidgets
// can put them back after sanitization.
func (textWidgetBlock) Apply(root *html.Node, _ Block, _ *dom.Context) {
	widgets, _ := dom.XPathFrom(root, `.//div[@class="textwidget"]`)
	for _, w := range widgets {
		PreserveTextWidgetDimensions(w)
	}
}

type archivesBlock struct{}

const archivesIDPrefix = "wp-block-archives-"

// Apply replaces the random dropdown ids with run-scoped ones and swaps the
// inline change handler for an AMP navigation action.
func (archivesBlock) Apply(root *html.Node, _ Block, ctx *dom.Context) {
	n := strconv.Itoa(ctx.Next("block:archives"))
	for _, el := range dom.Elements(root) {
		for i, a := range el.Attr {
			if (a.Key == "id" || a.Key == "for") && strings.HasPrefix(a.Val, archivesIDPrefix) && isWord(a.Val[len(archivesIDPrefix):]) {
				el.Attr[i].Val = archivesIDPrefix + n
			}
		}
		if dom.HasAttr(el, "onchange") {
			dom.InsertAttrBefore(el, "onchange", "on", "change:AMP.navigateTo(url=event.value)")
			dom.RemoveAttr(el, "onchange")
		}
	}
}

func isWord(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !(r == '_' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return false
		}
	}
	return true
}

type videoBlock struct {
	lookup func(id int) (Attachment, bool)
}

// Apply sets the attachment dimensions on the block's videos.
func (b videoBlock) Apply(root *html.Node, block Block, _ *dom.Context) {
	id, ok := attachmentID(block.Attrs["id"])
	if !ok {
		return
	}
	att, ok := b.lookup(id)
	if !ok {
		return
	}
	videos, _ := dom.XPathFrom(root, ".//video")
	for _, v := range videos {
		dom.PrependAttr(v, "height", strconv.Itoa(att.Height))
		dom.PrependAttr(v, "width", strconv.Itoa(att.Width))
	}
}

func attachmentID(v interface{}) (int, bool) {
	switch t := v.(type) {
	case float64:
		if t > 0 && t == float64(int(t)) {
			return int(t), true
		}
	case int:
		return t, t > 0
	case string:
		n, err := strconv.Atoi(t)
		return n, err == nil && n > 0
	}
	return 0, false
}

type coverBlock struct{}

// Apply makes the background image or video fill the cover and carries the
// focal point over as an object-position attribute.
func (coverBlock) Apply(root *html.Node, _ Block, _ *dom.Context) {
	media, _ := dom.XPathFrom(root, `.//*[self::img or self::video][contains(@class, "wp-block-cover__image-background") or contains(@class, "wp-block-cover__video-background")]`)
	for _, el := range media {
		dom.PrependAttr(el, "layout", "fill")
		dom.PrependAttr(el, "object-fit", "cover")

		style, ok := dom.LookupAttr(el, "style")
		if !ok {
			continue
		}
		// The parser drops the value of a last declaration that is not terminated.
		if !strings.HasSuffix(strings.TrimSpace(style), ";") {
			style += ";"
		}
		decls, err := parser.ParseDeclarations(style)
		if err != nil {
			continue
		}
		for _, d := range decls {
			if d.Property != "object-position" {
				continue
			}
			if v := strings.TrimSpace(d.Value); v != "" {
				dom.InsertAttrAfter(el, "style", "object-position", v)
			}
			break
		}
	}
}

type placeholderBlock struct{}

// Apply empties the content of an image or audio placeholder that has no source.
func (placeholderBlock) Apply(root *html.Node, _ Block, _ *dom.Context) {
	sources, _ := dom.XPathFrom(root, ".//*[@src] | .//source")
	if len(sources) > 0 {
		return
	}
	for c := root.FirstChild; c != nil; {
		next := c.NextSibling
		root.RemoveChild(c)
		c = next
	}
}
