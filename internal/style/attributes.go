// internal/style/attributes.go
package style

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/xkilldash9x/amp-optimizer/internal/dom"
	"github.com/xkilldash9x/amp-optimizer/internal/optimizer"
)

// IDPrefix is the base of every id the optimizer has to invent.
const IDPrefix = "i-amp-id"

type attrKind int

const (
	kindSizes attrKind = iota
	kindHeights
	kindMedia
)

// plan is a validated rewrite of one attribute.
type plan struct {
	attr     string
	kind     attrKind
	list     SizeList
	query    string
	noEffect bool
}

// AttributePlan holds the validated sizes, heights and media rewrites of one
// element. Nothing is changed on the element until Apply is called.
type AttributePlan struct {
	el    *html.Node
	plans []plan
}

// PlanAttributes validates the sizes, heights and media attributes of el, and
// its id when a rule will select on it. The returned error is an
// *optimizer.InvalidHTMLAttribute naming the first bad attribute; in that case
// el is untouched.
func PlanAttributes(el *html.Node) (*AttributePlan, error) {
	p := &AttributePlan{el: el}
	disableInlineWidth := dom.HasAttr(el, "disable-inline-width")

	for _, a := range el.Attr {
		if a.Namespace != "" {
			continue
		}
		switch a.Key {
		case "sizes":
			if disableInlineWidth {
				continue
			}
			// sizes has no effect without a responsive srcset.
			if strings.TrimSpace(dom.Attr(el, "srcset")) == "" {
				p.plans = append(p.plans, plan{attr: a.Key, noEffect: true})
				continue
			}
			list, err := ParseSizes(a.Val)
			if err != nil {
				return nil, invalid(el, a)
			}
			p.plans = append(p.plans, plan{attr: a.Key, kind: kindSizes, list: list})
		case "heights":
			list, err := ParseSizes(a.Val)
			if err != nil {
				return nil, invalid(el, a)
			}
			p.plans = append(p.plans, plan{attr: a.Key, kind: kindHeights, list: list})
		case "media":
			if strings.TrimSpace(a.Val) == "" {
				p.plans = append(p.plans, plan{attr: a.Key, noEffect: true})
				continue
			}
			if err := ValidateMediaQuery(a.Val); err != nil {
				return nil, invalid(el, a)
			}
			p.plans = append(p.plans, plan{attr: a.Key, kind: kindMedia, query: a.Val})
		}
	}

	// Authored ids end up in the generated selectors.
	if id, ok := dom.LookupAttr(el, "id"); ok && id != "" && p.needsID() {
		if err := ValidateID(id); err != nil {
			return nil, &optimizer.InvalidHTMLAttribute{Attribute: "id", Value: id, Node: el}
		}
	}
	return p, nil
}

func (p *AttributePlan) needsID() bool {
	for _, pl := range p.plans {
		if !pl.noEffect {
			return true
		}
	}
	return false
}

// Empty reports whether the element has nothing to rewrite.
func (p *AttributePlan) Empty() bool { return len(p.plans) == 0 }

// Apply removes the planned attributes, assigns an id when a rule needs one
// and returns the generated rules in attribute order.
func (p *AttributePlan) Apply(doc *dom.Document) Rules {
	var rules Rules
	for _, pl := range p.plans {
		dom.RemoveAttr(p.el, pl.attr)
		if pl.noEffect {
			continue
		}
		id := EnsureID(doc, p.el)
		switch pl.kind {
		case kindSizes:
			rules = append(rules, SizesRules(id, pl.list)...)
		case kindHeights:
			rules = append(rules, HeightsRules(id, pl.list)...)
		case kindMedia:
			rules = append(rules, MediaRules(id, pl.query)...)
		}
	}
	return rules
}

// TransformAttributes plans and applies the attribute rewrites of el in one go.
func TransformAttributes(doc *dom.Document, el *html.Node) (Rules, error) {
	p, err := PlanAttributes(el)
	if err != nil {
		return nil, err
	}
	return p.Apply(doc), nil
}

func invalid(el *html.Node, a html.Attribute) *optimizer.InvalidHTMLAttribute {
	return &optimizer.InvalidHTMLAttribute{Attribute: a.Key, Value: a.Val, Node: el}
}

// EnsureID returns the id of el, assigning a fresh one when it has none.
func EnsureID(doc *dom.Document, el *html.Node) string {
	if id := dom.Attr(el, "id"); id != "" {
		return id
	}
	id := doc.UniqueID(IDPrefix)
	dom.SetAttr(el, "id", id)
	return id
}

// AmpCustom returns the document's <style amp-custom>, or nil.
func AmpCustom(doc *dom.Document) *html.Node {
	for c := doc.Head().FirstChild; c != nil; c = c.NextSibling {
		if dom.IsElement(c, "style") && dom.HasAttr(c, "amp-custom") {
			return c
		}
	}
	return nil
}

// MergeIntoAmpCustom appends rules to the authored css in <style amp-custom>,
// creating the element at the end of <head> when the document has none.
func MergeIntoAmpCustom(doc *dom.Document, rules Rules) {
	if len(rules) == 0 {
		return
	}
	el := AmpCustom(doc)
	if el == nil {
		el = dom.CreateElement("style", "amp-custom", "")
		dom.AppendChild(doc.Head(), el)
	}
	dom.SetTextContent(el, dom.TextContent(el)+rules.String())
}
