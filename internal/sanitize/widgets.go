// internal/sanitize/widgets.go
package sanitize

import (
	"fmt"
	"net/url"
	"regexp"

	"golang.org/x/net/html"

	"github.com/xkilldash9x/amp-optimizer/internal/dom"
)

const (
	PreservedWidthAttr  = "amp-preserved-width"
	PreservedHeightAttr = "amp-preserved-height"
)

var digits = regexp.MustCompile(`^\d+$`)

// PreserveTextWidgetDimensions stashes the numeric width and height of embedded
// media in a text widget before the CMS strips them. The legacy widget block
// handler calls it on every text widget; ProcessTextWidgets restores them later.
func PreserveTextWidgetDimensions(root *html.Node) {
	for _, el := range dom.Elements(root) {
		if !dom.IsElement(el, "video", "iframe", "object", "embed") {
			continue
		}
		if h, ok := dom.LookupAttr(el, "height"); ok && digits.MatchString(h) {
			dom.InsertAttrBefore(el, "height", PreservedHeightAttr, h)
		}
		if w, ok := dom.LookupAttr(el, "width"); ok && digits.MatchString(w) {
			dom.InsertAttrBefore(el, "width", PreservedWidthAttr, w)
		}
	}
}

// ProcessCategoriesWidgets replaces the inline script of category dropdown
// widgets with an AMP action that submits the surrounding form. It returns
// the number of widgets rewritten.
func ProcessCategoriesWidgets(doc *dom.Document) int {
	selects, _ := doc.XPath(`//form/select[@name="cat"]`)
	count := 0
	for _, sel := range selects {
		form := sel.Parent
		if form == nil || form.Parent == nil || form.Parent.Type != html.ElementNode {
			continue
		}
		scripts, _ := dom.XPathFrom(form.Parent, `.//script[contains(text(), "onCatChange")]`)
		if len(scripts) == 0 {
			continue
		}

		id := fmt.Sprintf("amp-wp-widget-categories-%d", doc.Context().Next("widget:categories"))
		dom.SetAttr(form, "id", id)
		AddAMPAction(sel, "change", id+".submit")
		dom.Detach(scripts[0])
		count++
	}
	return count
}

// ProcessArchivesWidgets replaces the inline navigation of archive dropdown
// widgets with AMP.navigateTo. With ampToAMP set, option urls are pointed at
// the AMP version of the page. It returns the number of widgets rewritten.
func ProcessArchivesWidgets(doc *dom.Document, ampToAMP bool) int {
	selects, _ := doc.XPath(`//select[@name="archive-dropdown" and starts-with(@id, "archives-dropdown-")]`)
	count := 0
	for _, sel := range selects {
		var script *html.Node
		if sel.Parent != nil {
			if found, _ := dom.XPathFrom(sel.Parent, `.//script[contains(text(), "onSelectChange")]`); len(found) > 0 {
				script = found[0]
			}
		}
		switch {
		case script != nil:
			dom.Detach(script)
		case dom.HasAttr(sel, "onchange"):
			dom.RemoveAttr(sel, "onchange")
		default:
			continue
		}

		AddAMPAction(sel, "change", "AMP.navigateTo(url=event.value)")
		if ampToAMP {
			options, _ := dom.XPathFrom(sel, `.//option[@value != ""]`)
			for _, opt := range options {
				dom.SetAttr(opt, "value", AddPairedEndpoint(dom.Attr(opt, "value")))
			}
		}
		count++
	}
	return count
}

// ProcessTextWidgets restores the dimensions stashed by
// PreserveTextWidgetDimensions inside text widgets.
func ProcessTextWidgets(doc *dom.Document) int {
	widgets, _ := doc.XPath(`//div[@class="textwidget"]`)
	restored := 0
	for _, w := range widgets {
		els, _ := dom.XPathFrom(w, fmt.Sprintf(`.//*[@%s or @%s]`, PreservedWidthAttr, PreservedHeightAttr))
		for _, el := range els {
			if v, ok := dom.LookupAttr(el, PreservedWidthAttr); ok {
				dom.SetAttr(el, "width", v)
				dom.RemoveAttr(el, PreservedWidthAttr)
			}
			if v, ok := dom.LookupAttr(el, PreservedHeightAttr); ok {
				dom.SetAttr(el, "height", v)
				dom.RemoveAttr(el, PreservedHeightAttr)
			}
			restored++
		}
	}
	return restored
}

// AddPairedEndpoint appends the amp=1 query parameter to a url, keeping the
// existing query and fragment untouched. Unparseable values are returned as is.
func AddPairedEndpoint(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if u.Query().Has("amp") {
		return raw
	}
	if u.RawQuery == "" {
		u.RawQuery = "amp=1"
	} else {
		u.RawQuery += "&amp=1"
	}
	return u.String()
}
