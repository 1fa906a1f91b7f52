// internal/transformer/boilerplate.go
package transformer

import (
	"github.com/xkilldash9x/amp-optimizer/internal/dom"
)

const boilerplateSelector = "style[amp-boilerplate], style[amp4ads-boilerplate], style[amp4email-boilerplate]"

// removeBoilerplate deletes every boilerplate style of the document. A style
// wrapped in <noscript> is removed together with its wrapper. It returns the
// number of removed nodes.
func removeBoilerplate(doc *dom.Document) int {
	nodes, err := dom.QueryFrom(doc.Head(), boilerplateSelector)
	if err != nil {
		// The selector is a constant.
		panic(err)
	}

	removed := 0
	for _, n := range nodes {
		target := n
		if p := n.Parent; dom.IsElement(p, "noscript") {
			target = p
		}
		if target.Parent == nil {
			continue
		}
		dom.Detach(target)
		removed++
	}
	return removed
}
