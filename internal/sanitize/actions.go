// internal/sanitize/actions.go
package sanitize

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/xkilldash9x/amp-optimizer/internal/dom"
)

// AddAMPAction registers action for event in the element's `on` attribute.
// The attribute has the form "event:action1,action2;event2:action3"; the
// action is appended to the event's list and is not repeated when present.
func AddAMPAction(el *html.Node, event, action string) {
	existing := strings.TrimSpace(dom.Attr(el, "on"))
	if existing == "" {
		dom.SetAttr(el, "on", event+":"+action)
		return
	}

	handlers := strings.Split(existing, ";")
	for i, h := range handlers {
		name, actions, ok := strings.Cut(h, ":")
		if !ok || strings.TrimSpace(name) != event {
			continue
		}
		for _, a := range strings.Split(actions, ",") {
			if strings.TrimSpace(a) == action {
				return
			}
		}
		handlers[i] = strings.TrimSpace(name) + ":" + strings.TrimSpace(actions) + "," + action
		dom.SetAttr(el, "on", strings.Join(handlers, ";"))
		return
	}
	dom.SetAttr(el, "on", existing+";"+event+":"+action)
}
