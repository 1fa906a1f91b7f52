// internal/transformer/ssr.go
package transformer

import (
	"errors"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/amp-optimizer/internal/dom"
	"github.com/xkilldash9x/amp-optimizer/internal/layout"
	"github.com/xkilldash9x/amp-optimizer/internal/optimizer"
	"github.com/xkilldash9x/amp-optimizer/internal/style"
)

// NameServerSideRendering is the registry name of the SSR transformer.
const NameServerSideRendering = "ServerSideRendering"

// DefaultRenderDelayingExtensions are the extensions whose scripts must run
// before first paint, which rules out removing the boilerplate.
var DefaultRenderDelayingExtensions = []string{"amp-story", "amp-dynamic-css-classes"}

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ServerSideRendering applies AMP layout on the server and, when nothing on
// the page depends on the runtime for first paint, removes the boilerplate
// that hides the page until the runtime has loaded.
type ServerSideRendering struct {
	logger         *zap.Logger
	renderDelaying map[string]bool
}

// SSROption configures a ServerSideRendering transformer.
type SSROption func(*ServerSideRendering)

// WithRenderDelayingExtensions replaces the set of render-delaying extensions.
func WithRenderDelayingExtensions(names ...string) SSROption {
	return func(t *ServerSideRendering) {
		t.renderDelaying = make(map[string]bool, len(names))
		for _, n := range names {
			t.renderDelaying[strings.ToLower(strings.TrimSpace(n))] = true
		}
	}
}

// NewServerSideRendering creates the transformer. A nil logger is replaced by a no-op logger.
func NewServerSideRendering(logger *zap.Logger, opts ...SSROption) *ServerSideRendering {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &ServerSideRendering{logger: logger.Named("ssr")}
	WithRenderDelayingExtensions(DefaultRenderDelayingExtensions...)(t)
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Name implements optimizer.Transformer.
func (t *ServerSideRendering) Name() string { return NameServerSideRendering }

// Transform implements optimizer.Transformer.
func (t *ServerSideRendering) Transform(doc *dom.Document, errs *optimizer.ErrorCollection) {
	root := doc.HTML()
	if dom.HasAttr(root, "i-amphtml-layout") {
		t.logger.Debug("Document is already server-side rendered, skipping.")
		return
	}

	dom.SetAttr(root, "i-amphtml-layout", "")
	ensureRuntimeStyle(doc)

	canRemoveBoilerplate := true
	block := func(err optimizer.Error) {
		canRemoveBoilerplate = false
		errs.Add(err)
	}

	var rules style.Rules
	laidOut := 0

	// Elements is collected up front; inserted sizers are never visited.
	for _, el := range dom.Elements(root) {
		switch {
		case el.Data == "script":
			if t.isRenderDelayingScript(el) {
				block(optimizer.BoilerplateBlockedBy(optimizer.ReasonRenderDelayingScript, el))
			}
			continue
		case el.Data == "amp-audio":
			block(optimizer.BoilerplateBlockedBy(optimizer.ReasonAmpAudio, el))
			continue
		case el.Data == "amp-experiment":
			if isAmpExperimentUsed(el) {
				block(optimizer.BoilerplateBlockedBy(optimizer.ReasonAmpExperiment, el))
			}
		case !strings.HasPrefix(el.Data, "amp-"):
			continue
		}

		plan, err := style.PlanAttributes(el)
		if err != nil {
			block(optimizer.BoilerplateBlockedByAttribute(err, el))
			continue
		}
		res, err := layout.ComputeFor(el, layout.FromNode(el))
		if err != nil {
			var oerr optimizer.Error
			if errors.As(err, &oerr) {
				block(oerr)
			}
			continue
		}

		rules = append(rules, plan.Apply(doc)...)
		layout.Apply(el, res)
		laidOut++
	}

	style.MergeIntoAmpCustom(doc, rules)

	if !canRemoveBoilerplate {
		t.logger.Debug("Boilerplate retained.", zap.Int("laid_out", laidOut), zap.Int("errors", errs.Count()))
		return
	}
	removed := removeBoilerplate(doc)
	dom.SetAttr(root, "i-amphtml-no-boilerplate", "")
	t.logger.Debug("Boilerplate removed.", zap.Int("laid_out", laidOut), zap.Int("removed_nodes", removed))
}

func (t *ServerSideRendering) isRenderDelayingScript(el *html.Node) bool {
	name, ok := dom.LookupAttr(el, "custom-element")
	return ok && dom.HasAncestor(el, "head") && t.renderDelaying[strings.ToLower(name)]
}

// isAmpExperimentUsed reports whether an amp-experiment configures at least
// one experiment. Configuration that cannot be decoded counts as used.
func isAmpExperimentUsed(el *html.Node) bool {
	var script *html.Node
	for c := el.FirstChild; c != nil; c = c.NextSibling {
		if dom.IsElement(c, "script") && strings.EqualFold(dom.Attr(c, "type"), "application/json") {
			script = c
			break
		}
	}
	if script == nil {
		return false
	}

	var config map[string]jsoniter.RawMessage
	if err := json.UnmarshalFromString(strings.TrimSpace(dom.TextContent(script)), &config); err != nil {
		return true
	}
	return len(config) > 0
}

// ensureRuntimeStyle puts an empty <style amp-runtime> at the top of <head>.
func ensureRuntimeStyle(doc *dom.Document) *html.Node {
	if el := findRuntimeStyle(doc); el != nil {
		return el
	}
	el := dom.CreateElement("style", "amp-runtime", "")
	dom.PrependChild(doc.Head(), el)
	return el
}
