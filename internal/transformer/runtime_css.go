// internal/transformer/runtime_css.go
package transformer

import (
	_ "embed"
	"os"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/amp-optimizer/internal/dom"
	"github.com/xkilldash9x/amp-optimizer/internal/optimizer"
)

// NameAmpRuntimeCSS is the registry name of the runtime css transformer.
const NameAmpRuntimeCSS = "AmpRuntimeCss"

// BuiltinRuntimeVersion identifies the stylesheet bundled with the binary.
const BuiltinRuntimeVersion = "builtin"

//go:embed runtime.css
var builtinRuntimeCSS string

// AmpRuntimeCSS fills the <style amp-runtime> placeholder left by server-side
// rendering, so the page can be painted before the runtime has loaded.
type AmpRuntimeCSS struct {
	logger  *zap.Logger
	path    string
	version string
}

// NewAmpRuntimeCSS creates the transformer. With an empty path the bundled
// stylesheet is used.
func NewAmpRuntimeCSS(logger *zap.Logger, path, version string) *AmpRuntimeCSS {
	if logger == nil {
		logger = zap.NewNop()
	}
	if version == "" {
		version = BuiltinRuntimeVersion
	}
	return &AmpRuntimeCSS{
		logger:  logger.Named("runtime-css"),
		path:    path,
		version: version,
	}
}

// Name implements optimizer.Transformer.
func (t *AmpRuntimeCSS) Name() string { return NameAmpRuntimeCSS }

// Transform implements optimizer.Transformer.
func (t *AmpRuntimeCSS) Transform(doc *dom.Document, errs *optimizer.ErrorCollection) {
	el := findRuntimeStyle(doc)
	if el == nil || dom.HasAttr(el, "i-amphtml-version") {
		return
	}

	css := builtinRuntimeCSS
	if t.path != "" {
		raw, err := os.ReadFile(t.path)
		if err != nil {
			errs.Add(&optimizer.CannotInlineRuntimeCSS{Reason: "reading " + t.path, Err: err})
			t.logger.Warn("Could not read runtime css.", zap.String("path", t.path), zap.Error(err))
			return
		}
		css = string(raw)
	}

	dom.SetTextContent(el, css)
	dom.SetAttr(el, "i-amphtml-version", t.version)
	t.logger.Debug("Inlined runtime css.", zap.Int("bytes", len(css)), zap.String("version", t.version))
}

func findRuntimeStyle(doc *dom.Document) *html.Node {
	for c := doc.Head().FirstChild; c != nil; c = c.NextSibling {
		if dom.IsElement(c, "style") && dom.HasAttr(c, "amp-runtime") {
			return c
		}
	}
	return nil
}
