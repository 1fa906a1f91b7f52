package transformer_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/amp-optimizer/internal/dom"
	"github.com/xkilldash9x/amp-optimizer/internal/optimizer"
)

// -- Test Markup --

const (
	doctype             = `<!DOCTYPE html>`
	metaCharset         = `<meta charset="utf-8">`
	metaViewport        = `<meta name="viewport" content="width=device-width,minimum-scale=1,initial-scale=1">`
	scriptAmpRuntime    = `<script async src="https://cdn.ampproject.org/v0.js"></script>`
	scriptAmpStory      = `<script async custom-element="amp-story" src="https://cdn.ampproject.org/v0/amp-story-1.0.js"></script>`
	scriptAmpDynamicCSS = `<script async custom-element="amp-dynamic-css-classes" src="https://cdn.ampproject.org/v0/amp-dynamic-css-classes-0.1.js"></script>`
	linkFavicon         = `<link href="https://amp.dev/favicon.ico" rel="icon">`
	linkCanonical       = `<link href="self.html" rel="canonical">`
	styleAmpRuntime     = `<style amp-runtime></style>`
	styleAmp4Email      = `<style amp4email-boilerplate>body{visibility:hidden}</style>`
	styleAmp4Ads        = `<style amp4ads-boilerplate>body{visibility:hidden}</style>`
	noscriptBoilerplate = `<noscript><style amp-boilerplate>body{-webkit-animation:none;-moz-animation:none;-ms-animation:none;animation:none}</style></noscript>`
	styleBoilerplate    = `<style amp-boilerplate>body{-webkit-animation:-amp-start 8s steps(1,end) 0s 1 normal both;-moz-animation:-amp-start 8s steps(1,end) 0s 1 normal both;-ms-animation:-amp-start 8s steps(1,end) 0s 1 normal both;animation:-amp-start 8s steps(1,end) 0s 1 normal both}@-webkit-keyframes -amp-start{from{visibility:hidden}to{visibility:visible}}@-moz-keyframes -amp-start{from{visibility:hidden}to{visibility:visible}}@-ms-keyframes -amp-start{from{visibility:hidden}to{visibility:visible}}@-o-keyframes -amp-start{from{visibility:hidden}to{visibility:visible}}@keyframes -amp-start{from{visibility:hidden}to{visibility:visible}}</style>`
)

func input(body string, extraHead ...string) string {
	return doctype + `<html ⚡><head>` +
		metaCharset + metaViewport + scriptAmpRuntime + linkFavicon + linkCanonical +
		styleBoilerplate + noscriptBoilerplate + join(extraHead) +
		`</head><body>` + body + `</body></html>`
}

func expectWithoutBoilerplate(body string, extraHead ...string) string {
	return doctype + `<html ⚡ i-amphtml-layout i-amphtml-no-boilerplate><head>` +
		styleAmpRuntime + metaCharset + metaViewport + scriptAmpRuntime + linkFavicon + linkCanonical +
		join(extraHead) +
		`</head><body>` + body + `</body></html>`
}

func expectWithBoilerplate(body string, extraHead ...string) string {
	return doctype + `<html ⚡ i-amphtml-layout><head>` +
		styleAmpRuntime + metaCharset + metaViewport + scriptAmpRuntime + linkFavicon + linkCanonical +
		styleBoilerplate + noscriptBoilerplate + join(extraHead) +
		`</head><body>` + body + `</body></html>`
}

func join(parts []string) string { return strings.Join(parts, "") }

func parse(t testing.TB, markup string) *dom.Document {
	t.Helper()
	doc, err := dom.ParseString(markup)
	require.NoError(t, err)
	return doc
}

// describeErrors reduces collected errors to comparable strings:
// code, reason, offending tag and, where present, the attribute.
func describeErrors(errs *optimizer.ErrorCollection) []string {
	var out []string
	for _, e := range errs.All() {
		switch v := e.(type) {
		case *optimizer.CannotRemoveBoilerplate:
			s := fmt.Sprintf("%s:%s:%s", v.Code(), v.Reason, tagOf(v.Node))
			var attrErr *optimizer.InvalidHTMLAttribute
			if errors.As(v, &attrErr) {
				s += ":" + attrErr.Attribute
			}
			out = append(out, s)
		case *optimizer.InvalidHTMLAttribute:
			out = append(out, fmt.Sprintf("%s:%s:%s", v.Code(), tagOf(v.Node), v.Attribute))
		case *optimizer.CannotPerformServerSideRendering:
			out = append(out, fmt.Sprintf("%s:%s", v.Code(), tagOf(v.Node)))
		case *optimizer.CannotInlineRuntimeCSS:
			out = append(out, string(v.Code()))
		}
	}
	return out
}

func tagOf(n *html.Node) string {
	if n == nil {
		return ""
	}
	return n.Data
}

func assertMarkup(t *testing.T, want, got string) {
	t.Helper()
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("markup mismatch (-want +got):\n%s", diff)
	}
}
