package transformer_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/amp-optimizer/internal/optimizer"
	"github.com/xkilldash9x/amp-optimizer/internal/transformer"
)

const (
	srcset     = `https://acme.org/image1.png 320w, https://acme.org/image2.png 640w, https://acme.org/image3.png 1280w`
	responsive = `class="i-amphtml-layout-responsive i-amphtml-layout-size-defined" i-amphtml-layout="responsive"`
	sizer75    = `<i-amphtml-sizer style="display:block;padding-top:75.0000%;"></i-amphtml-sizer>`
	sizer80    = `<i-amphtml-sizer style="display:block;padding-top:80.0000%;"></i-amphtml-sizer>`
	fixedWide  = `class="i-amphtml-layout-fixed i-amphtml-layout-size-defined" style="width:466px;height:355px;" i-amphtml-layout="fixed"`
	intrinsic  = `class="i-amphtml-layout-intrinsic i-amphtml-layout-size-defined" i-amphtml-layout="intrinsic"><i-amphtml-sizer class="i-amphtml-sizer"><img alt aria-hidden="true" class="i-amphtml-intrinsic-sizer" role="presentation" src="data:image/svg+xml;charset=utf-8,<svg height=&quot;100&quot; width=&quot;200&quot; xmlns=&quot;http://www.w3.org/2000/svg&quot; version=&quot;1.1&quot;/>"></i-amphtml-sizer>`
	blogImage  = `https://blog.amp.dev/wp-content/uploads/2020/03/AMP_camp_Blog.png`
)

type ssrCase struct {
	name       string
	source     string
	expected   string
	wantErrors []string
}

func ssrCases() []ssrCase {
	return []ssrCase{
		{
			name:     "modifies document only once",
			source:   expectWithBoilerplate(`<amp-img layout="container"></amp-img>`),
			expected: expectWithBoilerplate(`<amp-img layout="container"></amp-img>`),
		},
		{
			name:     "boilerplate removed and preserves noscript in body",
			source:   input(`<noscript><img src="lemur.png"></noscript>`),
			expected: expectWithoutBoilerplate(`<noscript><img src="lemur.png"></noscript>`),
		},
		{
			name:     "boilerplate removed and no changes within template tag",
			source:   input(`<template><amp-img height="42" layout="responsive" width="42"></amp-img></template>`),
			expected: expectWithoutBoilerplate(`<template><amp-img height="42" layout="responsive" width="42"></amp-img></template>`),
		},
		{
			name:     "boilerplate removed and layout applied",
			source:   input(`<amp-img class="" layout="container"></amp-img>`),
			expected: expectWithoutBoilerplate(`<amp-img class="i-amphtml-layout-container" layout="container" i-amphtml-layout="container"></amp-img>`),
		},
		{
			name: "amp4email boilerplate removed and layout applied",
			source: doctype + `<html ⚡4email><head>` + metaCharset + scriptAmpRuntime + styleAmp4Email +
				`</head><body><amp-img layout="container"></amp-img></body></html>`,
			expected: doctype + `<html ⚡4email i-amphtml-layout i-amphtml-no-boilerplate><head>` + styleAmpRuntime + metaCharset + scriptAmpRuntime +
				`</head><body><amp-img layout="container" class="i-amphtml-layout-container" i-amphtml-layout="container"></amp-img></body></html>`,
		},
		{
			name: "amp4ads boilerplate removed and layout applied",
			source: doctype + `<html ⚡4ads><head>` + metaCharset + metaViewport + scriptAmpRuntime + styleAmp4Ads +
				`</head><body><amp-img layout="container"></amp-img></body></html>`,
			expected: doctype + `<html ⚡4ads i-amphtml-layout i-amphtml-no-boilerplate><head>` + styleAmpRuntime + metaCharset + metaViewport + scriptAmpRuntime +
				`</head><body><amp-img layout="container" class="i-amphtml-layout-container" i-amphtml-layout="container"></amp-img></body></html>`,
		},
		{
			name:     "boilerplate removed despite sizes on a non-amp element",
			source:   input(`<link rel="shortcut icon" type="a" href="b" sizes="c">`),
			expected: expectWithoutBoilerplate(`<link rel="shortcut icon" type="a" href="b" sizes="c">`),
		},
		{
			name:     "boilerplate removed when amp-experiment is present but empty",
			source:   input(`<amp-experiment><script type="application/json">{ }</script></amp-experiment>`),
			expected: expectWithoutBoilerplate(`<amp-experiment class="i-amphtml-layout-container" i-amphtml-layout="container"><script type="application/json">{ }</script></amp-experiment>`),
		},
		{
			name:       "amp-audio",
			source:     input(`<amp-audio></amp-audio>`),
			expected:   expectWithBoilerplate(`<amp-audio></amp-audio>`),
			wantErrors: []string{"CannotRemoveBoilerplate:AmpAudio:amp-audio"},
		},
		{
			name:       "amp-experiment is non-empty",
			source:     input(`<amp-experiment><script type="application/json">{ "exp": { "variants": { "a": 25, "b": 25 } } }</script></amp-experiment>`),
			expected:   expectWithBoilerplate(`<amp-experiment class="i-amphtml-layout-container" i-amphtml-layout="container"><script type="application/json">{ "exp": { "variants": { "a": 25, "b": 25 } } }</script></amp-experiment>`),
			wantErrors: []string{"CannotRemoveBoilerplate:AmpExperiment:amp-experiment"},
		},
		{
			name:       "amp-experiment with malformed configuration",
			source:     input(`<amp-experiment><script type="application/json">{ "exp": </script></amp-experiment>`),
			expected:   expectWithBoilerplate(`<amp-experiment class="i-amphtml-layout-container" i-amphtml-layout="container"><script type="application/json">{ "exp": </script></amp-experiment>`),
			wantErrors: []string{"CannotRemoveBoilerplate:AmpExperiment:amp-experiment"},
		},
		{
			name:       "amp-story",
			source:     input(``, scriptAmpStory),
			expected:   expectWithBoilerplate(``, scriptAmpStory),
			wantErrors: []string{"CannotRemoveBoilerplate:RenderDelayingScript:script"},
		},
		{
			name:       "amp-dynamic-css-classes",
			source:     input(``, scriptAmpDynamicCSS),
			expected:   expectWithBoilerplate(``, scriptAmpDynamicCSS),
			wantErrors: []string{"CannotRemoveBoilerplate:RenderDelayingScript:script"},
		},
		{
			name:     "every offending construct is recorded",
			source:   input(`<amp-audio></amp-audio><template><amp-audio></amp-audio></template><amp-audio></amp-audio>`, scriptAmpStory),
			expected: expectWithBoilerplate(`<amp-audio></amp-audio><template><amp-audio></amp-audio></template><amp-audio></amp-audio>`, scriptAmpStory),
			wantErrors: []string{
				"CannotRemoveBoilerplate:RenderDelayingScript:script",
				"CannotRemoveBoilerplate:AmpAudio:amp-audio",
				"CannotRemoveBoilerplate:AmpAudio:amp-audio",
			},
		},
		{
			name:   "sizes attribute without amp-custom",
			source: input(`<amp-img height="300" layout="responsive" srcset="` + srcset + `" sizes="(min-width: 320px) 320px, 100vw" src="https://acme.org/image1.png" width="400"></amp-img>`),
			expected: expectWithoutBoilerplate(
				`<amp-img height="300" layout="responsive" srcset="`+srcset+`" src="https://acme.org/image1.png" width="400" id="i-amp-id" `+responsive+`>`+sizer75+`</amp-img>`,
				`<style amp-custom>#i-amp-id{width:100vw}@media (min-width: 320px){#i-amp-id{width:320px}}</style>`,
			),
		},
		{
			name: "sizes attribute with amp-custom",
			source: input(
				`<amp-img height="300" layout="responsive" srcset="`+srcset+`" sizes="(min-width: 320px) 320px, 100vw" src="https://acme.org/image1.png" width="400"></amp-img>`,
				`<style amp-custom>body h1{color:red;}</style>`,
			),
			expected: expectWithoutBoilerplate(
				`<amp-img height="300" layout="responsive" srcset="`+srcset+`" src="https://acme.org/image1.png" width="400" id="i-amp-id" `+responsive+`>`+sizer75+`</amp-img>`,
				`<style amp-custom>body h1{color:red;}#i-amp-id{width:100vw}@media (min-width: 320px){#i-amp-id{width:320px}}</style>`,
			),
		},
		{
			name:     "sizes attribute without srcset",
			source:   input(`<amp-img height="300" layout="responsive" sizes="(min-width: 320px) 320px, 100vw" src="https://acme.org/image1.png" width="400"></amp-img>`),
			expected: expectWithoutBoilerplate(`<amp-img height="300" layout="responsive" src="https://acme.org/image1.png" width="400" ` + responsive + `>` + sizer75 + `</amp-img>`),
		},
		{
			name:     "sizes attribute empty srcset",
			source:   input(`<amp-img height="300" layout="responsive" srcset="" sizes="(min-width: 320px) 320px, 100vw" src="https://acme.org/image1.png" width="400"></amp-img>`),
			expected: expectWithoutBoilerplate(`<amp-img height="300" layout="responsive" srcset src="https://acme.org/image1.png" width="400" ` + responsive + `>` + sizer75 + `</amp-img>`),
		},
		{
			name:     "sizes attribute with disable-inline-width",
			source:   input(`<amp-img height="300" layout="responsive" srcset="` + srcset + `" sizes="(min-width: 320px) 320px, 100vw" src="https://acme.org/image1.png" width="400" disable-inline-width></amp-img>`),
			expected: expectWithoutBoilerplate(`<amp-img height="300" layout="responsive" srcset="` + srcset + `" sizes="(min-width: 320px) 320px, 100vw" src="https://acme.org/image1.png" width="400" disable-inline-width ` + responsive + `>` + sizer75 + `</amp-img>`),
		},
		{
			name:       "bad sizes attribute",
			source:     input(`<amp-img height="300" layout="responsive" srcset="` + srcset + `" sizes=",,," src="https://acme.org/image1.png" width="400"></amp-img>`),
			expected:   expectWithBoilerplate(`<amp-img height="300" layout="responsive" srcset="` + srcset + `" sizes=",,," src="https://acme.org/image1.png" width="400"></amp-img>`),
			wantErrors: []string{"CannotRemoveBoilerplate:AttributeException:amp-img:sizes"},
		},
		{
			name: "heights attribute without amp-custom",
			source: input(`<amp-img height="256" heights="(min-width: 500px) 200px, 80%" layout="responsive" width="320"></amp-img>`),
			expected: expectWithoutBoilerplate(
				`<amp-img height="256" layout="responsive" width="320" id="i-amp-id" `+responsive+`>`+sizer80+`</amp-img>`,
				`<style amp-custom>#i-amp-id:first-child{height:80%}@media (min-width: 500px){#i-amp-id:first-child{height:200px}}</style>`,
			),
		},
		{
			name: "heights attribute with amp-custom",
			source: input(
				`<amp-img height="256" heights="(min-width: 500px) 200px, 80%" layout="responsive" width="320"></amp-img>`,
				`<style amp-custom>body h1{color:red;}</style>`,
			),
			expected: expectWithoutBoilerplate(
				`<amp-img height="256" layout="responsive" width="320" id="i-amp-id" `+responsive+`>`+sizer80+`</amp-img>`,
				`<style amp-custom>body h1{color:red;}#i-amp-id:first-child{height:80%}@media (min-width: 500px){#i-amp-id:first-child{height:200px}}</style>`,
			),
		},
		{
			name:       "bad heights attribute",
			source:     input(`<amp-img height="256" heights=",,," layout="responsive" width="320"></amp-img>`),
			expected:   expectWithBoilerplate(`<amp-img height="256" heights=",,," layout="responsive" width="320"></amp-img>`),
			wantErrors: []string{"CannotRemoveBoilerplate:AttributeException:amp-img:heights"},
		},
		{
			name:     "decimal dimensions intrinsic closer to floor",
			source:   input(`<amp-img src="` + blogImage + `" alt="" height="100.2" width="200.4" layout="intrinsic"></amp-img>`),
			expected: expectWithoutBoilerplate(`<amp-img src="` + blogImage + `" alt height="100.2" width="200.4" layout="intrinsic" ` + intrinsic + `</amp-img>`),
		},
		{
			name:     "decimal dimensions intrinsic closer to ceiling",
			source:   input(`<amp-img src="` + blogImage + `" alt="" height="100.6" width="200.8" layout="intrinsic"></amp-img>`),
			expected: expectWithoutBoilerplate(`<amp-img src="` + blogImage + `" alt height="100.6" width="200.8" layout="intrinsic" ` + intrinsic + `</amp-img>`),
		},
		{
			name: "media attribute without amp-custom",
			source: input(`<amp-img height="355" layout="fixed" media="(min-width: 650px)" src="wide.jpg" width="466"></amp-img>`),
			expected: expectWithoutBoilerplate(
				`<amp-img height="355" layout="fixed" src="wide.jpg" width="466" id="i-amp-id" `+fixedWide+`></amp-img>`,
				`<style amp-custom>@media not all and (min-width: 650px){#i-amp-id{display:none}}</style>`,
			),
		},
		{
			name: "media attribute with amp-custom",
			source: input(
				`<amp-img height="355" layout="fixed" media="(min-width: 650px)" src="wide.jpg" width="466"></amp-img>`,
				`<style amp-custom>body h1{color:red;}</style>`,
			),
			expected: expectWithoutBoilerplate(
				`<amp-img height="355" layout="fixed" src="wide.jpg" width="466" id="i-amp-id" `+fixedWide+`></amp-img>`,
				`<style amp-custom>body h1{color:red;}@media not all and (min-width: 650px){#i-amp-id{display:none}}</style>`,
			),
		},
		{
			name: "media attribute with type condition",
			source: input(`<amp-img height="355" layout="fixed" media="screen and (min-width: 650px)" src="wide.jpg" width="466"></amp-img>`),
			expected: expectWithoutBoilerplate(
				`<amp-img height="355" layout="fixed" src="wide.jpg" width="466" id="i-amp-id" `+fixedWide+`></amp-img>`,
				`<style amp-custom>@media not screen and (min-width: 650px){#i-amp-id{display:none}}</style>`,
			),
		},
		{
			name: "ids are unique within one document",
			source: input(`<amp-img height="1" layout="fixed" media="print" width="1"></amp-img><amp-img height="1" layout="fixed" media="screen" width="1"></amp-img>`),
			expected: expectWithoutBoilerplate(
				`<amp-img height="1" layout="fixed" width="1" id="i-amp-id" class="i-amphtml-layout-fixed i-amphtml-layout-size-defined" style="width:1px;height:1px;" i-amphtml-layout="fixed"></amp-img>`+
					`<amp-img height="1" layout="fixed" width="1" id="i-amp-id-2" class="i-amphtml-layout-fixed i-amphtml-layout-size-defined" style="width:1px;height:1px;" i-amphtml-layout="fixed"></amp-img>`,
				`<style amp-custom>@media not print{#i-amp-id{display:none}}@media not screen{#i-amp-id-2{display:none}}</style>`,
			),
		},
		{
			name:   "authored id closing the style element is escaped",
			source: input(`<amp-img id="a</style><script>alert(1)</script>" height="1" layout="fixed" media="print" width="1"></amp-img>`),
			expected: expectWithoutBoilerplate(
				`<amp-img id="a</style><script>alert(1)</script>" height="1" layout="fixed" width="1" class="i-amphtml-layout-fixed i-amphtml-layout-size-defined" style="width:1px;height:1px;" i-amphtml-layout="fixed"></amp-img>`,
				`<style amp-custom>@media not print{#a\3c \/style\3e \3c script\3e alert\(1\)\3c \/script\3e {display:none}}</style>`,
			),
		},
		{
			name:   "authored id with css syntax is escaped",
			source: input(`<amp-img id="x}body{display:none" height="256" heights="(min-width: 500px) 200px, 80%" layout="responsive" width="320"></amp-img>`),
			expected: expectWithoutBoilerplate(
				`<amp-img id="x}body{display:none" height="256" layout="responsive" width="320" `+responsive+`>`+sizer80+`</amp-img>`,
				`<style amp-custom>#x\}body\{display\:none:first-child{height:80%}@media (min-width: 500px){#x\}body\{display\:none:first-child{height:200px}}</style>`,
			),
		},
		{
			name:   "authored id starting with a digit is escaped",
			source: input(`<amp-img id="1abc" height="300" layout="responsive" srcset="` + srcset + `" sizes="(min-width: 320px) 320px, 100vw" src="https://acme.org/image1.png" width="400"></amp-img>`),
			expected: expectWithoutBoilerplate(
				`<amp-img id="1abc" height="300" layout="responsive" srcset="`+srcset+`" src="https://acme.org/image1.png" width="400" `+responsive+`>`+sizer75+`</amp-img>`,
				`<style amp-custom>#\31 abc{width:100vw}@media (min-width: 320px){#\31 abc{width:320px}}</style>`,
			),
		},
		{
			name:       "media query list keeps boilerplate",
			source:     input(`<amp-img height="1" layout="fixed" media="screen, print" width="1"></amp-img>`),
			expected:   expectWithBoilerplate(`<amp-img height="1" layout="fixed" media="screen, print" width="1"></amp-img>`),
			wantErrors: []string{"CannotRemoveBoilerplate:AttributeException:amp-img:media"},
		},
		{
			name:       "unsupported layout keeps boilerplate",
			source:     input(`<amp-img layout="sideways" width="1" height="1"></amp-img>`),
			expected:   expectWithBoilerplate(`<amp-img layout="sideways" width="1" height="1"></amp-img>`),
			wantErrors: []string{"CannotPerformServerSideRendering:amp-img"},
		},
		{
			name:       "malformed width keeps boilerplate and other elements are still laid out",
			source:     input(`<amp-img layout="fixed" width="wide" height="1" media="print"></amp-img><amp-img layout="fill"></amp-img>`),
			expected:   expectWithBoilerplate(`<amp-img layout="fixed" width="wide" height="1" media="print"></amp-img><amp-img layout="fill" class="i-amphtml-layout-fill i-amphtml-layout-size-defined" i-amphtml-layout="fill"></amp-img>`),
			wantErrors: []string{"InvalidHtmlAttribute:amp-img:width"},
		},
		{
			name:     "nodisplay and authored style",
			source:   input(`<amp-analytics layout="nodisplay"></amp-analytics><amp-pixel style="color:red"></amp-pixel>`),
			expected: expectWithoutBoilerplate(`<amp-analytics layout="nodisplay" class="i-amphtml-layout-nodisplay" hidden="hidden" i-amphtml-layout="nodisplay"></amp-analytics><amp-pixel style="width:1px;height:1px;color:red" class="i-amphtml-layout-fixed i-amphtml-layout-size-defined" i-amphtml-layout="fixed"></amp-pixel>`),
		},
	}
}

func TestServerSideRendering_Transform(t *testing.T) {
	for _, tt := range ssrCases() {
		t.Run(tt.name, func(t *testing.T) {
			doc := parse(t, tt.source)
			errs := optimizer.NewErrorCollection()

			transformer.NewServerSideRendering(zaptest.NewLogger(t)).Transform(doc, errs)

			assertMarkup(t, tt.expected, doc.String())
			if diff := cmp.Diff(tt.wantErrors, describeErrors(errs)); diff != "" {
				t.Errorf("errors mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestServerSideRendering_Idempotent(t *testing.T) {
	for _, tt := range ssrCases() {
		t.Run(tt.name, func(t *testing.T) {
			ssr := transformer.NewServerSideRendering(zaptest.NewLogger(t))

			doc := parse(t, tt.source)
			ssr.Transform(doc, optimizer.NewErrorCollection())
			once := doc.String()

			// Again on the same tree.
			errs := optimizer.NewErrorCollection()
			ssr.Transform(doc, errs)
			assert.Equal(t, once, doc.String())
			assert.Zero(t, errs.Count())

			// And on the serialized output.
			reparsed := parse(t, once)
			ssr.Transform(reparsed, errs)
			assert.Equal(t, once, reparsed.String())
			assert.Zero(t, errs.Count())
		})
	}
}

func TestServerSideRendering_AttributeErrorUnwrapsToInvalidAttribute(t *testing.T) {
	doc := parse(t, input(`<amp-img height="256" heights=",,," layout="responsive" width="320"></amp-img>`))
	errs := optimizer.NewErrorCollection()

	transformer.NewServerSideRendering(nil).Transform(doc, errs)

	require.Equal(t, 1, errs.Count())
	var attrErr *optimizer.InvalidHTMLAttribute
	require.ErrorAs(t, errs.All()[0], &attrErr)
	assert.Equal(t, "heights", attrErr.Attribute)

	img, err := doc.QueryOne("amp-img")
	require.NoError(t, err)
	assert.Same(t, img, attrErr.Node)
}

func TestServerSideRendering_ConfigurableRenderDelayingExtensions(t *testing.T) {
	scriptBind := `<script async custom-element="amp-bind" src="https://cdn.ampproject.org/v0/amp-bind-0.1.js"></script>`

	t.Run("custom set", func(t *testing.T) {
		doc := parse(t, input(``, scriptBind, scriptAmpStory))
		errs := optimizer.NewErrorCollection()
		transformer.NewServerSideRendering(nil, transformer.WithRenderDelayingExtensions("AMP-BIND")).Transform(doc, errs)

		assertMarkup(t, expectWithBoilerplate(``, scriptBind, scriptAmpStory), doc.String())
		assert.Equal(t, []string{"CannotRemoveBoilerplate:RenderDelayingScript:script"}, describeErrors(errs))
		assert.Contains(t, errs.All()[0].Error(), "amp-bind")
	})

	t.Run("empty set", func(t *testing.T) {
		doc := parse(t, input(``, scriptAmpStory))
		errs := optimizer.NewErrorCollection()
		transformer.NewServerSideRendering(nil, transformer.WithRenderDelayingExtensions()).Transform(doc, errs)

		assertMarkup(t, expectWithoutBoilerplate(``, scriptAmpStory), doc.String())
		assert.Zero(t, errs.Count())
	})
}

func TestServerSideRendering_ExistingRuntimeStyleIsReused(t *testing.T) {
	doc := parse(t, input(``, styleAmpRuntime))
	transformer.NewServerSideRendering(nil).Transform(doc, optimizer.NewErrorCollection())

	styles, err := doc.Query("style[amp-runtime]")
	require.NoError(t, err)
	assert.Len(t, styles, 1)
	assert.Equal(t, transformer.NameServerSideRendering, transformer.NewServerSideRendering(nil).Name())
}
