// internal/reporting/report_test.go
package reporting_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/amp-optimizer/internal/dom"
	"github.com/xkilldash9x/amp-optimizer/internal/optimizer"
	"github.com/xkilldash9x/amp-optimizer/internal/reporting"
	"github.com/xkilldash9x/amp-optimizer/internal/reporting/sarif"
)

const reportPage = `<!doctype html><html><head>` +
	`<script async custom-element="amp-story" src="https://cdn.ampproject.org/v0/amp-story-1.0.js"></script>` +
	`</head><body>` +
	`<amp-audio src="a.mp3"></amp-audio>` +
	`<amp-img id="hero" sizes="bad{" srcset="a.jpg 100w" width="1" height="1"></amp-img>` +
	`<amp-img layout="bogus"></amp-img>` +
	`</body></html>`

func find(t *testing.T, doc *dom.Document, selector string, index int) *html.Node {
	t.Helper()
	nodes, err := doc.Query(selector)
	require.NoError(t, err)
	require.Greater(t, len(nodes), index)
	return nodes[index]
}

// sampleErrors returns one error of every kind, in document order.
func sampleErrors(t *testing.T) *optimizer.ErrorCollection {
	t.Helper()
	doc, err := dom.ParseString(reportPage)
	require.NoError(t, err)

	hero := find(t, doc, "#hero", 0)
	errs := optimizer.NewErrorCollection()
	errs.Add(optimizer.BoilerplateBlockedBy(optimizer.ReasonRenderDelayingScript, find(t, doc, "script", 0)))
	errs.Add(optimizer.BoilerplateBlockedBy(optimizer.ReasonAmpAudio, find(t, doc, "amp-audio", 0)))
	errs.Add(optimizer.BoilerplateBlockedByAttribute(&optimizer.InvalidHTMLAttribute{Attribute: "sizes", Value: "bad{", Node: hero}, hero))
	errs.Add(&optimizer.CannotPerformServerSideRendering{Reason: "unsupported layout bogus", Node: find(t, doc, "amp-img", 1)})
	errs.Add(&optimizer.CannotInlineRuntimeCSS{Reason: "reading v0.css", Err: os.ErrNotExist})
	return errs
}

func TestBuild(t *testing.T) {
	got := reporting.Build("run-1", "index.html", sampleErrors(t))

	want := &reporting.Report{
		RunID:  "run-1",
		Source: "index.html",
		Status: reporting.StatusBoilerplateKept,
		Count:  5,
		Entries: []reporting.Entry{
			{
				Code:    optimizer.CodeCannotRemoveBoilerplate,
				Reason:  "RenderDelayingScript",
				Message: "the amp-story extension delays rendering, so the boilerplate was kept",
				Tag:     "script",
				XPath:   "/html[1]/head[1]/script[1]",
			},
			{
				Code:    optimizer.CodeCannotRemoveBoilerplate,
				Reason:  "AmpAudio",
				Message: "amp-audio needs the runtime to size itself, so the boilerplate was kept",
				Tag:     "amp-audio",
				XPath:   "/html[1]/body[1]/amp-audio[1]",
			},
			{
				Code:      optimizer.CodeCannotRemoveBoilerplate,
				Reason:    "AttributeException",
				Message:   `the value "bad{" of attribute sizes could not be converted to CSS, so the boilerplate was kept`,
				Tag:       "amp-img",
				XPath:     `//*[@id='hero']`,
				Attribute: "sizes",
			},
			{
				Code:    optimizer.CodeCannotPerformServerSideRendering,
				Message: "the layout could not be applied on the server: unsupported layout bogus",
				Tag:     "amp-img",
				XPath:   "/html[1]/body[1]/amp-img[2]",
			},
			{
				Code:    optimizer.CodeCannotInlineRuntimeCSS,
				Message: "the runtime CSS was not inlined: reading v0.css",
			},
		},
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Build() mismatch (-want +got):\n%s", diff)
	}
}

func TestBuild_Status(t *testing.T) {
	assert.Equal(t, reporting.StatusComplete, reporting.Build("r", "a.html", nil).Status)
	assert.Equal(t, reporting.StatusComplete, reporting.Build("r", "a.html", optimizer.NewErrorCollection()).Status)

	runtimeOnly := optimizer.NewErrorCollection()
	runtimeOnly.Add(&optimizer.CannotInlineRuntimeCSS{Reason: "reading"})
	assert.Equal(t, reporting.StatusDegraded, reporting.Build("r", "a.html", runtimeOnly).Status)

	empty := reporting.Build("r", "a.html", nil)
	assert.NotNil(t, empty.Entries, "entries encode as [] rather than null")
}

func TestDescribe_AttributeExceptionWithPlainCause(t *testing.T) {
	err := optimizer.BoilerplateBlockedByAttribute(errors.New("media query is empty"), nil)
	assert.Equal(t, "media query is empty, so the boilerplate was kept", reporting.Describe(err))
}

func TestNewRunID(t *testing.T) {
	a, b := reporting.NewRunID(), reporting.NewRunID()
	assert.NotEqual(t, a, b)
	_, err := uuid.Parse(a)
	assert.NoError(t, err)
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, reporting.WriteJSON(&buf, reporting.Build("run-1", "a.html", sampleErrors(t))))

	var decoded reporting.Report
	require.NoError(t, jsoniter.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, 5, decoded.Count)
	assert.Equal(t, "sizes", decoded.Entries[2].Attribute)
	assert.Contains(t, buf.String(), `"status": "boilerplate-kept"`)
}

// -- Reporters --

// captureCloser records output and whether it was closed.
type captureCloser struct {
	bytes.Buffer
	closed   bool
	closeErr error
}

func (c *captureCloser) Close() error {
	c.closed = true
	return c.closeErr
}

func TestJSONReporter(t *testing.T) {
	out := &captureCloser{}
	r := reporting.NewJSONReporter(out)
	require.NoError(t, r.Write(reporting.Build("run-1", "a.html", nil)))
	require.NoError(t, r.Write(reporting.Build("run-1", "b.html", sampleErrors(t))))
	require.NoError(t, r.Close())
	assert.True(t, out.closed)

	var decoded struct {
		Reports []reporting.Report `json:"reports"`
	}
	require.NoError(t, jsoniter.Unmarshal(out.Bytes(), &decoded))
	require.Len(t, decoded.Reports, 2)
	assert.Equal(t, "a.html", decoded.Reports[0].Source)
	assert.Equal(t, reporting.StatusBoilerplateKept, decoded.Reports[1].Status)
}

func TestJSONReporter_CloseError(t *testing.T) {
	out := &captureCloser{closeErr: errors.New("disk full")}
	r := reporting.NewJSONReporter(out)
	err := r.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to close output writer")
}

func TestSARIFReporter(t *testing.T) {
	out := &captureCloser{}
	r := reporting.NewSARIFReporter(out, "v1.2.3-test")
	require.NoError(t, r.Write(reporting.Build("run-1", "a.html", sampleErrors(t))))
	require.NoError(t, r.Write(reporting.Build("run-1", "b.html", nil)))
	require.NoError(t, r.Close())

	var log sarif.Log
	require.NoError(t, jsoniter.Unmarshal(out.Bytes(), &log))
	assert.Equal(t, reporting.SARIFVersion, log.Version)
	require.Len(t, log.Runs, 1)
	run := log.Runs[0]

	assert.Equal(t, "ampopt", run.Tool.Driver.Name)
	assert.Equal(t, "v1.2.3-test", *run.Tool.Driver.Version)
	assert.Equal(t, "run-1", *run.AutomationDetails.ID)
	assert.Len(t, run.Artifacts, 2)

	// One rule per kind of error, registered in order of first use.
	var ruleIDs []string
	for _, r := range run.Tool.Driver.Rules {
		ruleIDs = append(ruleIDs, r.ID)
	}
	assert.Equal(t, []string{"AMP-CannotRemoveBoilerplate", "AMP-CannotPerformServerSideRendering", "AMP-CannotInlineRuntimeCss"}, ruleIDs)

	require.Len(t, run.Results, 5)
	hero := run.Results[2]
	assert.Equal(t, sarif.LevelWarning, hero.Level)
	require.Len(t, hero.Locations, 1)
	assert.Equal(t, "a.html", *hero.Locations[0].PhysicalLocation.ArtifactLocation.URI)
	require.Len(t, hero.Locations[0].LogicalLocations, 1)
	assert.Equal(t, `//*[@id='hero']`, *hero.Locations[0].LogicalLocations[0].FullyQualifiedName)

	runtime := run.Results[4]
	assert.Equal(t, sarif.LevelNote, runtime.Level)
	assert.Empty(t, runtime.Locations[0].LogicalLocations)
}

func TestNew(t *testing.T) {
	t.Run("unsupported format", func(t *testing.T) {
		r, err := reporting.New("xml", "stdout", "v0")
		assert.Nil(t, r)
		assert.EqualError(t, err, "unsupported output format: xml")
	})

	t.Run("file output", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "report.sarif")
		r, err := reporting.New("sarif", path, "v0")
		require.NoError(t, err)
		require.NoError(t, r.Close())

		content, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(content), `"version": "2.1.0"`)
	})

	t.Run("unwritable path", func(t *testing.T) {
		r, err := reporting.New("json", filepath.Join(t.TempDir(), "missing", "report.json"), "v0")
		assert.Nil(t, r)
		assert.ErrorContains(t, err, "failed to create output file")
	})
}
