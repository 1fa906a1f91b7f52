// internal/reporting/report.go
package reporting

import (
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/amp-optimizer/internal/dom"
	"github.com/xkilldash9x/amp-optimizer/internal/optimizer"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Status summarizes what an optimization run achieved.
type Status string

const (
	// StatusComplete means every transformer succeeded everywhere.
	StatusComplete Status = "complete"
	// StatusBoilerplateKept means the page was rendered but still depends on
	// the runtime for first paint.
	StatusBoilerplateKept Status = "boilerplate-kept"
	// StatusDegraded means the boilerplate is gone but some optional step failed.
	StatusDegraded Status = "degraded"
)

// Entry describes one recorded error.
type Entry struct {
	Code      optimizer.Code `json:"code"`
	Reason    string         `json:"reason,omitempty"`
	Message   string         `json:"message"`
	Tag       string         `json:"tag,omitempty"`
	XPath     string         `json:"xpath,omitempty"`
	Attribute string         `json:"attribute,omitempty"`
}

// Report is the diagnostics of a single document.
type Report struct {
	RunID   string  `json:"run_id"`
	Source  string  `json:"source"`
	Status  Status  `json:"status"`
	Count   int     `json:"count"`
	Entries []Entry `json:"entries"`
}

// NewRunID returns a fresh identifier for a batch of reports.
func NewRunID() string {
	return uuid.NewString()
}

// Build converts the errors of one run into a Report.
func Build(runID, source string, errs *optimizer.ErrorCollection) *Report {
	r := &Report{RunID: runID, Source: source, Entries: []Entry{}}
	if errs == nil {
		r.Status = StatusComplete
		return r
	}
	for _, err := range errs.All() {
		r.Entries = append(r.Entries, entryFor(err))
	}
	r.Count = len(r.Entries)
	r.Status = statusOf(errs)
	return r
}

func statusOf(errs *optimizer.ErrorCollection) Status {
	switch {
	case errs.Count() == 0:
		return StatusComplete
	case errs.Has(optimizer.CodeCannotRemoveBoilerplate),
		errs.Has(optimizer.CodeInvalidHTMLAttribute),
		errs.Has(optimizer.CodeCannotPerformServerSideRendering):
		return StatusBoilerplateKept
	default:
		return StatusDegraded
	}
}

func entryFor(err optimizer.Error) Entry {
	e := Entry{Code: err.Code(), Message: Describe(err)}
	var node *html.Node

	switch t := err.(type) {
	case *optimizer.CannotRemoveBoilerplate:
		e.Reason = string(t.Reason)
		node = t.Node
		var attrErr *optimizer.InvalidHTMLAttribute
		if errors.As(t.Cause, &attrErr) {
			e.Attribute = attrErr.Attribute
		}
	case *optimizer.InvalidHTMLAttribute:
		e.Attribute = t.Attribute
		node = t.Node
	case *optimizer.CannotPerformServerSideRendering:
		node = t.Node
	case *optimizer.CannotInlineRuntimeCSS:
	}

	if node != nil {
		e.Tag = node.Data
		e.XPath = dom.UniqueXPath(node)
	}
	return e
}

// Describe returns a message for err written for the page author.
func Describe(err optimizer.Error) string {
	switch t := err.(type) {
	case *optimizer.CannotRemoveBoilerplate:
		switch t.Reason {
		case optimizer.ReasonAmpAudio:
			return "amp-audio needs the runtime to size itself, so the boilerplate was kept"
		case optimizer.ReasonAmpExperiment:
			return "amp-experiment must run before first paint, so the boilerplate was kept"
		case optimizer.ReasonRenderDelayingScript:
			return fmt.Sprintf("the %s extension delays rendering, so the boilerplate was kept", dom.Attr(t.Node, "custom-element"))
		case optimizer.ReasonAttributeException:
			var inner optimizer.Error
			if errors.As(t.Cause, &inner) {
				return Describe(inner) + ", so the boilerplate was kept"
			}
			if t.Cause != nil {
				return t.Cause.Error() + ", so the boilerplate was kept"
			}
		}
		return t.Error()
	case *optimizer.InvalidHTMLAttribute:
		return fmt.Sprintf("the value %q of attribute %s could not be converted to CSS", t.Value, t.Attribute)
	case *optimizer.CannotPerformServerSideRendering:
		return "the layout could not be applied on the server: " + t.Reason
	case *optimizer.CannotInlineRuntimeCSS:
		return "the runtime CSS was not inlined: " + t.Reason
	}
	return err.Error()
}

// WriteJSON writes a single report as indented JSON.
func WriteJSON(w io.Writer, r *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return nil
}
