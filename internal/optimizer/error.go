// internal/optimizer/error.go
package optimizer

import (
	"fmt"

	"golang.org/x/net/html"
)

// Code identifies the kind of an optimizer error.
type Code string

const (
	CodeCannotRemoveBoilerplate          Code = "CannotRemoveBoilerplate"
	CodeInvalidHTMLAttribute             Code = "InvalidHtmlAttribute"
	CodeCannotPerformServerSideRendering Code = "CannotPerformServerSideRendering"
	CodeCannotInlineRuntimeCSS           Code = "CannotInlineRuntimeCss"
)

// Error is a recoverable problem found while transforming a document. The set
// of implementations is closed: every kind is one of the concrete types in
// this file, so consumers can match exhaustively with a type switch.
type Error interface {
	error
	Code() Code
	optimizerError()
}

// BoilerplateReason explains why the AMP boilerplate had to be kept.
type BoilerplateReason string

const (
	ReasonAmpAudio             BoilerplateReason = "AmpAudio"
	ReasonAmpExperiment        BoilerplateReason = "AmpExperiment"
	ReasonRenderDelayingScript BoilerplateReason = "RenderDelayingScript"
	ReasonAttributeException   BoilerplateReason = "AttributeException"
)

// CannotRemoveBoilerplate records a construct that prevents removal of the
// boilerplate. Cause is only set for ReasonAttributeException.
type CannotRemoveBoilerplate struct {
	Reason BoilerplateReason
	Node   *html.Node
	Cause  error
}

// BoilerplateBlockedBy builds a CannotRemoveBoilerplate for a blocking element.
func BoilerplateBlockedBy(reason BoilerplateReason, node *html.Node) *CannotRemoveBoilerplate {
	return &CannotRemoveBoilerplate{Reason: reason, Node: node}
}

// BoilerplateBlockedByAttribute wraps an attribute failure that left an
// element without its server-side layout.
func BoilerplateBlockedByAttribute(cause error, node *html.Node) *CannotRemoveBoilerplate {
	return &CannotRemoveBoilerplate{Reason: ReasonAttributeException, Node: node, Cause: cause}
}

func (e *CannotRemoveBoilerplate) Error() string {
	switch e.Reason {
	case ReasonAmpAudio:
		return "cannot remove boilerplate: amp-audio requires knowing the dimensions of the browser"
	case ReasonAmpExperiment:
		return "cannot remove boilerplate: amp-experiment is a render-delaying extension"
	case ReasonRenderDelayingScript:
		name := "unknown"
		if e.Node != nil {
			for _, a := range e.Node.Attr {
				if a.Key == "custom-element" {
					name = a.Val
				}
			}
		}
		return fmt.Sprintf("cannot remove boilerplate: %s is a render-delaying script", name)
	case ReasonAttributeException:
		if e.Cause != nil {
			return fmt.Sprintf("cannot remove boilerplate: %v", e.Cause)
		}
		return "cannot remove boilerplate: an attribute could not be transformed"
	}
	return fmt.Sprintf("cannot remove boilerplate: %s", e.Reason)
}

// Unwrap provides the underlying attribute error for use with errors.Is/As.
func (e *CannotRemoveBoilerplate) Unwrap() error { return e.Cause }

func (e *CannotRemoveBoilerplate) Code() Code { return CodeCannotRemoveBoilerplate }
func (*CannotRemoveBoilerplate) optimizerError() {}

// InvalidHTMLAttribute reports an attribute whose value could not be processed.
type InvalidHTMLAttribute struct {
	Attribute string
	Value     string
	Node      *html.Node
}

func (e *InvalidHTMLAttribute) Error() string {
	tag := "element"
	if e.Node != nil {
		tag = "<" + e.Node.Data + ">"
	}
	return fmt.Sprintf("invalid value %q for attribute %q on %s", e.Value, e.Attribute, tag)
}

func (e *InvalidHTMLAttribute) Code() Code { return CodeInvalidHTMLAttribute }
func (*InvalidHTMLAttribute) optimizerError() {}

// CannotPerformServerSideRendering reports an element whose layout could not be
// computed on the server. The element is left for the runtime to lay out.
type CannotPerformServerSideRendering struct {
	Reason string
	Node   *html.Node
}

func (e *CannotPerformServerSideRendering) Error() string {
	return "cannot perform server-side rendering: " + e.Reason
}

func (e *CannotPerformServerSideRendering) Code() Code { return CodeCannotPerformServerSideRendering }
func (*CannotPerformServerSideRendering) optimizerError() {}

// CannotInlineRuntimeCSS reports that the runtime stylesheet could not be inlined.
type CannotInlineRuntimeCSS struct {
	Reason string
	Err    error
}

func (e *CannotInlineRuntimeCSS) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cannot inline runtime css: %s: %v", e.Reason, e.Err)
	}
	return "cannot inline runtime css: " + e.Reason
}

func (e *CannotInlineRuntimeCSS) Unwrap() error { return e.Err }

func (e *CannotInlineRuntimeCSS) Code() Code { return CodeCannotInlineRuntimeCSS }
func (*CannotInlineRuntimeCSS) optimizerError() {}
