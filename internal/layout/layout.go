// internal/layout/layout.go
package layout

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/xkilldash9x/amp-optimizer/internal/dom"
	"github.com/xkilldash9x/amp-optimizer/internal/optimizer"
)

// ErrNotApplicable is returned for elements the layout calculator does not handle.
var ErrNotApplicable = errors.New("layout: element is not an amp component")

// -- Layout Types --

// Layout is an AMP layout value.
type Layout string

const (
	Unspecified Layout = ""
	Nodisplay   Layout = "nodisplay"
	Fixed       Layout = "fixed"
	FixedHeight Layout = "fixed-height"
	Responsive  Layout = "responsive"
	Container   Layout = "container"
	Fill        Layout = "fill"
	FlexItem    Layout = "flex-item"
	Fluid       Layout = "fluid"
	Intrinsic   Layout = "intrinsic"
)

// ParseLayout validates a layout attribute value. The empty string yields
// Unspecified. Values are matched case-insensitively.
func ParseLayout(s string) (Layout, error) {
	l := Layout(strings.ToLower(strings.TrimSpace(s)))
	switch l {
	case Unspecified, Nodisplay, Fixed, FixedHeight, Responsive, Container, Fill, FlexItem, Fluid, Intrinsic:
		return l, nil
	}
	return Unspecified, fmt.Errorf("unsupported layout %q", s)
}

// SizeDefined reports whether the layout reserves its own box size.
func (l Layout) SizeDefined() bool {
	switch l {
	case Fixed, FixedHeight, Responsive, Fill, FlexItem, Fluid, Intrinsic:
		return true
	}
	return false
}

// -- Inputs --

// Attributes is a snapshot of the attributes that influence layout. It is taken
// before any attribute is rewritten, so that the implied layout still sees
// sizes and heights.
type Attributes struct {
	Layout     string
	Width      string
	Height     string
	HasSizes   bool
	HasHeights bool
}

// FromNode snapshots the layout attributes of an element.
func FromNode(n *html.Node) Attributes {
	return Attributes{
		Layout:     dom.Attr(n, "layout"),
		Width:      dom.Attr(n, "width"),
		Height:     dom.Attr(n, "height"),
		HasSizes:   dom.HasAttr(n, "sizes"),
		HasHeights: dom.HasAttr(n, "heights"),
	}
}

// defaultDimensions holds the implicit sizes of components that may omit width and height.
var defaultDimensions = map[string]struct{ width, height string }{
	"amp-analytics":    {"1px", "1px"},
	"amp-pixel":        {"1px", "1px"},
	"amp-audio":        {"auto", "auto"},
	"amp-social-share": {"60px", "44px"},
}

// CalculateWidth applies the default width of the tag when none is given.
func CalculateWidth(layout Layout, width Length, tag string) Length {
	if (layout == Unspecified || layout == Fixed) && !width.Defined {
		if d, ok := defaultDimensions[tag]; ok {
			return MustLength(d.width)
		}
	}
	return width
}

// CalculateHeight applies the default height of the tag when none is given.
func CalculateHeight(layout Layout, height Length, tag string) Length {
	if (layout == Unspecified || layout == Fixed || layout == FixedHeight) && !height.Defined {
		if d, ok := defaultDimensions[tag]; ok {
			return MustLength(d.height)
		}
	}
	return height
}

// CalculateLayout resolves the layout to use, inferring it from the
// dimensions when none was specified.
func CalculateLayout(layout Layout, width, height Length, hasSizesOrHeights bool) Layout {
	switch {
	case layout != Unspecified:
		return layout
	case !width.Defined && !height.Defined:
		return Container
	case height.Defined && (!width.Defined || width.Auto):
		return FixedHeight
	case height.Defined && width.Defined && hasSizesOrHeights:
		return Responsive
	}
	return Fixed
}

// -- Result --

// Result is the server-side layout of one element.
type Result struct {
	Layout  Layout
	Classes []string
	Style   string
	Hidden  bool
	Sizer   *html.Node
}

// Compute calculates the layout of an AMP component. Errors are
// *optimizer.InvalidHTMLAttribute for malformed dimensions and
// *optimizer.CannotPerformServerSideRendering for unknown layouts; their Node
// is left nil. Use ComputeFor to have it filled in.
func Compute(tag string, attrs Attributes) (*Result, error) {
	tag = strings.ToLower(tag)
	if !strings.HasPrefix(tag, "amp-") {
		return nil, ErrNotApplicable
	}

	inputLayout, err := ParseLayout(attrs.Layout)
	if err != nil {
		return nil, &optimizer.CannotPerformServerSideRendering{Reason: err.Error()}
	}
	inputWidth, err := ParseLength(attrs.Width, true, inputLayout == Fluid)
	if err != nil {
		return nil, &optimizer.InvalidHTMLAttribute{Attribute: "width", Value: attrs.Width}
	}
	inputHeight, err := ParseLength(attrs.Height, true, inputLayout == Fluid)
	if err != nil {
		return nil, &optimizer.InvalidHTMLAttribute{Attribute: "height", Value: attrs.Height}
	}

	width := CalculateWidth(inputLayout, inputWidth, tag)
	height := CalculateHeight(inputLayout, inputHeight, tag)
	layout := CalculateLayout(inputLayout, width, height, attrs.HasSizes || attrs.HasHeights)

	res := &Result{Layout: layout, Classes: []string{"i-amphtml-layout-" + string(layout)}}
	if layout.SizeDefined() {
		res.Classes = append(res.Classes, "i-amphtml-layout-size-defined")
	}

	switch layout {
	case Nodisplay:
		res.Hidden = true
	case Fixed:
		res.Style = width.declaration("width") + height.declaration("height")
	case FixedHeight:
		res.Style = height.declaration("height")
	case FlexItem:
		res.Style = width.declaration("width") + height.declaration("height")
	case Responsive:
		if err := requirePositive(attrs, width, height); err != nil {
			return nil, err
		}
		res.Sizer = ResponsiveSizer(width.Numeral, height.Numeral)
	case Intrinsic:
		if err := requirePositive(attrs, width, height); err != nil {
			return nil, err
		}
		res.Sizer = IntrinsicSizer(width.Numeral, height.Numeral)
	}
	return res, nil
}

// ComputeFor runs Compute and attaches n to any returned optimizer error.
func ComputeFor(n *html.Node, attrs Attributes) (*Result, error) {
	res, err := Compute(n.Data, attrs)
	switch e := err.(type) {
	case *optimizer.InvalidHTMLAttribute:
		e.Node = n
	case *optimizer.CannotPerformServerSideRendering:
		e.Node = n
	}
	return res, err
}

func requirePositive(attrs Attributes, width, height Length) error {
	if !width.Defined || width.Auto || width.Numeral <= 0 {
		return &optimizer.InvalidHTMLAttribute{Attribute: "width", Value: attrs.Width}
	}
	if !height.Defined || height.Auto || height.Numeral <= 0 {
		return &optimizer.InvalidHTMLAttribute{Attribute: "height", Value: attrs.Height}
	}
	return nil
}

// Apply writes a computed layout onto the element. Computed styles go in front
// of any authored inline style.
func Apply(n *html.Node, res *Result) {
	dom.AddClass(n, res.Classes...)
	if res.Style != "" {
		dom.SetAttr(n, "style", res.Style+dom.Attr(n, "style"))
	}
	if res.Hidden {
		dom.SetAttr(n, "hidden", "hidden")
	}
	dom.SetAttr(n, "i-amphtml-layout", string(res.Layout))
	if res.Sizer != nil {
		dom.PrependChild(n, res.Sizer)
	}
}

// -- Sizers --

// RoundPadding rounds a percentage to four decimals. Values exactly halfway
// between two candidates resolve to the lower one.
func RoundPadding(v float64) float64 {
	scaled := v * 10000
	f := math.Floor(scaled)
	if scaled-f > 0.5 {
		f++
	}
	return f / 10000
}

// PaddingTop returns the formatted padding-top percentage for a responsive box.
func PaddingTop(width, height float64) string {
	return strconv.FormatFloat(RoundPadding(height/width*100), 'f', 4, 64)
}

// ResponsiveSizer builds the padding-based sizer of a responsive element.
func ResponsiveSizer(width, height float64) *html.Node {
	return dom.CreateElement("i-amphtml-sizer", "style", "display:block;padding-top:"+PaddingTop(width, height)+"%;")
}

// IntrinsicSizer builds the sizer of an intrinsic element: an invisible SVG
// image of the element's size, floored to whole pixels.
func IntrinsicSizer(width, height float64) *html.Node {
	svg := fmt.Sprintf(`data:image/svg+xml;charset=utf-8,<svg height="%d" width="%d" xmlns="http://www.w3.org/2000/svg" version="1.1"/>`,
		int64(math.Floor(height)), int64(math.Floor(width)))

	sizer := dom.CreateElement("i-amphtml-sizer", "class", "i-amphtml-sizer")
	img := dom.CreateElement("img",
		"alt", "",
		"aria-hidden", "true",
		"class", "i-amphtml-intrinsic-sizer",
		"role", "presentation",
		"src", svg,
	)
	sizer.AppendChild(img)
	return sizer
}
