// internal/layout/length.go
package layout

import (
	"fmt"
	"regexp"
	"strconv"
)

// -- CSS Lengths --

var lengthPattern = regexp.MustCompile(`^(\d+(?:\.\d+)?)(px|em|rem|vh|vw|vmin|vmax)?$`)

// Length is a parsed width or height attribute.
type Length struct {
	Numeral float64
	Unit    string
	Defined bool
	Auto    bool
	Fluid   bool
}

// ParseLength parses an AMP width or height value. The empty string is a valid,
// undefined length. "auto" and "fluid" are only accepted when allowed.
func ParseLength(s string, allowAuto, allowFluid bool) (Length, error) {
	switch s {
	case "":
		return Length{}, nil
	case "auto":
		if !allowAuto {
			return Length{}, fmt.Errorf("length %q: auto is not allowed here", s)
		}
		return Length{Defined: true, Auto: true}, nil
	case "fluid":
		if !allowFluid {
			return Length{}, fmt.Errorf("length %q: fluid is only allowed with layout=fluid", s)
		}
		return Length{Defined: true, Fluid: true}, nil
	}

	m := lengthPattern.FindStringSubmatch(s)
	if m == nil {
		return Length{}, fmt.Errorf("length %q is not a valid css length", s)
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return Length{}, fmt.Errorf("length %q: %w", s, err)
	}
	unit := m[2]
	if unit == "" {
		unit = "px"
	}
	return Length{Numeral: v, Unit: unit, Defined: true}, nil
}

// MustLength parses a length known to be valid. It is used for the built-in
// default dimensions.
func MustLength(s string) Length {
	l, err := ParseLength(s, true, false)
	if err != nil {
		panic(err)
	}
	return l
}

// String renders the length as it is written into inline styles.
func (l Length) String() string {
	switch {
	case !l.Defined:
		return ""
	case l.Auto:
		return "auto"
	case l.Fluid:
		return "fluid"
	}
	return strconv.FormatFloat(l.Numeral, 'f', -1, 64) + l.Unit
}

// declaration renders "prop:value;" or nothing for an undefined length.
func (l Length) declaration(prop string) string {
	if !l.Defined {
		return ""
	}
	return prop + ":" + l.String() + ";"
}
