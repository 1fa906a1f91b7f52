// internal/style/rules.go
package style

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/aymerick/douceur/css"
	"github.com/gorilla/css/scanner"
)

// Rules is an ordered list of generated css rules.
type Rules []*css.Rule

// String renders the rules minified, the way they are written into amp-custom.
func (r Rules) String() string {
	var sb strings.Builder
	for _, rule := range r {
		renderRule(&sb, rule)
	}
	return sb.String()
}

func renderRule(sb *strings.Builder, rule *css.Rule) {
	if rule.Kind == css.AtRule {
		sb.WriteString(rule.Name)
		if rule.Prelude != "" {
			sb.WriteByte(' ')
			sb.WriteString(rule.Prelude)
		}
		sb.WriteByte('{')
		for _, inner := range rule.Rules {
			renderRule(sb, inner)
		}
		sb.WriteByte('}')
		return
	}

	sb.WriteString(rule.Prelude)
	sb.WriteByte('{')
	for i, d := range rule.Declarations {
		if i > 0 {
			sb.WriteByte(';')
		}
		sb.WriteString(d.Property)
		sb.WriteByte(':')
		sb.WriteString(d.Value)
		if d.Important {
			sb.WriteString("!important")
		}
	}
	sb.WriteByte('}')
}

// -- Rule Construction --

func qualified(selector, property, value string) *css.Rule {
	rule := css.NewRule(css.QualifiedRule)
	rule.Prelude = selector
	rule.Selectors = []string{selector}
	rule.Declarations = []*css.Declaration{{Property: property, Value: value}}
	return rule
}

func media(condition string, inner *css.Rule) *css.Rule {
	rule := css.NewRule(css.AtRule)
	rule.Name = "@media"
	rule.Prelude = condition
	rule.Rules = []*css.Rule{inner}
	inner.EmbedLevel = 1
	return rule
}

// listRules emits the default declaration first and then one media rule per
// conditional entry, last entry first, so that earlier entries win the cascade.
func listRules(selector, property string, list SizeList) Rules {
	var out Rules
	if list.Default != "" {
		out = append(out, qualified(selector, property, list.Default))
	}
	for i := len(list.Conditional) - 1; i >= 0; i-- {
		e := list.Conditional[i]
		out = append(out, media(e.Condition, qualified(selector, property, e.Value)))
	}
	return out
}

// SizesRules builds the width rules for a sizes attribute.
func SizesRules(id string, list SizeList) Rules {
	return listRules(idSelector(id), "width", list)
}

// HeightsRules builds the height rules for a heights attribute.
func HeightsRules(id string, list SizeList) Rules {
	return listRules(idSelector(id)+":first-child", "height", list)
}

// MediaRules hides the element whenever the media query does not match.
func MediaRules(id, query string) Rules {
	query = strings.TrimSpace(query)
	var cond string
	switch lower := strings.ToLower(query); {
	case strings.HasPrefix(lower, "not "):
		cond = strings.TrimSpace(query[4:])
	case strings.HasPrefix(query, "("):
		cond = "not all and " + query
	default:
		cond = "not " + query
	}
	return Rules{media(cond, qualified(idSelector(id), "display", "none"))}
}

// -- Selectors --

func idSelector(id string) string {
	return "#" + EscapeIdent(id)
}

// EscapeIdent escapes s for use as a css identifier, following CSS.escape.
// '<' and '>' are always written as hex escapes so the result can sit inside
// a <style> element.
func EscapeIdent(s string) string {
	var sb strings.Builder
	first := rune(-1)
	for i, r := range []rune(s) {
		if i == 0 {
			first = r
		}
		switch {
		case r == 0:
			sb.WriteRune('\uFFFD')
		case r < 0x20 || r == 0x7f || r == '<' || r == '>',
			i == 0 && isDigit(r),
			i == 1 && isDigit(r) && first == '-':
			hexEscape(&sb, r)
		case i == 0 && r == '-' && len(s) == 1:
			sb.WriteString(`\-`)
		case r >= 0x80 || r == '-' || r == '_' || isDigit(r) || ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z'):
			sb.WriteRune(r)
		default:
			sb.WriteByte('\\')
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

func isDigit(r rune) bool { return '0' <= r && r <= '9' }

func hexEscape(sb *strings.Builder, r rune) {
	sb.WriteByte('\\')
	sb.WriteString(strconv.FormatInt(int64(r), 16))
	sb.WriteByte(' ')
}

// ValidateID checks that id, once escaped, tokenizes as a single id selector
// and nothing else.
func ValidateID(id string) error {
	if id == "" {
		return errors.New("empty id")
	}
	sel := idSelector(id)
	if strings.Contains(sel, "</") {
		return errors.New("unexpected \"</\"")
	}
	sc := scanner.New(sel)
	if tok := sc.Next(); tok.Type != scanner.TokenHash || tok.Value != sel {
		return fmt.Errorf("id %q does not form a single selector", id)
	}
	if tok := sc.Next(); tok.Type != scanner.TokenEOF {
		return fmt.Errorf("id %q does not form a single selector", id)
	}
	return nil
}
