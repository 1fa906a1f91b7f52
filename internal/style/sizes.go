// internal/style/sizes.go
package style

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gorilla/css/scanner"
)

// -- Source Size Lists --

// Entry is one "(condition) value" pair of a sizes or heights list.
type Entry struct {
	Condition string
	Value     string
}

// SizeList is a parsed sizes or heights attribute. Default is the value of a
// trailing entry without condition and may be empty.
type SizeList struct {
	Default     string
	Conditional []Entry
}

// ParseSizes parses a comma separated list of media conditions and values.
// Every entry but the last needs a condition.
func ParseSizes(value string) (SizeList, error) {
	var list SizeList
	segments, err := splitTopLevel(value)
	if err != nil {
		return list, err
	}

	for i, seg := range segments {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			return SizeList{}, fmt.Errorf("entry %d is empty", i+1)
		}
		cond, val := splitTrailingValue(seg)
		if err := validateTokens(val, false); err != nil {
			return SizeList{}, fmt.Errorf("entry %d value %q: %w", i+1, val, err)
		}

		last := i == len(segments)-1
		if cond == "" {
			if !last {
				return SizeList{}, fmt.Errorf("entry %d has no media condition", i+1)
			}
			list.Default = val
			continue
		}
		if err := validateTokens(cond, true); err != nil {
			return SizeList{}, fmt.Errorf("entry %d condition %q: %w", i+1, cond, err)
		}
		list.Conditional = append(list.Conditional, Entry{Condition: cond, Value: val})
	}
	return list, nil
}

// ValidateMediaQuery checks that a media attribute is a single usable media
// query. A comma separated list is rejected: hiding the element needs every
// query negated at once, which a single @media prelude cannot express.
func ValidateMediaQuery(value string) error {
	segments, err := splitTopLevel(value)
	if err != nil {
		return err
	}
	if len(segments) > 1 {
		return errors.New("media query lists are not supported")
	}
	return validateTokens(value, true)
}

// splitTopLevel splits on commas that are not nested in parentheses.
func splitTopLevel(value string) ([]string, error) {
	var (
		out   []string
		depth int
		start int
	)
	for i, r := range value {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return nil, errors.New("unbalanced parentheses")
			}
		case ',':
			if depth == 0 {
				out = append(out, value[start:i])
				start = i + 1
			}
		}
	}
	if depth != 0 {
		return nil, errors.New("unbalanced parentheses")
	}
	return append(out, value[start:]), nil
}

// splitTrailingValue separates the final value token from the condition in
// front of it. A value ending in ')' is a css function such as calc() and is
// taken together with its name.
func splitTrailingValue(seg string) (cond, val string) {
	end := len(seg)
	start := end
	if strings.HasSuffix(seg, ")") {
		depth := 0
	scan:
		for i := end - 1; i >= 0; i-- {
			switch seg[i] {
			case ')':
				depth++
			case '(':
				depth--
			}
			if depth == 0 {
				start = i
				break scan
			}
		}
		for start > 0 && isNameByte(seg[start-1]) {
			start--
		}
		// A parenthesized group with no function name is a condition, not a value.
		if start < end && seg[start] == '(' {
			return seg, ""
		}
	} else {
		start = strings.LastIndexAny(seg, " \t\n\f\r") + 1
	}
	return strings.TrimSpace(seg[:start]), seg[start:]
}

func isNameByte(b byte) bool {
	return b == '-' || b == '_' || ('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z') || ('0' <= b && b <= '9')
}

// validateTokens runs the css tokenizer over a condition or value and rejects
// anything that could break out of the generated rule.
func validateTokens(s string, condition bool) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("empty")
	}
	// The rules end up as raw text inside <style>.
	if strings.Contains(s, "</") {
		return errors.New("unexpected \"</\"")
	}
	depth := 0
	sc := scanner.New(s)
	for {
		tok := sc.Next()
		switch tok.Type {
		case scanner.TokenEOF:
			if depth != 0 {
				return errors.New("unbalanced parentheses")
			}
			return nil
		case scanner.TokenError:
			return fmt.Errorf("tokenizer error at column %d", tok.Column)
		case scanner.TokenFunction:
			depth++
		case scanner.TokenAtKeyword, scanner.TokenCDO, scanner.TokenCDC:
			return fmt.Errorf("unexpected %q", tok.Value)
		case scanner.TokenChar:
			switch tok.Value {
			case "{", "}", ";":
				return fmt.Errorf("unexpected %q", tok.Value)
			case "(":
				if !condition {
					return errors.New("unexpected \"(\" in value")
				}
				depth++
			case ")":
				depth--
				if depth < 0 {
					return errors.New("unbalanced parentheses")
				}
			}
		}
	}
}
