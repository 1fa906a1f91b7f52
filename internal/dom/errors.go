// internal/dom/errors.go
package dom

import "fmt"

// ParseError is returned when input markup cannot be turned into a Document at all.
// It is the only fatal error of the optimizer; every other problem is recorded
// in an optimizer.ErrorCollection while processing continues.
type ParseError struct {
	Reason string
	Offset int // Byte offset of the offending input, -1 when unknown.
	Err    error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("cannot parse document at byte %d: %s", e.Offset, e.Reason)
	}
	return fmt.Sprintf("cannot parse document: %s", e.Reason)
}

// Unwrap provides the underlying error for use with errors.Is/As.
func (e *ParseError) Unwrap() error {
	return e.Err
}
