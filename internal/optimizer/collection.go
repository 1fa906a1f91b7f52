// internal/optimizer/collection.go
package optimizer

import "errors"

// ErrorCollection accumulates errors in the order they were discovered. It is
// owned by a single pipeline run and is not safe for concurrent use.
type ErrorCollection struct {
	errs []Error
}

// NewErrorCollection returns an empty collection.
func NewErrorCollection() *ErrorCollection {
	return &ErrorCollection{}
}

// Add appends an error. Nil errors are ignored; duplicates are kept.
func (c *ErrorCollection) Add(err Error) {
	if err == nil {
		return
	}
	c.errs = append(c.errs, err)
}

// Count returns the number of collected errors.
func (c *ErrorCollection) Count() int { return len(c.errs) }

// Has reports whether at least one error of the given kind was collected.
func (c *ErrorCollection) Has(code Code) bool {
	for _, e := range c.errs {
		if e.Code() == code {
			return true
		}
	}
	return false
}

// All returns a copy of the collected errors in discovery order.
func (c *ErrorCollection) All() []Error {
	out := make([]Error, len(c.errs))
	copy(out, c.errs)
	return out
}

// Err joins all collected errors into one, or returns nil when empty.
func (c *ErrorCollection) Err() error {
	if len(c.errs) == 0 {
		return nil
	}
	joined := make([]error, len(c.errs))
	for i, e := range c.errs {
		joined[i] = e
	}
	return errors.Join(joined...)
}
