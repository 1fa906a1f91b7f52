// internal/dom/context.go
package dom

import "strconv"

// Context holds the mutable state of a single optimization run, such as the
// counters used to mint unique ids. It lives exactly as long as the Document
// (or fragment) it belongs to; nothing is shared between runs.
type Context struct {
	counters map[string]int
}

// NewContext creates an empty run context.
func NewContext() *Context {
	return &Context{counters: make(map[string]int)}
}

// Next increments the named counter and returns its new value, starting at 1.
func (c *Context) Next(name string) int {
	c.counters[name]++
	return c.counters[name]
}

// Current returns the value of the named counter without changing it.
func (c *Context) Current(name string) int {
	return c.counters[name]
}

// UniqueID returns prefix if no element in the document uses it yet, and
// otherwise prefix-N with the smallest N >= 2 that is still free. The result is
// deterministic for a given document.
func (d *Document) UniqueID(prefix string) string {
	if d.ElementByID(prefix) == nil {
		return prefix
	}
	for {
		candidate := prefix + "-" + strconv.Itoa(d.ctx.Next("id:"+prefix)+1)
		if d.ElementByID(candidate) == nil {
			return candidate
		}
	}
}
