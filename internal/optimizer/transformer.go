// internal/optimizer/transformer.go
package optimizer

import "github.com/xkilldash9x/amp-optimizer/internal/dom"

// Transformer mutates a document in place. Implementations never fail as a
// whole; anything that cannot be done safely is recorded in errs and the
// transformer moves on.
type Transformer interface {
	Name() string
	Transform(doc *dom.Document, errs *ErrorCollection)
}
