// internal/transformer/transformed_identifier.go
package transformer

import (
	"github.com/xkilldash9x/amp-optimizer/internal/dom"
	"github.com/xkilldash9x/amp-optimizer/internal/optimizer"
)

// NameTransformedIdentifier is the registry name of the identifier transformer.
const NameTransformedIdentifier = "TransformedIdentifier"

// TransformedValue is written to the transformed attribute of <html>.
const TransformedValue = "self;v=1"

// TransformedIdentifier marks the document as transformed by this optimizer,
// which AMP caches use to skip their own optimization pass.
type TransformedIdentifier struct{}

// NewTransformedIdentifier creates the transformer.
func NewTransformedIdentifier() *TransformedIdentifier { return &TransformedIdentifier{} }

// Name implements optimizer.Transformer.
func (*TransformedIdentifier) Name() string { return NameTransformedIdentifier }

// Transform implements optimizer.Transformer.
func (*TransformedIdentifier) Transform(doc *dom.Document, _ *optimizer.ErrorCollection) {
	if dom.HasAttr(doc.HTML(), "transformed") {
		return
	}
	dom.SetAttr(doc.HTML(), "transformed", TransformedValue)
}
