// internal/pipeline/runner.go
package pipeline

import (
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/amp-optimizer/internal/dom"
	"github.com/xkilldash9x/amp-optimizer/internal/optimizer"
)

// Runner applies transformers to a document in order. It performs no DOM
// mutation of its own.
type Runner struct {
	logger *zap.Logger
}

// NewRunner creates a Runner. A nil logger is replaced by a no-op logger.
func NewRunner(logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{logger: logger.With(zap.String("component", "runner"))}
}

// Run applies every transformer to doc and returns the errors they recorded.
// The errors of one transformer never stop the next from running.
func (r *Runner) Run(doc *dom.Document, transformers []optimizer.Transformer) *optimizer.ErrorCollection {
	errs := optimizer.NewErrorCollection()
	for _, t := range transformers {
		before := errs.Count()
		start := time.Now()
		t.Transform(doc, errs)
		r.logger.Debug("Transformer finished.",
			zap.String("transformer", t.Name()),
			zap.Int("errors", errs.Count()-before),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
	return errs
}
