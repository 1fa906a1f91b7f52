// internal/pipeline/pipeline.go
package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/xkilldash9x/amp-optimizer/internal/dom"
	"github.com/xkilldash9x/amp-optimizer/internal/optimizer"
)

// Preprocessor rewrites a freshly parsed document before the transformers
// run. Sanitizers that turn CMS output into valid AMP implement it.
type Preprocessor interface {
	Name() string
	Preprocess(doc *dom.Document)
}

// Result is the outcome of optimizing one document.
type Result struct {
	Markup   string
	Errors   *optimizer.ErrorCollection
	Document *dom.Document
}

// Pipeline is an ordered, reusable set of preprocessors and transformers.
// A Pipeline holds no per-document state and may be shared by goroutines as
// long as its transformers are stateless, which all built-in ones are.
type Pipeline struct {
	runner        *Runner
	logger        *zap.Logger
	preprocessors []Preprocessor
	transformers  []optimizer.Transformer
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithPreprocessors sets the preprocessors that run before the transformers.
func WithPreprocessors(pp ...Preprocessor) Option {
	return func(p *Pipeline) {
		p.preprocessors = append(p.preprocessors, pp...)
	}
}

// New creates a Pipeline running the transformers in the order given.
func New(logger *zap.Logger, transformers []optimizer.Transformer, opts ...Option) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pipeline{
		runner:       NewRunner(logger),
		logger:       logger.With(zap.String("component", "pipeline")),
		transformers: transformers,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Transformers returns the names of the configured transformers in order.
func (p *Pipeline) Transformers() []string {
	names := make([]string, len(p.transformers))
	for i, t := range p.transformers {
		names[i] = t.Name()
	}
	return names
}

// Optimize parses markup, runs the pipeline and serializes the result.
//
// A *dom.ParseError is returned when the markup cannot be parsed; no
// transformer runs in that case. The context is only consulted before
// parsing, a single document is never abandoned half way.
func (p *Pipeline) Optimize(ctx context.Context, markup []byte) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc, err := dom.ParseBytes(markup)
	if err != nil {
		p.logger.Debug("Document could not be parsed.", zap.Error(err))
		return nil, err
	}

	for _, pp := range p.preprocessors {
		pp.Preprocess(doc)
	}
	errs := p.runner.Run(doc, p.transformers)

	return &Result{Markup: doc.String(), Errors: errs, Document: doc}, nil
}
