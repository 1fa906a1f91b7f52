// internal/sanitize/sanitizer.go
package sanitize

import (
	"go.uber.org/zap"

	"github.com/xkilldash9x/amp-optimizer/internal/config"
	"github.com/xkilldash9x/amp-optimizer/internal/dom"
)

// NameCoreBlocks is the name the sanitizer reports to the pipeline.
const NameCoreBlocks = "CoreBlocks"

// Sanitizer rewrites CMS widget markup into AMP-compatible markup before the
// optimizer runs.
type Sanitizer struct {
	cfg    config.SanitizerConfig
	logger *zap.Logger
	blocks *BlockProcessor
}

// New creates a Sanitizer. Block options are passed to its BlockProcessor.
func New(cfg config.SanitizerConfig, logger *zap.Logger, opts ...BlockOption) *Sanitizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sanitizer{
		cfg:    cfg,
		logger: logger.With(zap.String("component", "sanitizer")),
		blocks: NewBlockProcessor(cfg.HomeURL, logger, opts...),
	}
}

// Name reports the sanitizer name.
func (s *Sanitizer) Name() string { return NameCoreBlocks }

// Blocks returns the processor for individual rendered blocks.
func (s *Sanitizer) Blocks() *BlockProcessor { return s.blocks }

// Preprocess rewrites the widgets of a parsed document in place.
func (s *Sanitizer) Preprocess(doc *dom.Document) {
	categories := ProcessCategoriesWidgets(doc)
	archives := ProcessArchivesWidgets(doc, s.cfg.AMPToAMPLinking)
	text := ProcessTextWidgets(doc)
	s.logger.Debug("Widgets sanitized.",
		zap.Int("categories", categories),
		zap.Int("archives", archives),
		zap.Int("text", text),
	)
}
