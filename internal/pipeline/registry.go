// internal/pipeline/registry.go
package pipeline

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/xkilldash9x/amp-optimizer/internal/config"
	"github.com/xkilldash9x/amp-optimizer/internal/optimizer"
	"github.com/xkilldash9x/amp-optimizer/internal/sanitize"
	"github.com/xkilldash9x/amp-optimizer/internal/transformer"
)

// Factory builds a transformer from the optimizer configuration.
type Factory func(cfg config.OptimizerConfig, logger *zap.Logger) optimizer.Transformer

var registry = map[string]Factory{
	transformer.NameServerSideRendering: func(cfg config.OptimizerConfig, logger *zap.Logger) optimizer.Transformer {
		var opts []transformer.SSROption
		if len(cfg.SSR.RenderDelayingExtensions) > 0 {
			opts = append(opts, transformer.WithRenderDelayingExtensions(cfg.SSR.RenderDelayingExtensions...))
		}
		return transformer.NewServerSideRendering(logger, opts...)
	},
	transformer.NameAmpRuntimeCSS: func(cfg config.OptimizerConfig, logger *zap.Logger) optimizer.Transformer {
		return transformer.NewAmpRuntimeCSS(logger, cfg.RuntimeCSS.Path, cfg.RuntimeCSS.Version)
	},
	transformer.NameTransformedIdentifier: func(config.OptimizerConfig, *zap.Logger) optimizer.Transformer {
		return transformer.NewTransformedIdentifier()
	},
}

// Names lists the registered transformer names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build assembles a Pipeline from configuration. Transformers are created in
// the configured order; an unknown name is a configuration error.
func Build(cfg config.Interface, logger *zap.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	optCfg := cfg.Optimizer()

	transformers := make([]optimizer.Transformer, 0, len(optCfg.Transformers))
	for _, name := range optCfg.Transformers {
		factory, ok := registry[name]
		if !ok {
			return nil, fmt.Errorf("unknown transformer %q (available: %v)", name, Names())
		}
		transformers = append(transformers, factory(optCfg, logger))
	}

	var opts []Option
	if cfg.Sanitizer().Enabled {
		opts = append(opts, WithPreprocessors(sanitize.New(cfg.Sanitizer(), logger)))
	}
	return New(logger, transformers, opts...), nil
}
