// File: cmd/optimize.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/amp-optimizer/internal/config"
	"github.com/xkilldash9x/amp-optimizer/internal/observability"
	"github.com/xkilldash9x/amp-optimizer/internal/pipeline"
	"github.com/xkilldash9x/amp-optimizer/internal/reporting"
)

const stdinSource = "stdin"

type optimizeOptions struct {
	outputDir    string
	report       string
	reportFormat string
	stdin        bool
	concurrency  int
}

// outcome is the result of optimizing one input document.
type outcome struct {
	source string
	markup string
	report *reporting.Report
	err    error
}

// newOptimizeCmd creates and configures the `optimize` command.
func newOptimizeCmd() *cobra.Command {
	opts := &optimizeOptions{}

	optimizeCmd := &cobra.Command{
		Use:   "optimize [files...]",
		Short: "Server-side render AMP documents",
		Long: `Runs the transformer pipeline over each document.

Without --output-dir the optimized markup is written to standard output in the
order the files were given. With --report a diagnostics report covering every
document is written as JSON or SARIF.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if opts.stdin && len(args) > 0 {
				return fmt.Errorf("--stdin cannot be combined with file arguments")
			}
			if !opts.stdin && len(args) == 0 {
				return fmt.Errorf("requires at least one file or --stdin")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfigFromContext(cmd.Context())
			if err != nil {
				return err
			}

			// Flags win over the config file and environment.
			if cmd.Flags().Changed("output-dir") {
				cfg.SetBatchOutputDir(opts.outputDir)
			}
			if cmd.Flags().Changed("report") {
				cfg.SetBatchReport(opts.report)
			}
			if cmd.Flags().Changed("concurrency") {
				if opts.concurrency < 1 {
					return fmt.Errorf("--concurrency must be a positive integer")
				}
				cfg.SetBatchConcurrency(opts.concurrency)
			}

			return runOptimize(cmd.Context(), cmd, cfg, opts, args)
		},
	}

	optimizeCmd.Flags().StringVarP(&opts.outputDir, "output-dir", "o", "", "Directory for optimized documents (default is standard output)")
	optimizeCmd.Flags().StringVar(&opts.report, "report", "", "Write a diagnostics report to this path (\"stdout\" for standard output)")
	optimizeCmd.Flags().StringVar(&opts.reportFormat, "report-format", "json", "Report format (json, sarif)")
	optimizeCmd.Flags().BoolVar(&opts.stdin, "stdin", false, "Read a single document from standard input")
	optimizeCmd.Flags().IntVar(&opts.concurrency, "concurrency", 0, "Documents optimized in parallel (default from config)")

	return optimizeCmd
}

func runOptimize(ctx context.Context, cmd *cobra.Command, cfg config.Interface, opts *optimizeOptions, args []string) error {
	logger := observability.GetLogger().Named("optimize")
	batch := cfg.Batch()

	p, err := pipeline.Build(cfg, logger)
	if err != nil {
		return err
	}

	if batch.OutputDir != "" && !opts.stdin {
		if err := checkOutputNames(args); err != nil {
			return err
		}
	}
	if batch.OutputDir != "" {
		if err := os.MkdirAll(batch.OutputDir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory %s: %w", batch.OutputDir, err)
		}
	}

	var reporter reporting.Reporter
	if batch.Report != "" {
		reporter, err = reporting.New(opts.reportFormat, batch.Report, Version)
		if err != nil {
			return err
		}
	}

	sources := args
	var stdinMarkup []byte
	if opts.stdin {
		sources = []string{stdinSource}
		stdinMarkup, err = io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read standard input: %w", err)
		}
	}

	runID := reporting.NewRunID()
	logger.Info("Starting optimization run",
		zap.String("run_id", runID),
		zap.Int("documents", len(sources)),
		zap.Int("concurrency", batch.Concurrency),
		zap.Strings("transformers", p.Transformers()),
	)
	start := time.Now()

	// Each goroutine owns one slot, so results keep input order without locking.
	outcomes := make([]outcome, len(sources))
	var g errgroup.Group
	g.SetLimit(batch.Concurrency)
	for i, source := range sources {
		g.Go(func() error {
			markup := stdinMarkup
			if source != stdinSource {
				raw, err := os.ReadFile(source)
				if err != nil {
					outcomes[i] = outcome{source: source, err: fmt.Errorf("failed to read %s: %w", source, err)}
					return nil
				}
				markup = raw
			}
			outcomes[i] = optimizeOne(ctx, p, runID, source, markup, batch.OutputDir, logger)
			return nil
		})
	}
	_ = g.Wait()

	var failures []error
	for _, o := range outcomes {
		if o.err != nil {
			failures = append(failures, o.err)
			continue
		}
		if batch.OutputDir == "" {
			if _, err := io.WriteString(cmd.OutOrStdout(), o.markup); err != nil {
				return fmt.Errorf("failed to write markup: %w", err)
			}
		}
		if reporter != nil {
			if err := reporter.Write(o.report); err != nil {
				failures = append(failures, fmt.Errorf("failed to write report for %s: %w", o.source, err))
			}
		}
	}

	if reporter != nil {
		if err := reporter.Close(); err != nil {
			failures = append(failures, fmt.Errorf("failed to close report: %w", err))
		}
	}

	logger.Info("Optimization run finished",
		zap.String("run_id", runID),
		zap.Int("failed", len(failures)),
		zap.Duration("elapsed", time.Since(start)),
	)
	if len(failures) > 0 {
		return fmt.Errorf("%d of %d documents failed: %w", len(failures), len(sources), errors.Join(failures...))
	}
	return nil
}

// optimizeOne runs the pipeline over a single document and, when outputDir is
// set, writes the result next to the other outputs under the input's base name.
func optimizeOne(ctx context.Context, p *pipeline.Pipeline, runID, source string, markup []byte, outputDir string, logger *zap.Logger) outcome {
	res, err := p.Optimize(ctx, markup)
	if err != nil {
		return outcome{source: source, err: fmt.Errorf("%s: %w", source, err)}
	}

	report := reporting.Build(runID, source, res.Errors)
	logger.Info("Document optimized",
		zap.String("source", source),
		zap.String("status", string(report.Status)),
		zap.Int("errors", report.Count),
	)
	for _, e := range report.Entries {
		logger.Debug("Optimizer error", zap.String("source", source), zap.String("code", string(e.Code)), zap.String("message", e.Message))
	}

	if outputDir != "" {
		target := filepath.Join(outputDir, outputName(source))
		if err := os.WriteFile(target, []byte(res.Markup), 0o644); err != nil {
			return outcome{source: source, err: fmt.Errorf("failed to write %s: %w", target, err)}
		}
	}
	return outcome{source: source, markup: res.Markup, report: report}
}

// outputName is the file name a source is written to under the output directory.
func outputName(source string) string {
	if source == stdinSource {
		return "stdin.html"
	}
	return filepath.Base(source)
}

// checkOutputNames rejects a batch in which two inputs would be written to the
// same file under the output directory.
func checkOutputNames(sources []string) error {
	seen := make(map[string]string, len(sources))
	for _, source := range sources {
		name := outputName(source)
		if prev, ok := seen[name]; ok {
			return fmt.Errorf("%s and %s would both be written to %s in the output directory", prev, source, name)
		}
		seen[name] = source
	}
	return nil
}
