// internal/reporting/sarif_reporter.go
package reporting

import (
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/amp-optimizer/internal/observability"
	"github.com/xkilldash9x/amp-optimizer/internal/optimizer"
	"github.com/xkilldash9x/amp-optimizer/internal/reporting/sarif"
)

// Constants for tool identification in the SARIF report.
const (
	ToolName     = "ampopt"
	ToolInfoURI  = "https://github.com/xkilldash9x/amp-optimizer"
	SARIFVersion = "2.1.0"
	SARIFSchema  = "https://schemastore.azurewebsites.net/schemas/json/sarif-2.1.0-rtm.5.json"
)

// rule describes one kind of optimizer error.
type rule struct {
	name        string
	description string
	help        string
	level       sarif.Level
}

// rules has one entry per optimizer.Code.
var rules = map[optimizer.Code]rule{
	optimizer.CodeCannotRemoveBoilerplate: {
		name:        "Boilerplate kept",
		description: "The page contains a construct that needs the AMP runtime before first paint, so the boilerplate that hides the page could not be removed.",
		help:        "Remove the construct or accept the slower first paint.",
		level:       sarif.LevelWarning,
	},
	optimizer.CodeInvalidHTMLAttribute: {
		name:        "Invalid attribute",
		description: "An attribute value could not be interpreted.",
		help:        "Fix the attribute value so it is a valid length, media query or sizes list.",
		level:       sarif.LevelError,
	},
	optimizer.CodeCannotPerformServerSideRendering: {
		name:        "Layout not rendered",
		description: "The layout of an element could not be computed on the server.",
		help:        "Use a supported layout or provide explicit dimensions.",
		level:       sarif.LevelWarning,
	},
	optimizer.CodeCannotInlineRuntimeCSS: {
		name:        "Runtime CSS missing",
		description: "The runtime stylesheet could not be inlined into the page.",
		help:        "Check optimizer.runtime_css.path.",
		level:       sarif.LevelNote,
	},
}

// SARIFReporter implements the Reporter interface for the SARIF 2.1.0 format.
// Every document becomes an artifact and every error a result. It is thread safe.
type SARIFReporter struct {
	writer io.WriteCloser
	logger *zap.Logger
	log    *sarif.Log
	// mu protects the log structure and the rule set.
	mu    sync.Mutex
	known map[optimizer.Code]bool
}

// NewSARIFReporter creates a new reporter that writes SARIF output.
func NewSARIFReporter(writer io.WriteCloser, toolVersion string) *SARIFReporter {
	logger := observability.GetLogger().Named("sarif_reporter")
	log := &sarif.Log{
		Version: SARIFVersion,
		Schema:  SARIFSchema,
		Runs: []*sarif.Run{
			{
				Tool: &sarif.Tool{
					Driver: &sarif.ToolComponent{
						Name:           ToolName,
						Version:        pString(toolVersion),
						InformationURI: pString(ToolInfoURI),
						// Initialize empty slices (not nil) for proper JSON marshalling
						Rules: []*sarif.ReportingDescriptor{},
					},
				},
				Artifacts: []*sarif.Artifact{},
				Results:   []*sarif.Result{},
			},
		},
	}

	return &SARIFReporter{
		writer: writer,
		logger: logger,
		log:    log,
		known:  make(map[optimizer.Code]bool),
	}
}

// Write converts a Report into SARIF results and adds them to the log.
func (r *SARIFReporter) Write(report *Report) error {
	startTime := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	run := r.log.Runs[0]
	if run.AutomationDetails == nil && report.RunID != "" {
		run.AutomationDetails = &sarif.RunAutomationDetails{ID: pString(report.RunID)}
	}
	run.Artifacts = append(run.Artifacts, &sarif.Artifact{
		Location: &sarif.ArtifactLocation{URI: pString(report.Source)},
	})

	for _, entry := range report.Entries {
		run.Results = append(run.Results, &sarif.Result{
			RuleID:    r.ensureRule(entry.Code),
			Message:   &sarif.Message{Text: pString(entry.Message)},
			Level:     levelOf(entry.Code),
			Locations: createLocations(report.Source, entry),
		})
	}

	if len(report.Entries) > 0 {
		r.logger.Debug("Wrote results to SARIF buffer",
			zap.String("source", report.Source),
			zap.Int("results_count", len(report.Entries)),
			zap.Duration("duration_ms", time.Since(startTime)),
		)
	}
	return nil
}

// Close finalizes the SARIF log and writes it to the output writer.
func (r *SARIFReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.logger.Debug("Finalizing SARIF report",
		zap.Int("total_results", len(r.log.Runs[0].Results)),
		zap.Int("total_rules", len(r.log.Runs[0].Tool.Driver.Rules)),
	)

	encoder := json.NewEncoder(r.writer)
	encoder.SetIndent("", "  ")

	encodeErr := encoder.Encode(r.log)
	// Always attempt to close the writer, regardless of encoding success.
	closeErr := r.writer.Close()

	if encodeErr != nil {
		r.logger.Error("Failed to encode SARIF log to JSON", zap.Error(encodeErr))
		return fmt.Errorf("failed to encode SARIF output: %w", encodeErr)
	}
	if closeErr != nil {
		r.logger.Error("Failed to close output writer", zap.Error(closeErr))
		return fmt.Errorf("failed to close output writer: %w", closeErr)
	}
	return nil
}

// ruleID returns the SARIF rule id of an error code.
func ruleID(code optimizer.Code) string {
	return "AMP-" + string(code)
}

// ensureRule registers the rule of code on first use and returns its ID.
// NOTE: Must be called while holding the mutex.
func (r *SARIFReporter) ensureRule(code optimizer.Code) string {
	id := ruleID(code)
	if r.known[code] {
		return id
	}
	r.known[code] = true

	def, ok := rules[code]
	if !ok {
		def = rule{name: string(code), description: string(code)}
	}
	driver := r.log.Runs[0].Tool.Driver
	driver.Rules = append(driver.Rules, &sarif.ReportingDescriptor{
		ID:               id,
		Name:             pString(def.name),
		ShortDescription: &sarif.MultiformatMessageString{Text: pString(def.name)},
		FullDescription:  &sarif.MultiformatMessageString{Text: pString(def.description)},
		Help: &sarif.MultiformatMessageString{
			Text:     pString(def.help),
			Markdown: pString(fmt.Sprintf("**%s**\n\n%s\n\n%s", def.name, def.description, def.help)),
		},
		Properties: &sarif.PropertyBag{
			"tags": []string{"amp", "optimizer"},
		},
	})
	return id
}

func levelOf(code optimizer.Code) sarif.Level {
	if def, ok := rules[code]; ok {
		return def.level
	}
	return sarif.LevelNote
}

// createLocations points a result at its document and, when known, at the
// offending element.
func createLocations(source string, entry Entry) []*sarif.Location {
	loc := &sarif.Location{
		PhysicalLocation: &sarif.PhysicalLocation{
			ArtifactLocation: &sarif.ArtifactLocation{URI: pString(source)},
		},
	}
	if entry.XPath != "" {
		loc.LogicalLocations = []*sarif.LogicalLocation{{
			Name:               pString(entry.Tag),
			FullyQualifiedName: pString(entry.XPath),
			Kind:               pString("element"),
		}}
	}
	return []*sarif.Location{loc}
}

// pString returns a pointer to the given string value. Helper for optional SARIF fields.
func pString(s string) *string {
	return &s
}
