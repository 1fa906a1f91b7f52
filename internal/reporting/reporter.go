// internal/reporting/reporter.go
package reporting

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// Reporter collects the reports of a run and writes them out.
type Reporter interface {
	// Write adds the report of one document.
	Write(report *Report) error
	// Close finalizes the output and closes any underlying resources (e.g., file handles).
	Close() error
}

// nopWriteCloser wraps an io.Writer and provides a no-op Close method.
type nopWriteCloser struct {
	io.Writer
}

func (nwc *nopWriteCloser) Close() error {
	return nil
}

// New creates a reporter for the given format ("json" or "sarif") writing to
// outputPath. An empty path or "stdout" writes to standard output.
func New(format, outputPath, toolVersion string) (Reporter, error) {
	var writer io.WriteCloser
	isStdOut := outputPath == "" || outputPath == "stdout"

	switch format {
	case "json", "sarif":
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}

	if isStdOut {
		writer = &nopWriteCloser{os.Stdout}
	} else {
		f, err := os.Create(outputPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create output file %s: %w", outputPath, err)
		}
		writer = f
	}

	if format == "sarif" {
		return NewSARIFReporter(writer, toolVersion), nil
	}
	return NewJSONReporter(writer), nil
}

// JSONReporter writes every report as one JSON document. It is thread safe.
type JSONReporter struct {
	writer  io.WriteCloser
	mu      sync.Mutex
	reports []*Report
}

// NewJSONReporter creates a reporter writing {"reports": [...]} on Close.
func NewJSONReporter(writer io.WriteCloser) *JSONReporter {
	return &JSONReporter{writer: writer, reports: []*Report{}}
}

// Write implements Reporter.
func (r *JSONReporter) Write(report *Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, report)
	return nil
}

// Close implements Reporter.
func (r *JSONReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	enc := json.NewEncoder(r.writer)
	enc.SetIndent("", "  ")
	encodeErr := enc.Encode(struct {
		Reports []*Report `json:"reports"`
	}{r.reports})
	closeErr := r.writer.Close()

	if encodeErr != nil {
		return fmt.Errorf("failed to encode reports: %w", encodeErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close output writer: %w", closeErr)
	}
	return nil
}
