package report

import (
	"encoding/json"
	"io"

	"github.com/linkcanary/linkcanary/internal/model"
)

// JSONWriter outputs the full report as indented JSON, suitable for
// piping into jq or archiving alongside CI artifacts.
type JSONWriter struct {
	baseWriter
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer) *JSONWriter {
	return &JSONWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the report as JSON.
func (w *JSONWriter) Write(report *model.CrawlReport) (int, error) {
	counter := &countingWriter{w: w.output}
	enc := json.NewEncoder(counter)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return counter.n, err
	}
	return counter.n, nil
}
