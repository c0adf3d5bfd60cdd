// Package report renders crawl reports in the supported output formats:
// console tables, CSV, JSON, Markdown, and Excel workbooks.
package report

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/linkcanary/linkcanary/internal/model"
)

// Writer defines the interface for report output.
//
// Design decision: We use an interface to allow different output formats
// and destinations. This enables writing to files, stdout, or network
// connections with the same API.
type Writer interface {
	// Write outputs the report to the configured destination.
	// Returns the number of bytes written and any error encountered.
	Write(report *model.CrawlReport) (int, error)
}

// DetectFormat resolves the report format: an explicit format wins,
// otherwise it is inferred from the output file's extension, falling
// back to CSV, which is what spreadsheet-bound users expect.
func DetectFormat(explicit, outputFile string) string {
	if explicit != "" {
		return explicit
	}
	switch strings.ToLower(filepath.Ext(outputFile)) {
	case ".json":
		return "json"
	case ".md", ".markdown":
		return "md"
	case ".xlsx":
		return "xlsx"
	default:
		return "csv"
	}
}

// NewWriter creates the Writer for a format name.
func NewWriter(format string, output io.Writer) (Writer, error) {
	switch format {
	case "csv":
		return NewCSVWriter(output), nil
	case "json":
		return NewJSONWriter(output), nil
	case "md":
		return NewMarkdownWriter(output), nil
	case "xlsx":
		return NewExcelWriter(output), nil
	default:
		return nil, fmt.Errorf("unsupported report format %q", format)
	}
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
