package report

import (
	"io"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/linkcanary/linkcanary/internal/model"
)

// csvRow is the flat CSV shape of one issue. Column names match the
// Markdown and Excel outputs so downstream tooling can treat the formats
// interchangeably.
type csvRow struct {
	Priority        string `csv:"priority"`
	Type            string `csv:"issue_type"`
	StatusCode      int    `csv:"status_code"`
	TargetURL       string `csv:"target_url"`
	FinalURL        string `csv:"final_url"`
	HopChain        string `csv:"hop_chain"`
	SourcePage      string `csv:"source_page"`
	ExamplePages    string `csv:"example_pages"`
	OccurrenceCount int    `csv:"occurrence_count"`
	AnchorText      string `csv:"anchor_text"`
	Internal        bool   `csv:"internal"`
	RecommendedFix  string `csv:"recommended_fix"`
}

// CSVWriter outputs the issue list as CSV, one row per issue.
type CSVWriter struct {
	baseWriter
}

// NewCSVWriter creates a CSVWriter that outputs to the given writer.
func NewCSVWriter(output io.Writer) *CSVWriter {
	return &CSVWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the report's issues as CSV rows with a header line.
func (w *CSVWriter) Write(report *model.CrawlReport) (int, error) {
	rows := make([]csvRow, 0, len(report.Issues))
	for _, issue := range report.Issues {
		rows = append(rows, csvRow{
			Priority:        issue.Priority.String(),
			Type:            issue.Type.String(),
			StatusCode:      issue.StatusCode,
			TargetURL:       issue.TargetURL,
			FinalURL:        issue.FinalURL,
			HopChain:        issue.HopChain,
			SourcePage:      issue.SourcePage,
			ExamplePages:    strings.Join(issue.ExamplePages, " "),
			OccurrenceCount: issue.OccurrenceCount,
			AnchorText:      issue.AnchorText,
			Internal:        issue.Internal,
			RecommendedFix:  issue.RecommendedFix,
		})
	}

	counter := &countingWriter{w: w.output}
	if err := gocsv.Marshal(&rows, counter); err != nil {
		return counter.n, err
	}
	return counter.n, nil
}

// countingWriter tracks bytes written so Write can report them.
type countingWriter struct {
	w io.Writer
	n int
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += n
	return n, err
}
