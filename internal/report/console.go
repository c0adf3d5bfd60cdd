package report

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/rodaine/table"

	"github.com/linkcanary/linkcanary/internal/model"
)

// ConsoleWriter renders the report as human-readable terminal output:
// a summary block followed by an issue table sorted as aggregated.
type ConsoleWriter struct {
	baseWriter
}

// NewConsoleWriter creates a ConsoleWriter that outputs to the given writer.
func NewConsoleWriter(output io.Writer) *ConsoleWriter {
	return &ConsoleWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the report as a summary plus issue table.
func (w *ConsoleWriter) Write(report *model.CrawlReport) (int, error) {
	var total int

	n, err := w.writeSummary(report)
	total += n
	if err != nil {
		return total, err
	}

	if len(report.Issues) == 0 {
		n, err = fmt.Fprintln(w.output, "No issues found.")
		return total + n, err
	}

	tbl := table.New("PRIORITY", "TYPE", "STATUS", "TARGET", "OCCURS", "SOURCE", "FIX")
	tbl.WithWriter(w.output)

	for _, issue := range report.Issues {
		tbl.AddRow(
			issue.Priority.String(),
			issue.Type.String(),
			statusText(issue.StatusCode),
			truncateString(issue.TargetURL, 60),
			strconv.Itoa(issue.OccurrenceCount),
			truncateString(issue.SourcePage, 40),
			truncateString(issue.RecommendedFix, 50),
		)
	}
	tbl.Print()

	return total, nil
}

// writeSummary prints the run header and aggregate counts.
func (w *ConsoleWriter) writeSummary(report *model.CrawlReport) (int, error) {
	var total int

	n, err := fmt.Fprintf(w.output, "Site: %s\n", report.Site)
	total += n
	if err != nil {
		return total, err
	}

	s := report.Summary
	n, err = fmt.Fprintf(w.output,
		"Pages: %d/%d  Links: %d  Unique targets: %d  Elapsed: %s\n",
		s.PagesCrawled, s.PagesTotal, s.LinksObserved, s.UniqueTargets,
		report.Elapsed.Round(10*time.Millisecond),
	)
	total += n
	if err != nil {
		return total, err
	}

	n, err = fmt.Fprintf(w.output,
		"Issues: %d critical, %d high, %d medium, %d low\n\n",
		s.ByPriority.Critical, s.ByPriority.High, s.ByPriority.Medium, s.ByPriority.Low,
	)
	total += n
	return total, err
}

// statusText renders a status code, with "-" for failed requests.
func statusText(code int) string {
	if code == 0 {
		return "-"
	}
	return strconv.Itoa(code)
}
