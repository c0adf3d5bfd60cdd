package report

import (
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/linkcanary/linkcanary/internal/model"
)

// issueSheetHeader is the column layout of the Issues worksheet.
var issueSheetHeader = []string{
	"Priority", "Type", "Status", "Target URL", "Final URL",
	"Hop Chain", "Source Page", "Example Pages", "Occurrences",
	"Anchor Text", "Internal", "Recommended Fix",
}

// ExcelWriter outputs the report as an Excel workbook with an Issues
// sheet and a Summary sheet. Content teams asked for this format: the
// issue list doubles as a remediation checklist they can sort and filter.
type ExcelWriter struct {
	baseWriter
}

// NewExcelWriter creates an ExcelWriter that outputs to the given writer.
func NewExcelWriter(output io.Writer) *ExcelWriter {
	return &ExcelWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the report as an .xlsx workbook.
func (w *ExcelWriter) Write(report *model.CrawlReport) (int, error) {
	f := excelize.NewFile()
	defer f.Close()

	const issuesSheet = "Issues"
	if err := f.SetSheetName("Sheet1", issuesSheet); err != nil {
		return 0, err
	}

	if err := w.writeIssuesSheet(f, issuesSheet, report.Issues); err != nil {
		return 0, err
	}
	if err := w.writeSummarySheet(f, report); err != nil {
		return 0, err
	}

	n, err := f.WriteTo(w.output)
	return int(n), err
}

// writeIssuesSheet fills the Issues worksheet, one row per issue.
func (w *ExcelWriter) writeIssuesSheet(f *excelize.File, sheet string, issues []model.Issue) error {
	for col, name := range issueSheetHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, name); err != nil {
			return err
		}
	}

	for i, issue := range issues {
		values := []any{
			issue.Priority.String(),
			issue.Type.String(),
			issue.StatusCode,
			issue.TargetURL,
			issue.FinalURL,
			issue.HopChain,
			issue.SourcePage,
			strings.Join(issue.ExamplePages, "\n"),
			issue.OccurrenceCount,
			issue.AnchorText,
			issue.Internal,
			issue.RecommendedFix,
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}

	return nil
}

// writeSummarySheet adds a Summary worksheet with the run's counts.
func (w *ExcelWriter) writeSummarySheet(f *excelize.File, report *model.CrawlReport) error {
	const sheet = "Summary"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	s := report.Summary
	rows := [][2]any{
		{"Site", report.Site},
		{"Started", report.StartedAt.Format("2006-01-02 15:04:05")},
		{"State", report.State},
		{"Pages Crawled", s.PagesCrawled},
		{"Pages Total", s.PagesTotal},
		{"Links Observed", s.LinksObserved},
		{"Unique Targets", s.UniqueTargets},
		{"Critical", s.ByPriority.Critical},
		{"High", s.ByPriority.High},
		{"Medium", s.ByPriority.Medium},
		{"Low", s.ByPriority.Low},
	}

	for i, row := range rows {
		keyCell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		valCell, err := excelize.CoordinatesToCellName(2, i+1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, keyCell, row[0]); err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, valCell, row[1]); err != nil {
			return err
		}
	}

	return nil
}
