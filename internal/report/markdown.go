package report

import (
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/linkcanary/linkcanary/internal/model"
)

// MarkdownWriter outputs reports in Markdown format, designed for
// sharing in pull requests and documentation.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation which provides:
// 1. Type-safe markdown generation
// 2. Support for tables, lists, and code blocks
// 3. GitHub-flavored markdown alerts
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the full report in Markdown format.
func (w *MarkdownWriter) Write(report *model.CrawlReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeSummary(md, report)
	w.writeIssues(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with run information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.CrawlReport) {
	md.H1("Link Audit Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Site", "`" + report.Site + "`"},
			{"Started", report.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Pages Crawled", strconv.Itoa(report.Summary.PagesCrawled) + "/" + strconv.Itoa(report.Summary.PagesTotal)},
			{"Links Observed", strconv.Itoa(report.Summary.LinksObserved)},
			{"Unique Targets", strconv.Itoa(report.Summary.UniqueTargets)},
			{"Status", statusEmoji(report.State)},
		},
	})
	md.PlainText("")
}

// statusEmoji returns the status cell for the terminal crawl state.
func statusEmoji(state string) string {
	switch state {
	case "done":
		return "✅ Complete"
	case "cancelled":
		return "⚠️ Cancelled (partial results)"
	default:
		return "❌ " + state
	}
}

// writeSummary writes the priority summary section.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, report *model.CrawlReport) {
	md.H2("Priority Summary")
	md.PlainText("")

	p := report.Summary.ByPriority
	md.Table(markdown.TableSet{
		Header: []string{"Priority", "Count"},
		Rows: [][]string{
			{"🔴 Critical", strconv.Itoa(p.Critical)},
			{"🟠 High", strconv.Itoa(p.High)},
			{"🟡 Medium", strconv.Itoa(p.Medium)},
			{"🔵 Low", strconv.Itoa(p.Low)},
			{"**Total**", "**" + strconv.Itoa(p.Total()) + "**"},
		},
	})
	md.PlainText("")

	if p.Total() > 0 {
		w.writePieChart(md, p)
	}
	w.writeAlert(md, p)
}

// writePieChart writes a mermaid pie chart of the priority distribution.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, p model.PriorityCounts) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Issue Priority Distribution"),
		piechart.WithShowData(true),
	)

	if p.Critical > 0 {
		chart.LabelAndIntValue("Critical", uint64(p.Critical))
	}
	if p.High > 0 {
		chart.LabelAndIntValue("High", uint64(p.High))
	}
	if p.Medium > 0 {
		chart.LabelAndIntValue("Medium", uint64(p.Medium))
	}
	if p.Low > 0 {
		chart.LabelAndIntValue("Low", uint64(p.Low))
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an appropriate alert based on priority counts.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, p model.PriorityCounts) {
	switch {
	case p.Critical > 0:
		md.Cautionf(
			"Redirect loops or long chains detected! %d critical issue(s) break navigation.",
			p.Critical,
		)
	case p.High > 0:
		md.Warningf(
			"Broken links detected. %d high priority issue(s) should be fixed.",
			p.High,
		)
	case p.Medium > 0:
		md.Importantf(
			"%d link(s) go through avoidable redirects.",
			p.Medium,
		)
	case p.Total() > 0:
		md.Note("Only low priority findings detected.")
	default:
		md.Tip("All checked links are healthy.")
	}
	md.PlainText("")
}

// writeIssues writes all issues grouped by priority tier.
func (w *MarkdownWriter) writeIssues(md *markdown.Markdown, report *model.CrawlReport) {
	md.H2("Issues")
	md.PlainText("")

	if len(report.Issues) == 0 {
		md.PlainText("No issues found.")
		md.PlainText("")
		return
	}

	tiers := []struct {
		level  model.Priority
		header string
	}{
		{model.PriorityCritical, "### 🔴 Critical"},
		{model.PriorityHigh, "### 🟠 High"},
		{model.PriorityMedium, "### 🟡 Medium"},
		{model.PriorityLow, "### 🔵 Low"},
	}

	for _, tier := range tiers {
		issues := issuesByPriority(report.Issues, tier.level)
		if len(issues) == 0 {
			continue
		}

		md.PlainText(tier.header)
		md.PlainText("")
		w.writeIssueTable(md, issues)
	}
}

// writeIssueTable writes one table of issues.
func (w *MarkdownWriter) writeIssueTable(md *markdown.Markdown, issues []model.Issue) {
	rows := make([][]string, len(issues))
	for i, issue := range issues {
		detail := issue.HopChain
		if detail == "" {
			detail = "-"
		}
		fix := issue.RecommendedFix
		if fix == "" {
			fix = "-"
		}

		rows[i] = []string{
			issue.Type.String(),
			statusText(issue.StatusCode),
			"`" + truncateString(issue.TargetURL, 60) + "`",
			truncateString(issue.SourcePage, 40),
			strconv.Itoa(issue.OccurrenceCount),
			truncateString(detail, 60),
			truncateString(fix, 60),
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Type", "Status", "Target", "Source", "Occurs", "Chain", "Fix"},
		Rows:   rows,
	})
	md.PlainText("")
}

// issuesByPriority filters issues to one tier, preserving order.
func issuesByPriority(issues []model.Issue, p model.Priority) []model.Issue {
	var out []model.Issue
	for _, issue := range issues {
		if issue.Priority == p {
			out = append(out, issue)
		}
	}
	return out
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [LinkCanary](https://github.com/linkcanary/linkcanary)*")
}
