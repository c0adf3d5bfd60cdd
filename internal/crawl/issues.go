package crawl

import (
	"strings"

	"github.com/linkcanary/linkcanary/internal/model"
)

// maxExamplePages bounds how many referencing pages an aggregated issue
// lists when the target occurs on more than one page.
const maxExamplePages = 5

// multipleSources is the placeholder source when an aggregated issue
// spans more than one page.
const multipleSources = "multiple"

// buildIssues turns one occurrence group and its resolution into report
// rows: a single aggregated row, or one row per occurrence when
// duplicates are expanded.
func buildIssues(group *model.OccurrenceGroup, res *model.Resolution, expand bool) []model.Issue {
	priority := model.ClassifyPriority(res.Type, res.HopCount())

	base := model.Issue{
		TargetURL:      group.TargetURL,
		Internal:       group.Internal,
		StatusCode:     res.StatusCode,
		Type:           res.Type,
		Priority:       priority,
		FinalURL:       finalURLFor(res),
		HopChain:       hopChainFor(res),
		RecommendedFix: model.RecommendedFix(res.Type, res.FinalURL, res.HopCount()),
	}

	if expand {
		rows := make([]model.Issue, 0, len(group.Sources))
		for _, occ := range group.Sources {
			row := base
			row.SourcePage = occ.SourcePage
			row.AnchorText = occ.AnchorText
			row.OccurrenceCount = 1
			rows = append(rows, row)
		}
		return rows
	}

	row := base
	row.OccurrenceCount = group.Count
	if len(group.Sources) > 0 {
		row.AnchorText = group.Sources[0].AnchorText
	}

	pages := distinctPages(group.Sources)
	if len(pages) == 1 {
		row.SourcePage = pages[0]
	} else {
		row.SourcePage = multipleSources
		if len(pages) > maxExamplePages {
			pages = pages[:maxExamplePages]
		}
		row.ExamplePages = pages
	}
	return []model.Issue{row}
}

// finalURLFor reports where a target lands, omitted for direct answers.
func finalURLFor(res *model.Resolution) string {
	if res.HopCount() == 0 && !res.CanonicalMismatch {
		return ""
	}
	return res.FinalURL
}

// hopChainFor renders the redirect chain, omitted for direct answers.
func hopChainFor(res *model.Resolution) string {
	if res.HopCount() == 0 {
		return ""
	}
	return res.HopChainString()
}

// distinctPages returns the unique source pages in first-seen order.
func distinctPages(sources []model.Occurrence) []string {
	seen := make(map[string]bool, len(sources))
	pages := make([]string, 0, len(sources))
	for _, occ := range sources {
		if !seen[occ.SourcePage] {
			seen[occ.SourcePage] = true
			pages = append(pages, occ.SourcePage)
		}
	}
	return pages
}

// matchPattern matches a URL against a shell-style glob where '*' matches
// any run of characters, including '/'. Patterns like "*/tag/*" or
// "https://cdn.*" work as site operators expect.
func matchPattern(pattern, s string) bool {
	if pattern == "" {
		return false
	}

	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		return pattern == s
	}

	if parts[0] != "" {
		if !strings.HasPrefix(s, parts[0]) {
			return false
		}
		s = s[len(parts[0]):]
	}

	last := parts[len(parts)-1]
	if last != "" {
		if !strings.HasSuffix(s, last) {
			return false
		}
		s = s[:len(s)-len(last)]
	}

	for _, part := range parts[1 : len(parts)-1] {
		if part == "" {
			continue
		}
		idx := strings.Index(s, part)
		if idx < 0 {
			return false
		}
		s = s[idx+len(part):]
	}
	return true
}
