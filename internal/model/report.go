package model

import "time"

// Progress is one snapshot of a running crawl, emitted at a bounded
// cadence for live display. The crawl never depends on anybody reading it.
type Progress struct {
	// State is the orchestrator's current state name.
	State string `json:"state"`

	// PagesCrawled is how many pages have been fetched so far.
	PagesCrawled int `json:"pages_crawled"`

	// PagesTotal is the number of pages seeded from the sitemap.
	PagesTotal int `json:"pages_total"`

	// LinksChecked is how many unique targets have been resolved so far.
	LinksChecked int `json:"links_checked"`

	// IssuesFound tallies resolved issues by priority, excluding ok links.
	IssuesFound PriorityCounts `json:"issues_found"`

	// Elapsed is the time since the crawl started.
	Elapsed time.Duration `json:"elapsed"`
}

// Summary condenses one finished crawl for console output, webhooks,
// and the history database.
type Summary struct {
	// PagesCrawled is the number of pages fetched.
	PagesCrawled int `json:"pages_crawled"`

	// PagesTotal is the number of pages seeded from the sitemap.
	PagesTotal int `json:"pages_total"`

	// LinksObserved is the total number of link references seen in scope.
	LinksObserved int `json:"links_observed"`

	// UniqueTargets is the number of distinct normalized targets resolved.
	UniqueTargets int `json:"unique_targets"`

	// ByPriority tallies reported issues per severity tier.
	ByPriority PriorityCounts `json:"by_priority"`

	// ByType tallies resolutions per issue type name, including ok links
	// even when skip-ok excludes them from the issue list.
	ByType map[string]int `json:"by_type"`
}

// CrawlReport is the final output of one crawl: the ordered issue set plus
// run metadata. It is immutable once the orchestrator hands it out.
type CrawlReport struct {
	// RunID uniquely identifies this crawl run in the history database.
	RunID string `json:"run_id"`

	// Site is the audited site's host.
	Site string `json:"site"`

	// SitemapURL is the root sitemap the crawl was seeded from.
	// Empty when the page set was supplied directly.
	SitemapURL string `json:"sitemap_url,omitempty"`

	// StartedAt is when the crawl began.
	StartedAt time.Time `json:"started_at"`

	// Elapsed is the total crawl duration.
	Elapsed time.Duration `json:"elapsed"`

	// State is the terminal orchestrator state: done or cancelled.
	State string `json:"state"`

	// Issues is the ordered issue set, one row per occurrence group
	// (or one per occurrence when duplicates are expanded).
	Issues []Issue `json:"issues"`

	// Summary carries the aggregate counts for this run.
	Summary Summary `json:"summary"`
}
