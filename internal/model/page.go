package model

import "time"

// SitemapEntry is one page listed by the sitemap, with its optional
// last-modified timestamp. Entries are immutable and consumed once by
// the orchestrator to seed crawl targets.
type SitemapEntry struct {
	// URL is the page location from <loc>.
	URL string `json:"url"`

	// LastModified is the parsed <lastmod> value.
	// The zero time means the sitemap declared no lastmod.
	LastModified time.Time `json:"last_modified,omitzero"`
}

// HasLastModified reports whether the sitemap declared a lastmod value.
func (e SitemapEntry) HasLastModified() bool {
	return !e.LastModified.IsZero()
}

// LinkReference is one anchor observed on one crawled page.
// References are ephemeral: they are folded into occurrence groups as
// pages are fetched and not retained afterwards.
type LinkReference struct {
	// TargetURL is the absolute link target, resolved against the page URL.
	TargetURL string `json:"target_url"`

	// AnchorText is the anchor's visible text, truncated for reporting.
	AnchorText string `json:"anchor_text"`

	// SourcePage is the URL of the page the anchor appeared on.
	SourcePage string `json:"source_page"`

	// IsInternal reports whether the target belongs to the audited site's
	// registered domain (including subdomains when that scope is enabled).
	IsInternal bool `json:"is_internal"`
}

// PageRecord is the outcome of fetching one page. It lives only until its
// links are absorbed into the aggregator; no page HTML is retained.
type PageRecord struct {
	// URL is the fetched page URL.
	URL string `json:"url"`

	// FetchedAt is when the request was issued.
	FetchedAt time.Time `json:"fetched_at"`

	// StatusCode is the HTTP status, or zero when the request failed.
	StatusCode int `json:"status_code"`

	// Canonical is the page's declared <link rel="canonical"> target,
	// resolved to an absolute URL. Empty when the page declares none.
	Canonical string `json:"canonical,omitempty"`

	// Links are the anchors extracted from the page, in document order.
	// Empty for failed fetches and non-HTML responses.
	Links []LinkReference `json:"links"`
}

// Occurrence is one (source page, anchor text) pair referencing a target.
type Occurrence struct {
	// SourcePage is the page the reference appeared on.
	SourcePage string `json:"source_page"`

	// AnchorText is the anchor text used on that page.
	AnchorText string `json:"anchor_text"`
}

// OccurrenceGroup aggregates every reference to one normalized target URL
// across all crawled pages. One group exists per unique target.
type OccurrenceGroup struct {
	// TargetURL is the normalized target all occurrences share.
	TargetURL string `json:"target_url"`

	// Count is the total number of link references observed, including
	// repeats of the same (source, text) pair.
	Count int `json:"occurrence_count"`

	// Sources holds the distinct (source page, anchor text) pairs in
	// first-seen order.
	Sources []Occurrence `json:"sources"`

	// Internal reports whether the target is internal to the audited site.
	// All references to one normalized target share this value.
	Internal bool `json:"internal"`
}
