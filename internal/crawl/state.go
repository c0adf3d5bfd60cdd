package crawl

// State is the orchestrator's lifecycle phase. Transitions are linear:
// idle -> loading_sitemap -> crawling -> resolving -> aggregating_results
// -> done, with failed and cancelled as alternative terminals.
type State int

const (
	// StateIdle means the crawler was created but not started.
	StateIdle State = iota

	// StateLoadingSitemap means the page set is being fetched.
	StateLoadingSitemap

	// StateCrawling means pages are being fetched and parsed.
	StateCrawling

	// StateResolving means all pages are fetched and the remaining
	// unique targets are being resolved.
	StateResolving

	// StateAggregating means resolutions are being folded into the report.
	StateAggregating

	// StateDone means the crawl finished and the report is complete.
	StateDone

	// StateFailed means the crawl aborted on a fatal error, such as an
	// unreachable root sitemap.
	StateFailed

	// StateCancelled means the crawl was stopped early; the report covers
	// whatever finished before cancellation.
	StateCancelled
)

// String returns the stable state name used in progress output and reports.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoadingSitemap:
		return "loading_sitemap"
	case StateCrawling:
		return "crawling"
	case StateResolving:
		return "resolving"
	case StateAggregating:
		return "aggregating_results"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state is one of the three end states.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed || s == StateCancelled
}
