package model

import (
	"fmt"
	"strings"
)

// IssueType classifies the terminal state of one resolved link target.
//
// Design decision: We use iota-based constants rather than raw strings so
// the classifier can switch exhaustively over a closed set. The String()
// method produces the stable names used in reports and the history database.
type IssueType int

const (
	// IssueOK means the target answered 2xx without any redirect.
	IssueOK IssueType = iota

	// IssueBroken means the target terminated on a 4xx/5xx status,
	// or on a 3xx response that carried no Location header.
	IssueBroken

	// IssueRedirect means the target reached 2xx after exactly one hop.
	IssueRedirect

	// IssueRedirectChain means the target reached 2xx after two or more hops.
	IssueRedirectChain

	// IssueRedirectLoop means the redirect chain revisited a URL it had
	// already passed through, or exceeded the hop ceiling without resolving.
	IssueRedirectLoop

	// IssueCanonicalRedirect is a single-hop redirect whose only effect is
	// URL normalization: trailing slash, letter case, or http->https.
	IssueCanonicalRedirect

	// IssueError means the request failed at the network level
	// (timeout, DNS failure, connection refused).
	IssueError
)

// String returns the stable report name of the issue type.
func (t IssueType) String() string {
	switch t {
	case IssueOK:
		return "ok"
	case IssueBroken:
		return "broken"
	case IssueRedirect:
		return "redirect"
	case IssueRedirectChain:
		return "redirect_chain"
	case IssueRedirectLoop:
		return "redirect_loop"
	case IssueCanonicalRedirect:
		return "canonical_redirect"
	case IssueError:
		return "error"
	default:
		return "unknown"
	}
}

// ParseIssueType converts a stable report name back to an IssueType.
// This is used when reloading issues from the history database.
func ParseIssueType(s string) (IssueType, error) {
	switch s {
	case "ok":
		return IssueOK, nil
	case "broken":
		return IssueBroken, nil
	case "redirect":
		return IssueRedirect, nil
	case "redirect_chain":
		return IssueRedirectChain, nil
	case "redirect_loop":
		return IssueRedirectLoop, nil
	case "canonical_redirect":
		return IssueCanonicalRedirect, nil
	case "error":
		return IssueError, nil
	default:
		return IssueOK, fmt.Errorf("unknown issue type %q", s)
	}
}

// Hop is one observed step in a redirect chain: the status code returned
// by a URL, paired with that URL. The first hop is always the original
// target; the last hop is the terminal response.
type Hop struct {
	// StatusCode is the HTTP status the URL answered with.
	// Zero means the request itself failed.
	StatusCode int `json:"status_code"`

	// URL is the requested URL for this hop.
	URL string `json:"url"`
}

// FormatHopChain renders a hop chain as "301:/a → 302:/b → 200:/c".
// An empty chain renders as the empty string.
func FormatHopChain(hops []Hop) string {
	if len(hops) == 0 {
		return ""
	}
	parts := make([]string, 0, len(hops))
	for _, h := range hops {
		parts = append(parts, fmt.Sprintf("%d:%s", h.StatusCode, h.URL))
	}
	return strings.Join(parts, " → ")
}

// Resolution is the immutable result of resolving one unique normalized
// target URL. It is computed at most once per crawl and cached for the
// crawl's lifetime.
type Resolution struct {
	// TargetURL is the normalized URL that was resolved.
	TargetURL string `json:"target_url"`

	// FinalURL is the last URL in the hop chain.
	FinalURL string `json:"final_url"`

	// StatusCode is the status of the terminal hop.
	StatusCode int `json:"status_code"`

	// Hops is the ordered chain of (status, url) pairs observed.
	Hops []Hop `json:"hops"`

	// Type is the classified issue type for this resolution.
	Type IssueType `json:"issue_type"`

	// CanonicalMismatch reports that the final URL differs from the
	// target (or the final page's declared canonical) only by trailing
	// slash, case, or scheme.
	CanonicalMismatch bool `json:"canonical_mismatch"`

	// Err describes the network failure when Type is IssueError.
	Err string `json:"error,omitempty"`
}

// HopCount returns the number of redirects followed: the chain length
// minus the terminal response. A direct 2xx answer has zero hops.
func (r *Resolution) HopCount() int {
	if len(r.Hops) <= 1 {
		return 0
	}
	return len(r.Hops) - 1
}

// HopChainString renders the resolution's hop chain for reports.
func (r *Resolution) HopChainString() string {
	return FormatHopChain(r.Hops)
}

// Issue is one denormalized row of the final report: a link target with a
// problem (or, when skip-ok is off, a healthy one), mapped back to the
// pages that reference it.
type Issue struct {
	// SourcePage is the referencing page, or "multiple" when the target
	// occurs on more than one page and duplicates are aggregated.
	SourcePage string `json:"source_page"`

	// ExamplePages lists up to five referencing pages when SourcePage
	// is "multiple".
	ExamplePages []string `json:"example_pages,omitempty"`

	// OccurrenceCount is how many link references point at TargetURL.
	OccurrenceCount int `json:"occurrence_count"`

	// TargetURL is the normalized link target this issue is about.
	TargetURL string `json:"target_url"`

	// AnchorText is the visible text of the first observed occurrence.
	AnchorText string `json:"anchor_text,omitempty"`

	// Internal reports whether the target belongs to the audited site.
	Internal bool `json:"internal"`

	// StatusCode is the terminal status of the resolution.
	StatusCode int `json:"status_code"`

	// Type is the issue classification.
	Type IssueType `json:"issue_type"`

	// Priority is the severity tier derived from Type and hop count.
	Priority Priority `json:"priority"`

	// HopChain is the formatted redirect chain, empty for direct answers.
	HopChain string `json:"hop_chain,omitempty"`

	// FinalURL is where the target actually ends up, empty when the
	// target did not redirect.
	FinalURL string `json:"final_url,omitempty"`

	// RecommendedFix is a human-readable remediation hint.
	RecommendedFix string `json:"recommended_fix,omitempty"`
}

// RecommendedFix returns the remediation hint for an issue type.
// finalURL and hopCount refine the message for redirect issues.
func RecommendedFix(t IssueType, finalURL string, hopCount int) string {
	switch t {
	case IssueRedirectLoop:
		return "Remove link - redirect loop detected"
	case IssueRedirectChain:
		return fmt.Sprintf("Update to %s to eliminate %d redirect hops", finalURL, hopCount)
	case IssueRedirect:
		return "Update link to: " + finalURL
	case IssueCanonicalRedirect:
		return fmt.Sprintf("Update to canonical form: %s (trailing slash/case/scheme)", finalURL)
	case IssueBroken:
		return "Remove link or update to a valid page"
	case IssueError:
		return "Check link manually - request failed"
	case IssueOK:
		return ""
	default:
		return ""
	}
}
