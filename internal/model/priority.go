package model

// Priority represents the severity tier of an issue.
// Tiers order remediation work: a redirect loop breaks navigation outright,
// while a single redirect merely wastes a round trip.
type Priority int

const (
	// PriorityLow covers healthy links, network errors, and anything
	// that needs a manual look rather than an urgent fix.
	PriorityLow Priority = iota

	// PriorityMedium covers single redirects and canonical-form mismatches.
	PriorityMedium

	// PriorityHigh covers broken links and two-hop redirect chains.
	PriorityHigh

	// PriorityCritical covers redirect loops and chains of three or more hops.
	PriorityCritical
)

// String returns the lowercase report name of the priority.
func (p Priority) String() string {
	switch p {
	case PriorityCritical:
		return "critical"
	case PriorityHigh:
		return "high"
	case PriorityMedium:
		return "medium"
	case PriorityLow:
		return "low"
	default:
		return "unknown"
	}
}

// ParsePriority converts a report name back to a Priority.
// Unknown names map to PriorityLow.
func ParsePriority(s string) Priority {
	switch s {
	case "critical":
		return PriorityCritical
	case "high":
		return PriorityHigh
	case "medium":
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// ClassifyPriority maps a resolution to its severity tier.
//
// It is a pure function of (issue type, hop count) so a report can be
// regenerated from a saved issue list without re-crawling:
//
//	redirect_loop            -> critical
//	redirect_chain, >=3 hops -> critical
//	broken                   -> high
//	redirect_chain, 2 hops   -> high
//	redirect                 -> medium
//	canonical_redirect       -> medium
//	error                    -> low
//	ok                       -> low
func ClassifyPriority(t IssueType, hopCount int) Priority {
	switch t {
	case IssueRedirectLoop:
		return PriorityCritical
	case IssueRedirectChain:
		if hopCount >= 3 {
			return PriorityCritical
		}
		return PriorityHigh
	case IssueBroken:
		return PriorityHigh
	case IssueRedirect:
		return PriorityMedium
	case IssueCanonicalRedirect:
		return PriorityMedium
	case IssueError:
		return PriorityLow
	case IssueOK:
		return PriorityLow
	default:
		return PriorityLow
	}
}

// PriorityCounts tallies issues per severity tier.
type PriorityCounts struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
}

// Add increments the tally for one priority.
func (c *PriorityCounts) Add(p Priority) {
	switch p {
	case PriorityCritical:
		c.Critical++
	case PriorityHigh:
		c.High++
	case PriorityMedium:
		c.Medium++
	case PriorityLow:
		c.Low++
	}
}

// Total returns the sum across all tiers.
func (c PriorityCounts) Total() int {
	return c.Critical + c.High + c.Medium + c.Low
}

// AtOrAbove returns how many issues sit at the given tier or higher.
func (c PriorityCounts) AtOrAbove(p Priority) int {
	n := 0
	if p <= PriorityCritical {
		n += c.Critical
	}
	if p <= PriorityHigh {
		n += c.High
	}
	if p <= PriorityMedium {
		n += c.Medium
	}
	if p <= PriorityLow {
		n += c.Low
	}
	return n
}
