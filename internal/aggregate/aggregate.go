// Package aggregate folds link references into per-target occurrence
// groups as pages are crawled.
//
// The aggregator is the crawl's only accumulating state: page records are
// discarded once their links are absorbed, so memory grows with the number
// of unique targets, not with the number of pages.
package aggregate

import (
	"sync"

	"github.com/linkcanary/linkcanary/internal/model"
	"github.com/linkcanary/linkcanary/internal/urlutil"
)

// Aggregator groups link references by normalized target URL.
// Safe for concurrent use by the fetch worker pool.
type Aggregator struct {
	mu sync.Mutex

	// groups maps normalized target URL to its occurrence group.
	groups map[string]*model.OccurrenceGroup

	// order preserves first-seen target order for deterministic reports.
	order []string

	// seen deduplicates (target, source, text) triples within a group.
	seen map[string]map[model.Occurrence]bool

	// total counts every reference added, including repeats.
	total int
}

// New creates an empty Aggregator.
func New() *Aggregator {
	return &Aggregator{
		groups: make(map[string]*model.OccurrenceGroup),
		seen:   make(map[string]map[model.Occurrence]bool),
	}
}

// Add folds one link reference into its target's group. It returns the
// normalized target URL and whether this was the first reference to it,
// which is the signal to schedule the target for resolution.
//
// References whose target cannot be parsed are dropped: they can never be
// probed, so counting them would only distort totals.
func (a *Aggregator) Add(ref model.LinkReference) (normalized string, first bool) {
	normalized, err := urlutil.Normalize(ref.TargetURL)
	if err != nil {
		return "", false
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.total++

	group, ok := a.groups[normalized]
	if !ok {
		group = &model.OccurrenceGroup{
			TargetURL: normalized,
			Internal:  ref.IsInternal,
		}
		a.groups[normalized] = group
		a.order = append(a.order, normalized)
		a.seen[normalized] = make(map[model.Occurrence]bool)
		first = true
	}

	group.Count++

	occ := model.Occurrence{SourcePage: ref.SourcePage, AnchorText: ref.AnchorText}
	if !a.seen[normalized][occ] {
		a.seen[normalized][occ] = true
		group.Sources = append(group.Sources, occ)
	}

	return normalized, first
}

// Groups returns every occurrence group in first-seen order.
func (a *Aggregator) Groups() []*model.OccurrenceGroup {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]*model.OccurrenceGroup, 0, len(a.order))
	for _, key := range a.order {
		out = append(out, a.groups[key])
	}
	return out
}

// Total returns the number of references added, counting repeats.
// The sum of group counts always equals this value: aggregation never
// loses or invents a reference.
func (a *Aggregator) Total() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.total
}

// Len returns the number of unique targets seen.
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.order)
}
