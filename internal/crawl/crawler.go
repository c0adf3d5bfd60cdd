// Package crawl orchestrates a link audit: it seeds pages from the
// sitemap, fans page fetches and target resolutions out over bounded
// worker pools, and folds the results into a final report.
package crawl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/linkcanary/linkcanary/internal/aggregate"
	"github.com/linkcanary/linkcanary/internal/config"
	"github.com/linkcanary/linkcanary/internal/fetcher"
	"github.com/linkcanary/linkcanary/internal/model"
	"github.com/linkcanary/linkcanary/internal/resolver"
	"github.com/linkcanary/linkcanary/internal/sitemap"
	"github.com/linkcanary/linkcanary/internal/urlutil"
)

// ErrFatal wraps errors that abort a crawl before any page is audited,
// such as an unreachable root sitemap. Callers use it to distinguish a
// failed run (exit code for crawl failure) from a run that found issues.
var ErrFatal = errors.New("crawl failed")

// progressInterval is the cadence of progress snapshots. Half a second is
// fast enough for a live terminal display without flooding consumers.
const progressInterval = 500 * time.Millisecond

// Crawler runs one audit from seed to report. A Crawler is single-use:
// create a new one per run.
type Crawler struct {
	cfg      *config.Config
	loader   *sitemap.Loader
	fetcher  *fetcher.Fetcher
	resolver *resolver.Resolver
	agg      *aggregate.Aggregator
	logger   *slog.Logger

	// entries, when non-nil, bypasses the sitemap loader. Used for
	// single-page checks and URL-list files.
	entries []model.SitemapEntry

	// progressCh delivers snapshots to at most one consumer. Sends are
	// non-blocking: a slow or absent consumer never stalls the crawl.
	progressCh chan model.Progress

	cancel context.CancelFunc

	mu           sync.Mutex
	state        State
	pagesCrawled int
	pagesTotal   int
	linksChecked int
	issueCounts  model.PriorityCounts
	resolutions  map[string]*model.Resolution
	canonicals   map[string]string
	startedAt    time.Time
}

// Option configures a Crawler.
type Option func(*Crawler)

// WithEntries seeds the crawl with an explicit page set instead of
// loading a sitemap.
func WithEntries(entries []model.SitemapEntry) Option {
	return func(c *Crawler) {
		c.entries = entries
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Crawler) {
		c.logger = logger
	}
}

// New creates a Crawler wiring together the loader, fetcher and resolver.
func New(cfg *config.Config, loader *sitemap.Loader, f *fetcher.Fetcher, r *resolver.Resolver, opts ...Option) *Crawler {
	c := &Crawler{
		cfg:         cfg,
		loader:      loader,
		fetcher:     f,
		resolver:    r,
		agg:         aggregate.New(),
		logger:      slog.Default(),
		progressCh:  make(chan model.Progress, 8),
		state:       StateIdle,
		resolutions: make(map[string]*model.Resolution),
		canonicals:  make(map[string]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Progress returns the channel progress snapshots are delivered on.
// The crawl publishes periodic snapshots plus one final snapshot carrying
// the terminal state, then closes the channel.
func (c *Crawler) Progress() <-chan model.Progress {
	return c.progressCh
}

// State returns the current lifecycle state.
func (c *Crawler) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Stop cancels a running crawl. The crawl winds down its workers and
// Run returns a report covering whatever completed. Safe to call from
// any goroutine, including before Run has started.
func (c *Crawler) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Run executes the crawl to completion, cancellation, or fatal failure.
// On cancellation the returned report is partial but well-formed; on a
// fatal failure (wrapped in ErrFatal) the report is nil.
func (c *Crawler) Run(ctx context.Context) (*model.CrawlReport, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.mu.Lock()
	c.cancel = cancel
	c.startedAt = time.Now()
	c.mu.Unlock()

	entries, err := c.seed(ctx)
	if err != nil {
		// Cancellation during seeding is not a crawl failure: nothing was
		// audited, but the report contract still holds.
		if ctx.Err() != nil {
			c.setState(StateCancelled)
			report := c.buildReport()
			report.State = c.State().String()
			c.finishProgress()
			return report, nil
		}
		c.setState(StateFailed)
		c.finishProgress()
		return nil, fmt.Errorf("%w: %v", ErrFatal, err)
	}

	c.mu.Lock()
	c.pagesTotal = len(entries)
	c.mu.Unlock()

	done := make(chan struct{})
	go c.emitProgress(ctx, done)

	c.crawlAndResolve(ctx, entries)

	c.setState(StateAggregating)
	report := c.buildReport()

	if ctx.Err() != nil {
		c.setState(StateCancelled)
	} else {
		c.setState(StateDone)
	}
	report.State = c.State().String()

	close(done)
	c.finishProgress()

	c.logger.Info("crawl finished",
		"state", report.State,
		"pages", report.Summary.PagesCrawled,
		"links", report.Summary.LinksObserved,
		"unique_targets", report.Summary.UniqueTargets,
		"issues", len(report.Issues),
	)
	return report, nil
}

// seed produces the page set, either from the configured sitemap or from
// an explicit entry list.
func (c *Crawler) seed(ctx context.Context) ([]model.SitemapEntry, error) {
	c.setState(StateLoadingSitemap)

	if c.entries != nil {
		entries := c.entries
		if c.cfg.MaxPages > 0 && len(entries) > c.cfg.MaxPages {
			entries = entries[:c.cfg.MaxPages]
		}
		return entries, nil
	}

	return c.loader.Load(ctx, c.cfg.SitemapURL, sitemap.Filter{
		Since:    c.cfg.Since,
		MaxPages: c.cfg.MaxPages,
	})
}

// crawlAndResolve runs the fetch pool and the resolve pool concurrently.
// Fetch workers feed newly discovered unique targets to resolve workers
// through a buffered channel; when every page is fetched the channel
// closes and the resolvers drain it.
func (c *Crawler) crawlAndResolve(ctx context.Context, entries []model.SitemapEntry) {
	c.setState(StateCrawling)

	targets := make(chan string, 256)

	var resolveGroup errgroup.Group
	resolveGroup.SetLimit(c.cfg.ResolveWorkers)

	var resolveWG sync.WaitGroup
	resolveWG.Add(1)
	go func() {
		defer resolveWG.Done()
		for target := range targets {
			if ctx.Err() != nil {
				continue // drain without probing
			}
			t := target
			resolveGroup.Go(func() error {
				c.resolveTarget(ctx, t)
				return nil
			})
		}
		resolveGroup.Wait()
	}()

	fetchGroup := &errgroup.Group{}
	fetchGroup.SetLimit(c.cfg.FetchWorkers)
	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		pageURL := entry.URL
		fetchGroup.Go(func() error {
			c.fetchPage(ctx, pageURL, targets)
			return nil
		})
	}
	fetchGroup.Wait()
	close(targets)

	c.setState(StateResolving)
	resolveWG.Wait()
}

// fetchPage fetches one page, records its canonical declaration, and
// folds its in-scope links into the aggregator, scheduling first-seen
// targets for resolution.
func (c *Crawler) fetchPage(ctx context.Context, pageURL string, targets chan<- string) {
	record, err := c.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return // context cancelled
	}

	c.mu.Lock()
	c.pagesCrawled++
	if record.Canonical != "" {
		if key, err := urlutil.Normalize(record.URL); err == nil {
			c.canonicals[key] = record.Canonical
		}
	}
	c.mu.Unlock()

	for _, ref := range record.Links {
		if !c.inScope(ref) {
			continue
		}
		if _, first := c.agg.Add(ref); first {
			normalized, _ := urlutil.Normalize(ref.TargetURL)
			select {
			case targets <- normalized:
			case <-ctx.Done():
				return
			}
		}
	}
}

// resolveTarget resolves one unique target and records the outcome.
func (c *Crawler) resolveTarget(ctx context.Context, target string) {
	res := c.resolver.Resolve(ctx, target)
	res = c.refineCanonical(res)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.resolutions[target] = res
	c.linksChecked++
	if res.Type != model.IssueOK {
		c.issueCounts.Add(model.ClassifyPriority(res.Type, res.HopCount()))
	}
}

// refineCanonical upgrades a healthy resolution to canonical_redirect
// when the landed page itself declares a canonical URL that differs from
// the target only by trailing slash, case, or scheme. The link works, but
// the site is telling us it prefers the other spelling.
func (c *Crawler) refineCanonical(res *model.Resolution) *model.Resolution {
	if res.Type != model.IssueOK {
		return res
	}

	finalKey, err := urlutil.Normalize(res.FinalURL)
	if err != nil {
		return res
	}

	c.mu.Lock()
	declared := c.canonicals[finalKey]
	c.mu.Unlock()

	if declared == "" {
		return res
	}
	declaredKey, err := urlutil.Normalize(declared)
	if err != nil || declaredKey == finalKey {
		return res
	}
	if !urlutil.IsCanonicalVariant(res.FinalURL, declared) {
		return res
	}

	refined := *res
	refined.Type = model.IssueCanonicalRedirect
	refined.CanonicalMismatch = true
	refined.FinalURL = declared
	return &refined
}

// inScope applies the internal/external split and the include/exclude
// glob patterns before a reference reaches the aggregator.
func (c *Crawler) inScope(ref model.LinkReference) bool {
	if c.cfg.InternalOnly && !ref.IsInternal {
		return false
	}
	if c.cfg.ExternalOnly && ref.IsInternal {
		return false
	}

	for _, pattern := range c.cfg.ExcludePatterns {
		if matchPattern(pattern, ref.TargetURL) {
			return false
		}
	}

	if len(c.cfg.IncludePatterns) > 0 {
		for _, pattern := range c.cfg.IncludePatterns {
			if matchPattern(pattern, ref.TargetURL) {
				return true
			}
		}
		return false
	}
	return true
}

// setState records a lifecycle transition.
func (c *Crawler) setState(s State) {
	c.mu.Lock()
	prev := c.state
	c.state = s
	c.mu.Unlock()
	if prev != s {
		c.logger.Debug("state transition", "from", prev.String(), "to", s.String())
	}
}

// snapshot captures the current progress under the lock.
func (c *Crawler) snapshot() model.Progress {
	c.mu.Lock()
	defer c.mu.Unlock()
	return model.Progress{
		State:        c.state.String(),
		PagesCrawled: c.pagesCrawled,
		PagesTotal:   c.pagesTotal,
		LinksChecked: c.linksChecked,
		IssuesFound:  c.issueCounts,
		Elapsed:      time.Since(c.startedAt),
	}
}

// finishProgress delivers the terminal snapshot and closes the channel.
// Every crawl ends with one snapshot carrying its terminal state, even
// when it finishes before the first ticker fires. The send never blocks.
func (c *Crawler) finishProgress() {
	select {
	case c.progressCh <- c.snapshot():
	default:
	}
	close(c.progressCh)
}

// emitProgress publishes snapshots at the fixed cadence until the crawl
// reaches a terminal state. Sends never block.
func (c *Crawler) emitProgress(ctx context.Context, done <-chan struct{}) {
	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			select {
			case c.progressCh <- c.snapshot():
			default:
			}
		}
	}
}

// buildReport assembles the final report from the aggregator and the
// resolution cache.
func (c *Crawler) buildReport() *model.CrawlReport {
	c.mu.Lock()
	startedAt := c.startedAt
	pagesCrawled := c.pagesCrawled
	pagesTotal := c.pagesTotal
	c.mu.Unlock()

	site := c.siteHost()
	groups := c.agg.Groups()

	issues := make([]model.Issue, 0, len(groups))
	byType := make(map[string]int)
	var byPriority model.PriorityCounts

	for _, group := range groups {
		c.mu.Lock()
		res, ok := c.resolutions[group.TargetURL]
		c.mu.Unlock()
		if !ok {
			// Target never resolved: the crawl was cancelled first.
			continue
		}

		byType[res.Type.String()]++

		if c.cfg.SkipOK && res.Type == model.IssueOK {
			continue
		}

		rows := buildIssues(group, res, c.cfg.ExpandDuplicates)
		// Healthy links may appear in the report but never count as
		// issues: the fail threshold only sees real problems.
		if res.Type != model.IssueOK {
			for _, row := range rows {
				byPriority.Add(row.Priority)
			}
		}
		issues = append(issues, rows...)
	}

	return &model.CrawlReport{
		RunID:      uuid.NewString(),
		Site:       site,
		SitemapURL: c.cfg.SitemapURL,
		StartedAt:  startedAt,
		Elapsed:    time.Since(startedAt),
		Issues:     issues,
		Summary: model.Summary{
			PagesCrawled:  pagesCrawled,
			PagesTotal:    pagesTotal,
			LinksObserved: c.agg.Total(),
			UniqueTargets: c.agg.Len(),
			ByPriority:    byPriority,
			ByType:        byType,
		},
	}
}

// siteHost derives the audited site's host from the configured input.
func (c *Crawler) siteHost() string {
	switch {
	case c.cfg.SitemapURL != "":
		return urlutil.Domain(c.cfg.SitemapURL)
	case c.cfg.PageURL != "":
		return urlutil.Domain(c.cfg.PageURL)
	case len(c.entries) > 0:
		return urlutil.Domain(c.entries[0].URL)
	default:
		return ""
	}
}
