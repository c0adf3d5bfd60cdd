package crawl

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/linkcanary/linkcanary/internal/config"
	"github.com/linkcanary/linkcanary/internal/fetcher"
	"github.com/linkcanary/linkcanary/internal/model"
	"github.com/linkcanary/linkcanary/internal/resolver"
	"github.com/linkcanary/linkcanary/internal/sitemap"
)

// newTestSite builds an httptest server with a sitemap, two pages, and a
// mix of healthy, redirecting and broken link targets.
func newTestSite(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`<urlset>
  <url><loc>` + srv.URL + `/</loc></url>
  <url><loc>` + srv.URL + `/blog</loc></url>
</urlset>`)) //nolint:errcheck
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><body>
  <a href="/about">About</a>
  <a href="/missing">Missing</a>
  <a href="/old">Old</a>
</body></html>`)) //nolint:errcheck
	})
	mux.HandleFunc("/blog", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><body>
  <a href="/missing">Still missing</a>
</body></html>`)) //nolint:errcheck
	})
	mux.HandleFunc("/about", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><body>About</body></html>`)) //nolint:errcheck
	})
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/about", http.StatusMovedPermanently)
	})

	return srv
}

// newTestCrawler wires a crawler against the test site with unthrottled,
// low-concurrency defaults.
func newTestCrawler(srv *httptest.Server, cfg *config.Config, opts ...Option) *Crawler {
	loader := sitemap.New(srv.Client())
	f := fetcher.New(srv.Client(), srv.URL)
	r := resolver.New(srv.Client())
	return New(cfg, loader, f, r, opts...)
}

func testConfig(srv *httptest.Server) *config.Config {
	cfg := config.NewConfig()
	cfg.SitemapURL = srv.URL + "/sitemap.xml"
	cfg.Delay = 0
	cfg.FetchWorkers = 2
	cfg.ResolveWorkers = 2
	return cfg
}

// TestRunEndToEnd exercises a full crawl against a small site.
func TestRunEndToEnd(t *testing.T) {
	t.Parallel()

	srv := newTestSite(t)
	cfg := testConfig(srv)

	c := newTestCrawler(srv, cfg)
	report, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.State != "done" {
		t.Errorf("State = %q, want done", report.State)
	}
	if c.State() != StateDone {
		t.Errorf("crawler state = %v, want done", c.State())
	}
	if report.Site == "" {
		t.Error("expected Site to be derived from the sitemap URL")
	}
	if report.RunID == "" {
		t.Error("expected a RunID")
	}

	s := report.Summary
	if s.PagesCrawled != 2 || s.PagesTotal != 2 {
		t.Errorf("pages = %d/%d, want 2/2", s.PagesCrawled, s.PagesTotal)
	}
	// 3 links on / plus 1 on /blog.
	if s.LinksObserved != 4 {
		t.Errorf("LinksObserved = %d, want 4", s.LinksObserved)
	}
	if s.UniqueTargets != 3 {
		t.Errorf("UniqueTargets = %d, want 3", s.UniqueTargets)
	}
	if s.ByType["ok"] != 1 || s.ByType["broken"] != 1 || s.ByType["redirect"] != 1 {
		t.Errorf("ByType = %v, want one ok, one broken, one redirect", s.ByType)
	}
	// The healthy /about link is a report row but not an issue.
	if s.ByPriority.Total() != 2 {
		t.Errorf("ByPriority.Total = %d, want 2", s.ByPriority.Total())
	}
	if s.ByPriority.High != 1 || s.ByPriority.Medium != 1 {
		t.Errorf("ByPriority = %+v, want broken=high and redirect=medium", s.ByPriority)
	}
	if len(report.Issues) != 3 {
		t.Fatalf("got %d rows, want 3 (ok rows included without skip-ok)", len(report.Issues))
	}

	for _, issue := range report.Issues {
		if issue.Type == model.IssueBroken {
			if issue.StatusCode != http.StatusNotFound {
				t.Errorf("broken StatusCode = %d, want 404", issue.StatusCode)
			}
			if issue.OccurrenceCount != 2 {
				t.Errorf("broken OccurrenceCount = %d, want 2 (one per page)", issue.OccurrenceCount)
			}
			if issue.SourcePage != "multiple" {
				t.Errorf("broken SourcePage = %q, want multiple", issue.SourcePage)
			}
			if len(issue.ExamplePages) != 2 {
				t.Errorf("broken ExamplePages = %v, want both referencing pages", issue.ExamplePages)
			}
		}
		if issue.Type == model.IssueRedirect {
			if issue.FinalURL != srv.URL+"/about" {
				t.Errorf("redirect FinalURL = %q, want the destination", issue.FinalURL)
			}
			if issue.HopChain == "" {
				t.Error("redirect row should carry a hop chain")
			}
		}
		if issue.Type == model.IssueOK {
			if issue.FinalURL != "" || issue.HopChain != "" {
				t.Errorf("ok row should omit final URL and hop chain, got %q / %q",
					issue.FinalURL, issue.HopChain)
			}
		}
	}
}

// TestRunSkipOK verifies healthy links are dropped from the rows but kept
// in the type tally.
func TestRunSkipOK(t *testing.T) {
	t.Parallel()

	srv := newTestSite(t)
	cfg := testConfig(srv)
	cfg.SkipOK = true

	report, err := newTestCrawler(srv, cfg).Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(report.Issues) != 2 {
		t.Fatalf("got %d rows, want 2 with skip-ok", len(report.Issues))
	}
	for _, issue := range report.Issues {
		if issue.Type == model.IssueOK {
			t.Errorf("ok row survived skip-ok: %+v", issue)
		}
	}
	if report.Summary.ByType["ok"] != 1 {
		t.Errorf("ByType[ok] = %d, want 1 even with skip-ok", report.Summary.ByType["ok"])
	}
}

// TestRunExpandDuplicates verifies one row per occurrence.
func TestRunExpandDuplicates(t *testing.T) {
	t.Parallel()

	srv := newTestSite(t)
	cfg := testConfig(srv)
	cfg.ExpandDuplicates = true
	cfg.SkipOK = true

	report, err := newTestCrawler(srv, cfg).Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var brokenRows []model.Issue
	for _, issue := range report.Issues {
		if issue.Type == model.IssueBroken {
			brokenRows = append(brokenRows, issue)
		}
	}
	if len(brokenRows) != 2 {
		t.Fatalf("got %d broken rows, want 2 expanded occurrences", len(brokenRows))
	}
	for _, row := range brokenRows {
		if row.OccurrenceCount != 1 {
			t.Errorf("expanded OccurrenceCount = %d, want 1", row.OccurrenceCount)
		}
		if row.SourcePage == "" || row.SourcePage == "multiple" {
			t.Errorf("expanded SourcePage = %q, want a concrete page", row.SourcePage)
		}
	}
	// Expanded rows each count toward the priority tally.
	if report.Summary.ByPriority.High != 2 {
		t.Errorf("ByPriority.High = %d, want 2", report.Summary.ByPriority.High)
	}
}

// TestRunExcludePattern verifies excluded targets never reach resolution.
func TestRunExcludePattern(t *testing.T) {
	t.Parallel()

	srv := newTestSite(t)
	cfg := testConfig(srv)
	cfg.ExcludePatterns = []string{"*/missing"}

	report, err := newTestCrawler(srv, cfg).Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.Summary.UniqueTargets != 2 {
		t.Errorf("UniqueTargets = %d, want 2 after exclusion", report.Summary.UniqueTargets)
	}
	for _, issue := range report.Issues {
		if issue.Type == model.IssueBroken {
			t.Errorf("excluded target was still resolved: %+v", issue)
		}
	}
}

// TestRunWithEntries verifies an explicit page set bypasses the loader.
func TestRunWithEntries(t *testing.T) {
	t.Parallel()

	srv := newTestSite(t)
	cfg := testConfig(srv)
	cfg.SitemapURL = ""
	cfg.PageURL = srv.URL + "/blog"

	entries := []model.SitemapEntry{{URL: srv.URL + "/blog"}}
	report, err := newTestCrawler(srv, cfg, WithEntries(entries)).Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.Summary.PagesCrawled != 1 {
		t.Errorf("PagesCrawled = %d, want 1", report.Summary.PagesCrawled)
	}
	if report.Summary.UniqueTargets != 1 {
		t.Errorf("UniqueTargets = %d, want 1", report.Summary.UniqueTargets)
	}
	if report.Site == "" {
		t.Error("expected Site derived from the page URL")
	}
}

// TestRunFatalSitemap verifies an unreachable sitemap aborts the run.
func TestRunFatalSitemap(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	cfg := testConfig(srv)
	c := newTestCrawler(srv, cfg)

	report, err := c.Run(context.Background())
	if report != nil {
		t.Error("expected nil report on fatal failure")
	}
	if !errors.Is(err, ErrFatal) {
		t.Errorf("err = %v, want ErrFatal", err)
	}
	if c.State() != StateFailed {
		t.Errorf("state = %v, want failed", c.State())
	}
}

// TestRunCancellation verifies a cancelled crawl still yields a
// well-formed partial report.
func TestRunCancellation(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`<urlset>
  <url><loc>` + srv.URL + `/p1</loc></url>
  <url><loc>` + srv.URL + `/p2</loc></url>
  <url><loc>` + srv.URL + `/p3</loc></url>
</urlset>`)) //nolint:errcheck
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		cancel() // abort as soon as page fetching starts
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><body><a href="/x">X</a></body></html>`)) //nolint:errcheck
	})

	cfg := testConfig(srv)
	cfg.FetchWorkers = 1

	c := newTestCrawler(srv, cfg)
	report, err := c.Run(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.State != "cancelled" {
		t.Errorf("State = %q, want cancelled", report.State)
	}
	if report.Summary.PagesTotal != 3 {
		t.Errorf("PagesTotal = %d, want 3", report.Summary.PagesTotal)
	}
	if report.Summary.PagesCrawled >= 3 {
		t.Errorf("PagesCrawled = %d, want a partial crawl", report.Summary.PagesCrawled)
	}
}

// TestInScope tests the internal/external and pattern filters.
func TestInScope(t *testing.T) {
	t.Parallel()

	internal := model.LinkReference{TargetURL: "https://example.com/a", IsInternal: true}
	external := model.LinkReference{TargetURL: "https://other.com/b", IsInternal: false}

	tests := []struct {
		name string
		cfg  config.Config
		ref  model.LinkReference
		want bool
	}{
		{"default keeps internal", config.Config{}, internal, true},
		{"default keeps external", config.Config{}, external, true},
		{"internal-only drops external", config.Config{InternalOnly: true}, external, false},
		{"internal-only keeps internal", config.Config{InternalOnly: true}, internal, true},
		{"external-only drops internal", config.Config{ExternalOnly: true}, internal, false},
		{"exclude pattern drops match", config.Config{ExcludePatterns: []string{"*other.com*"}}, external, false},
		{"include pattern keeps match", config.Config{IncludePatterns: []string{"https://example.com/*"}}, internal, true},
		{"include pattern drops non-match", config.Config{IncludePatterns: []string{"https://example.com/*"}}, external, false},
		{"exclude wins over include", config.Config{
			IncludePatterns: []string{"*"},
			ExcludePatterns: []string{"*other.com*"},
		}, external, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := &Crawler{cfg: &tt.cfg}
			if got := c.inScope(tt.ref); got != tt.want {
				t.Errorf("inScope(%q) = %v, want %v", tt.ref.TargetURL, got, tt.want)
			}
		})
	}
}

// TestMatchPattern tests the glob matcher. '*' crosses path separators.
func TestMatchPattern(t *testing.T) {
	t.Parallel()

	tests := []struct {
		pattern string
		s       string
		want    bool
	}{
		{"https://example.com/a", "https://example.com/a", true},
		{"https://example.com/a", "https://example.com/b", false},
		{"*/tag/*", "https://example.com/blog/tag/go", true},
		{"*/tag/*", "https://example.com/blog/post", false},
		{"https://cdn.*", "https://cdn.example.com/app.js", true},
		{"*.pdf", "https://example.com/manual.pdf", true},
		{"*.pdf", "https://example.com/manual.pdfx", false},
		{"*", "anything at all", true},
		{"", "anything", false},
		{"a*b*c", "a-x-b-y-c", true},
		{"a*b*c", "a-x-c-y-b", false},
	}

	for _, tt := range tests {
		if got := matchPattern(tt.pattern, tt.s); got != tt.want {
			t.Errorf("matchPattern(%q, %q) = %v, want %v", tt.pattern, tt.s, got, tt.want)
		}
	}
}

// TestStateString tests state names and terminality.
func TestStateString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		state    State
		want     string
		terminal bool
	}{
		{StateIdle, "idle", false},
		{StateLoadingSitemap, "loading_sitemap", false},
		{StateCrawling, "crawling", false},
		{StateResolving, "resolving", false},
		{StateAggregating, "aggregating_results", false},
		{StateDone, "done", true},
		{StateFailed, "failed", true},
		{StateCancelled, "cancelled", true},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
		if got := tt.state.Terminal(); got != tt.terminal {
			t.Errorf("State(%q).Terminal() = %v, want %v", tt.want, got, tt.terminal)
		}
	}
}

// TestStopConcurrentWithRun verifies Stop is safe to call from another
// goroutine while Run is starting up, and that it winds the crawl down.
func TestStopConcurrentWithRun(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	firstFetch := make(chan struct{})
	var once sync.Once

	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`<urlset>
  <url><loc>` + srv.URL + `/p1</loc></url>
  <url><loc>` + srv.URL + `/p2</loc></url>
  <url><loc>` + srv.URL + `/p3</loc></url>
</urlset>`)) //nolint:errcheck
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		once.Do(func() { close(firstFetch) })
		time.Sleep(20 * time.Millisecond)
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><body><a href="/x">X</a></body></html>`)) //nolint:errcheck
	})

	cfg := testConfig(srv)
	cfg.FetchWorkers = 1
	c := newTestCrawler(srv, cfg)

	// Stop before and during Run: a Stop that runs before Run has a
	// cancel function must be a safe no-op.
	c.Stop()

	type result struct {
		report *model.CrawlReport
		err    error
	}
	resultCh := make(chan result, 1)
	go func() {
		report, err := c.Run(context.Background())
		resultCh <- result{report, err}
	}()

	<-firstFetch
	c.Stop()

	select {
	case res := <-resultCh:
		if res.err != nil {
			t.Fatalf("unexpected error: %v", res.err)
		}
		if res.report.State != "cancelled" {
			t.Errorf("State = %q, want cancelled", res.report.State)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
}

// TestRunFinalProgressSnapshot verifies every crawl delivers a snapshot
// carrying the terminal state, even when it finishes before the first
// ticker fires.
func TestRunFinalProgressSnapshot(t *testing.T) {
	t.Parallel()

	srv := newTestSite(t)
	cfg := testConfig(srv)
	c := newTestCrawler(srv, cfg)

	snapshots := make(chan []model.Progress, 1)
	go func() {
		var got []model.Progress
		for p := range c.Progress() {
			got = append(got, p)
		}
		snapshots <- got
	}()

	if _, err := c.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := <-snapshots
	if len(got) == 0 {
		t.Fatal("no progress snapshots delivered")
	}
	last := got[len(got)-1]
	if last.State != "done" {
		t.Errorf("final snapshot state = %q, want done", last.State)
	}
	if last.PagesCrawled != 2 {
		t.Errorf("final snapshot PagesCrawled = %d, want 2", last.PagesCrawled)
	}
}

// TestRunFatalSitemapProgressSnapshot verifies a failed run still closes
// the progress channel with a terminal snapshot.
func TestRunFatalSitemapProgressSnapshot(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestCrawler(srv, testConfig(srv))

	snapshots := make(chan []model.Progress, 1)
	go func() {
		var got []model.Progress
		for p := range c.Progress() {
			got = append(got, p)
		}
		snapshots <- got
	}()

	if _, err := c.Run(context.Background()); !errors.Is(err, ErrFatal) {
		t.Fatalf("err = %v, want ErrFatal", err)
	}

	got := <-snapshots
	if len(got) == 0 {
		t.Fatal("no progress snapshots delivered for failed run")
	}
	if last := got[len(got)-1]; last.State != "failed" {
		t.Errorf("final snapshot state = %q, want failed", last.State)
	}
}

// TestRunCancelledDuringSeed verifies cancellation while the sitemap is
// loading ends in the cancelled state with an empty well-formed report,
// not a crawl failure.
func TestRunCancelledDuringSeed(t *testing.T) {
	t.Parallel()

	srv := newTestSite(t)
	cfg := testConfig(srv)
	c := newTestCrawler(srv, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := c.Run(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.State != "cancelled" {
		t.Errorf("State = %q, want cancelled", report.State)
	}
	if c.State() != StateCancelled {
		t.Errorf("crawler state = %v, want cancelled", c.State())
	}
	if report.Summary.PagesCrawled != 0 || len(report.Issues) != 0 {
		t.Errorf("expected an empty report, got %+v", report.Summary)
	}
}
