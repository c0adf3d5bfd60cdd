// Package sitemap fetches and parses XML sitemaps and sitemap indexes,
// producing the page set that seeds a crawl.
package sitemap

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/linkcanary/linkcanary/internal/model"
	"github.com/linkcanary/linkcanary/internal/ratelimit"
	"github.com/linkcanary/linkcanary/internal/urlutil"
)

// ErrUnknownFormat is returned when a document is neither a urlset nor a
// sitemap index.
var ErrUnknownFormat = errors.New("unknown sitemap format: expected <urlset> or <sitemapindex>")

// urlset is the XML shape of a regular sitemap.
type urlset struct {
	XMLName xml.Name   `xml:"urlset"`
	URLs    []xmlEntry `xml:"url"`
}

// sitemapIndex is the XML shape of a sitemap of sitemaps.
type sitemapIndex struct {
	XMLName  xml.Name   `xml:"sitemapindex"`
	Sitemaps []xmlEntry `xml:"sitemap"`
}

// xmlEntry covers both <url> and <sitemap> children: each has a <loc>
// and an optional <lastmod>.
type xmlEntry struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod"`
}

// Loader fetches a sitemap tree and yields the filtered page sequence.
type Loader struct {
	// client issues the sitemap requests.
	client *http.Client

	// userAgent is sent with every request.
	userAgent string

	// limiter paces requests alongside the rest of the crawl.
	limiter *ratelimit.Limiter

	// maxDepth bounds recursion through nested sitemap indexes.
	maxDepth int

	// logger for structured logging.
	logger *slog.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithUserAgent sets the User-Agent header for sitemap requests.
func WithUserAgent(ua string) Option {
	return func(l *Loader) {
		l.userAgent = ua
	}
}

// WithLimiter sets the request pacer shared with the rest of the crawl.
func WithLimiter(limiter *ratelimit.Limiter) Option {
	return func(l *Loader) {
		l.limiter = limiter
	}
}

// WithMaxDepth bounds recursion through sitemap indexes.
func WithMaxDepth(depth int) Option {
	return func(l *Loader) {
		l.maxDepth = depth
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		l.logger = logger
	}
}

// New creates a Loader using the given HTTP client.
func New(client *http.Client, opts ...Option) *Loader {
	l := &Loader{
		client:    client,
		userAgent: "LinkCanary/1.0",
		limiter:   ratelimit.New(0),
		maxDepth:  5,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Filter narrows the loaded page set.
type Filter struct {
	// Since drops entries last modified before this time. Entries with
	// no lastmod are always kept: absence of metadata must never
	// silently exclude a page.
	Since time.Time

	// MaxPages truncates the sequence after this many entries,
	// preserving the sitemap's declared order. Zero means no cap.
	MaxPages int
}

// Load fetches the sitemap at rootURL, recursing through index documents,
// and returns the filtered entries in declared order.
//
// A root sitemap that cannot be fetched or parsed is an error: with no
// page set there is nothing to crawl, so the caller aborts the run.
// Nested sitemaps that fail are logged and skipped, matching how a crawl
// tolerates individual page failures.
func (l *Loader) Load(ctx context.Context, rootURL string, filter Filter) ([]model.SitemapEntry, error) {
	visited := mapset.NewSet[string]()

	entries, err := l.load(ctx, rootURL, filter, visited, 0, true)
	if err != nil {
		return nil, err
	}

	if filter.MaxPages > 0 && len(entries) > filter.MaxPages {
		entries = entries[:filter.MaxPages]
	}

	l.logger.Info("sitemap loaded",
		"root", rootURL,
		"pages", len(entries),
		"sitemaps_fetched", visited.Cardinality(),
	)
	return entries, nil
}

// load fetches and parses one sitemap document, recursing into indexes.
func (l *Loader) load(ctx context.Context, sitemapURL string, filter Filter, visited mapset.Set[string], depth int, root bool) ([]model.SitemapEntry, error) {
	if depth > l.maxDepth {
		l.logger.Warn("sitemap recursion depth exceeded", "url", sitemapURL, "depth", depth)
		return nil, nil
	}

	key, err := urlutil.Normalize(sitemapURL)
	if err != nil {
		key = sitemapURL
	}
	// Add returns false when the sitemap was already fetched: an index
	// cycle, which we break here rather than by depth alone.
	if !visited.Add(key) {
		l.logger.Warn("sitemap cycle detected", "url", sitemapURL)
		return nil, nil
	}

	body, err := l.fetch(ctx, sitemapURL)
	if err != nil {
		if root {
			return nil, fmt.Errorf("fetch sitemap %s: %w", sitemapURL, err)
		}
		l.logger.Warn("skipping unreachable nested sitemap", "url", sitemapURL, "error", err)
		return nil, nil
	}

	doc := strings.TrimSpace(string(body))
	switch {
	case strings.Contains(doc, "<sitemapindex"):
		var index sitemapIndex
		if err := xml.Unmarshal(body, &index); err != nil {
			if root {
				return nil, fmt.Errorf("parse sitemap index %s: %w", sitemapURL, err)
			}
			l.logger.Warn("skipping malformed nested sitemap index", "url", sitemapURL, "error", err)
			return nil, nil
		}

		var entries []model.SitemapEntry
		for _, child := range index.Sitemaps {
			loc := strings.TrimSpace(child.Loc)
			if loc == "" {
				continue
			}
			nested, err := l.load(ctx, loc, filter, visited, depth+1, false)
			if err != nil {
				return nil, err
			}
			entries = append(entries, nested...)
		}
		return entries, nil

	case strings.Contains(doc, "<urlset"):
		var set urlset
		if err := xml.Unmarshal(body, &set); err != nil {
			if root {
				return nil, fmt.Errorf("parse sitemap %s: %w", sitemapURL, err)
			}
			l.logger.Warn("skipping malformed nested sitemap", "url", sitemapURL, "error", err)
			return nil, nil
		}

		entries := make([]model.SitemapEntry, 0, len(set.URLs))
		for _, u := range set.URLs {
			loc := strings.TrimSpace(u.Loc)
			if loc == "" {
				continue
			}
			entry := model.SitemapEntry{
				URL:          loc,
				LastModified: parseLastMod(u.LastMod),
			}
			if includeEntry(entry, filter.Since) {
				entries = append(entries, entry)
			}
		}
		return entries, nil

	default:
		if root {
			return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, sitemapURL)
		}
		l.logger.Warn("skipping sitemap with unknown format", "url", sitemapURL)
		return nil, nil
	}
}

// fetch retrieves a sitemap document, transparently decompressing
// gzip-delivered sitemaps (either .gz URLs or gzip content encoding).
func (l *Loader) fetch(ctx context.Context, sitemapURL string) ([]byte, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sitemapURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", l.userAgent)
	req.Header.Set("Accept", "application/xml, text/xml, */*")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if strings.HasSuffix(strings.ToLower(sitemapURL), ".gz") ||
		resp.Header.Get("Content-Encoding") == "gzip" ||
		resp.Header.Get("Content-Type") == "application/x-gzip" {
		if decompressed, err := gunzip(body); err == nil {
			return decompressed, nil
		}
		// Some servers lie about compression; fall through with raw bytes.
	}

	return body, nil
}

// gunzip decompresses a gzip payload.
func gunzip(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// lastModFormats lists the timestamp layouts seen in real sitemaps.
var lastModFormats = []string{
	time.RFC3339,
	"2006-01-02T15:04:05.000Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// parseLastMod parses a <lastmod> value, returning the zero time when the
// value is empty or unparseable.
func parseLastMod(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range lastModFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// includeEntry applies the since filter: entries lacking a lastmod are
// always included, never silently excluded.
func includeEntry(entry model.SitemapEntry, since time.Time) bool {
	if since.IsZero() || !entry.HasLastModified() {
		return true
	}
	return !entry.LastModified.Before(since)
}
