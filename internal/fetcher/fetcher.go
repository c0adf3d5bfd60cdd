// Package fetcher retrieves site pages and extracts the links they carry.
//
// A fetch never fails the crawl: pages that cannot be retrieved produce an
// empty PageRecord and a warning, because a broken page is a finding, not
// a reason to stop auditing the rest of the site.
package fetcher

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/linkcanary/linkcanary/internal/model"
	"github.com/linkcanary/linkcanary/internal/ratelimit"
)

// Fetcher downloads pages and parses their anchors.
type Fetcher struct {
	// client issues page requests. Redirects are followed here: a page
	// that moved still has links worth checking.
	client *http.Client

	// limiter paces requests process-wide.
	limiter *ratelimit.Limiter

	// reqOpts decorates requests with identity and credentials.
	reqOpts *RequestOptions

	// maxBodySize bounds how much HTML is read per page.
	maxBodySize int64

	// baseURL anchors the internal/external split for extracted links.
	baseURL string

	// includeSubdomains widens "internal" to the registered domain.
	includeSubdomains bool

	// logger for structured logging.
	logger *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithLimiter sets the shared request pacer.
func WithLimiter(limiter *ratelimit.Limiter) Option {
	return func(f *Fetcher) {
		f.limiter = limiter
	}
}

// WithRequestOptions sets the request decoration (user agent, headers,
// cookies, per-site credentials).
func WithRequestOptions(opts *RequestOptions) Option {
	return func(f *Fetcher) {
		f.reqOpts = opts
	}
}

// WithMaxBodySize bounds how many bytes of a page body are read.
func WithMaxBodySize(n int64) Option {
	return func(f *Fetcher) {
		f.maxBodySize = n
	}
}

// WithIncludeSubdomains widens the internal-link scope to the site's
// registered domain.
func WithIncludeSubdomains(include bool) Option {
	return func(f *Fetcher) {
		f.includeSubdomains = include
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// New creates a Fetcher. baseURL is the audited site's URL, used to
// classify extracted links as internal or external.
func New(client *http.Client, baseURL string, opts ...Option) *Fetcher {
	f := &Fetcher{
		client:      client,
		limiter:     ratelimit.New(0),
		reqOpts:     &RequestOptions{},
		maxBodySize: 5 * 1024 * 1024,
		baseURL:     baseURL,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch retrieves one page and extracts its links. The returned record is
// always usable: failed requests and non-HTML responses yield a record
// with no links rather than an error. The error return is reserved for
// context cancellation, which must stop the crawl.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (model.PageRecord, error) {
	record := model.PageRecord{
		URL:       pageURL,
		FetchedAt: time.Now(),
	}

	if err := f.limiter.Wait(ctx); err != nil {
		return record, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		f.logger.Warn("skipping unfetchable page", "url", pageURL, "error", err)
		return record, nil
	}
	f.reqOpts.Apply(req)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return record, ctx.Err()
		}
		f.logger.Warn("page fetch failed", "url", pageURL, "error", err)
		return record, nil
	}
	defer resp.Body.Close()

	record.StatusCode = resp.StatusCode

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		f.logger.Warn("page returned non-success status", "url", pageURL, "status", resp.StatusCode)
		return record, nil
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType != "" && !isHTML(contentType) {
		f.logger.Debug("skipping non-HTML page", "url", pageURL, "content_type", contentType)
		return record, nil
	}

	body := io.Reader(resp.Body)
	if f.maxBodySize > 0 {
		body = io.LimitReader(resp.Body, f.maxBodySize)
	}

	links, canonical, err := ExtractLinks(body, contentType, pageURL, f.baseURL, f.includeSubdomains)
	if err != nil {
		if ctx.Err() != nil {
			return record, ctx.Err()
		}
		f.logger.Warn("page parse failed", "url", pageURL, "error", err)
		return record, nil
	}

	record.Canonical = canonical
	record.Links = links
	f.logger.Debug("page fetched", "url", pageURL, "status", resp.StatusCode, "links", len(links))
	return record, nil
}

// isHTML reports whether a Content-Type header denotes an HTML document.
func isHTML(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml")
}
