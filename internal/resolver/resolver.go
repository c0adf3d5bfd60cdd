// Package resolver follows redirect chains for unique link targets and
// classifies what it finds.
//
// Each normalized target is resolved at most once per crawl: results are
// memoized, and concurrent requests for the same target are coalesced so
// the audited server never sees duplicate probes for one URL.
package resolver

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/linkcanary/linkcanary/internal/fetcher"
	"github.com/linkcanary/linkcanary/internal/model"
	"github.com/linkcanary/linkcanary/internal/ratelimit"
	"github.com/linkcanary/linkcanary/internal/urlutil"
)

const (
	// maxRedirects is the hop ceiling. A chain that has not terminated
	// after this many redirects is reported as a loop: no legitimate site
	// structure needs more.
	maxRedirects = 10

	// headRetryLimit caps retries after a 429 response.
	headRetryLimit = 2

	// basePenalty is the initial wait after a 429; it doubles per
	// consecutive 429 from the same host.
	basePenalty = 1 * time.Second

	// maxPenalty caps the 429 backoff.
	maxPenalty = 30 * time.Second
)

// headFallbackStatuses are responses to HEAD that mean "this server does
// not implement HEAD properly", not "this resource is broken". The probe
// retries with GET and the host is remembered.
var headFallbackStatuses = map[int]bool{
	http.StatusForbidden:        true,
	http.StatusMethodNotAllowed: true,
	http.StatusNotImplemented:   true,
}

// Resolver resolves link targets to their terminal response.
type Resolver struct {
	// client must not follow redirects: hops are followed manually so
	// every intermediate status and URL is recorded.
	client *http.Client

	// limiter paces probes process-wide, shared with the page fetcher.
	limiter *ratelimit.Limiter

	// reqOpts decorates probes with the crawl's identity and credentials.
	reqOpts *fetcher.RequestOptions

	// logger for structured logging.
	logger *slog.Logger

	mu sync.Mutex

	// cache memoizes resolutions by normalized target URL.
	cache map[string]*model.Resolution

	// headUnsupported remembers hosts that rejected HEAD, so later
	// targets on the same host go straight to GET.
	headUnsupported map[string]bool

	// penalties tracks the current 429 backoff per host.
	penalties map[string]time.Duration

	// group coalesces concurrent resolutions of the same target.
	group singleflight.Group
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLimiter sets the shared request pacer.
func WithLimiter(limiter *ratelimit.Limiter) Option {
	return func(r *Resolver) {
		r.limiter = limiter
	}
}

// WithRequestOptions sets the request decoration.
func WithRequestOptions(opts *fetcher.RequestOptions) Option {
	return func(r *Resolver) {
		r.reqOpts = opts
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// New creates a Resolver. The client's redirect policy is overridden:
// redirects are followed manually to record every hop.
func New(client *http.Client, opts ...Option) *Resolver {
	c := *client
	c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}

	r := &Resolver{
		client:          &c,
		limiter:         ratelimit.New(0),
		reqOpts:         &fetcher.RequestOptions{},
		logger:          slog.Default(),
		cache:           make(map[string]*model.Resolution),
		headUnsupported: make(map[string]bool),
		penalties:       make(map[string]time.Duration),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the resolution for a target URL, computing it on first
// use and serving the memoized result afterwards. Concurrent calls for
// the same normalized target share one computation.
func (r *Resolver) Resolve(ctx context.Context, target string) *model.Resolution {
	key, err := urlutil.Normalize(target)
	if err != nil {
		key = target
	}

	r.mu.Lock()
	if res, ok := r.cache[key]; ok {
		r.mu.Unlock()
		return res
	}
	r.mu.Unlock()

	v, _, _ := r.group.Do(key, func() (any, error) {
		// Re-check under the lock: a previous flight may have landed
		// between the fast path and Do.
		r.mu.Lock()
		if res, ok := r.cache[key]; ok {
			r.mu.Unlock()
			return res, nil
		}
		r.mu.Unlock()

		res := r.follow(ctx, key)

		r.mu.Lock()
		r.cache[key] = res
		r.mu.Unlock()
		return res, nil
	})
	return v.(*model.Resolution)
}

// Lookup returns the cached resolution for a normalized target, if any.
func (r *Resolver) Lookup(normalized string) (*model.Resolution, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.cache[normalized]
	return res, ok
}

// CacheSize returns how many unique targets have been resolved.
func (r *Resolver) CacheSize() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cache)
}

// follow walks the redirect chain for one target and classifies the result.
func (r *Resolver) follow(ctx context.Context, target string) *model.Resolution {
	res := &model.Resolution{TargetURL: target}

	visited := map[string]bool{target: true}
	current := target

	for {
		status, location, err := r.probe(ctx, current)
		if err != nil {
			res.Hops = append(res.Hops, model.Hop{StatusCode: 0, URL: current})
			res.FinalURL = current
			res.Type = model.IssueError
			res.Err = err.Error()
			return res
		}

		res.Hops = append(res.Hops, model.Hop{StatusCode: status, URL: current})
		res.FinalURL = current
		res.StatusCode = status

		if status < 300 || status >= 400 {
			break
		}

		// A redirect with no destination is a server bug; the link is
		// effectively broken for anyone following it.
		if location == "" {
			res.Type = model.IssueBroken
			return res
		}

		next, err := resolveLocation(current, location)
		if err != nil {
			res.Type = model.IssueBroken
			return res
		}

		key, err := urlutil.Normalize(next)
		if err != nil {
			key = next
		}
		if visited[key] {
			res.Type = model.IssueRedirectLoop
			r.logger.Debug("redirect loop detected", "target", target, "revisited", next)
			return res
		}
		visited[key] = true

		if res.HopCount() >= maxRedirects {
			res.Type = model.IssueRedirectLoop
			r.logger.Debug("redirect ceiling exceeded", "target", target, "hops", res.HopCount())
			return res
		}

		current = next
	}

	res.Type = classify(res)
	return res
}

// classify maps a terminated chain to its issue type.
func classify(res *model.Resolution) model.IssueType {
	status := res.StatusCode
	hops := res.HopCount()

	if status < 200 || status >= 300 {
		return model.IssueBroken
	}

	switch {
	case hops == 0:
		return model.IssueOK
	case hops == 1:
		if urlutil.IsCanonicalVariant(res.TargetURL, res.FinalURL) {
			res.CanonicalMismatch = true
			return model.IssueCanonicalRedirect
		}
		return model.IssueRedirect
	default:
		return model.IssueRedirectChain
	}
}

// probe issues one request for one URL, preferring HEAD and falling back
// to GET for hosts that reject it. 429 responses are retried with a
// per-host doubling backoff.
func (r *Resolver) probe(ctx context.Context, probeURL string) (status int, location string, err error) {
	host := urlutil.Domain(probeURL)

	for attempt := 0; ; attempt++ {
		method := http.MethodHead
		r.mu.Lock()
		if r.headUnsupported[host] {
			method = http.MethodGet
		}
		r.mu.Unlock()

		status, location, err = r.request(ctx, method, probeURL)
		if err != nil {
			return 0, "", err
		}

		if method == http.MethodHead && headFallbackStatuses[status] {
			r.mu.Lock()
			r.headUnsupported[host] = true
			r.mu.Unlock()
			r.logger.Debug("HEAD rejected, falling back to GET", "host", host, "status", status)
			status, location, err = r.request(ctx, http.MethodGet, probeURL)
			if err != nil {
				return 0, "", err
			}
		}

		if status != http.StatusTooManyRequests || attempt >= headRetryLimit {
			if status != http.StatusTooManyRequests {
				r.resetPenalty(host)
			}
			return status, location, nil
		}

		penalty := r.nextPenalty(host)
		r.logger.Debug("rate limited by host, backing off", "host", host, "penalty", penalty)
		select {
		case <-time.After(penalty):
		case <-ctx.Done():
			return 0, "", ctx.Err()
		}
	}
}

// request issues a single paced request and discards the body.
func (r *Resolver) request(ctx context.Context, method, probeURL string) (int, string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return 0, "", err
	}

	req, err := http.NewRequestWithContext(ctx, method, probeURL, nil)
	if err != nil {
		return 0, "", err
	}
	r.reqOpts.Apply(req)

	resp, err := r.client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	return resp.StatusCode, resp.Header.Get("Location"), nil
}

// nextPenalty doubles the host's 429 backoff, starting at basePenalty
// and capping at maxPenalty.
func (r *Resolver) nextPenalty(host string) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.penalties[host]
	if p == 0 {
		p = basePenalty
	} else {
		p *= 2
		if p > maxPenalty {
			p = maxPenalty
		}
	}
	r.penalties[host] = p
	return p
}

// resetPenalty clears a host's backoff once it answers normally again.
func (r *Resolver) resetPenalty(host string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.penalties, host)
}

// resolveLocation resolves a Location header value against the URL that
// issued the redirect.
func resolveLocation(current, location string) (string, error) {
	base, err := url.Parse(current)
	if err != nil {
		return "", err
	}
	next, err := base.Parse(location)
	if err != nil {
		return "", err
	}
	next.Fragment = ""
	return next.String(), nil
}
