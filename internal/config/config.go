package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values. These mirror the tool's CLI defaults and
// are chosen to be polite to the audited site.
const (
	// DefaultDelay is the pause between outbound HTTP requests.
	// The delay is enforced process-wide, not per worker, so raising the
	// worker counts never increases pressure on the target server.
	DefaultDelay = 500 * time.Millisecond

	// DefaultTimeout is the per-request timeout. Ten seconds is generous
	// for a healthy site; anything slower is worth surfacing as an error.
	DefaultTimeout = 10 * time.Second

	// DefaultFetchWorkers is the size of the page-fetch worker pool.
	DefaultFetchWorkers = 4

	// DefaultResolveWorkers is the size of the link-resolution worker pool.
	// Resolution dominates a crawl (many unique targets per page), so it
	// gets a larger pool than fetching.
	DefaultResolveWorkers = 8

	// DefaultUserAgent identifies LinkCanary in HTTP requests so site
	// operators can recognize audit traffic in their logs.
	DefaultUserAgent = "LinkCanary/1.0 (+https://github.com/linkcanary/linkcanary)"

	// DefaultMaxBodySize limits how much of a page body is read.
	// 5MB covers any sane HTML page while bounding memory per worker.
	DefaultMaxBodySize = 5 * 1024 * 1024

	// DefaultSitemapDepth bounds recursion through sitemap indexes.
	// Real sites rarely nest beyond two levels; the bound exists to stop
	// index cycles that the visited-set misses across hosts.
	DefaultSitemapDepth = 5

	// DefaultFailOn is the priority threshold at which found issues turn
	// into a non-zero exit code. "any" fails on every reported issue.
	DefaultFailOn = "any"

	// AppName is used for XDG directory paths.
	AppName = "linkcanary"
)

// Config holds all options for one crawl. It is populated from CLI flags
// and passed through the application explicitly rather than via globals.
type Config struct {
	// SitemapURL is the root sitemap to seed the crawl from.
	SitemapURL string

	// PageURL, when set, checks a single page instead of a sitemap.
	PageURL string

	// URLsFile, when set, reads the page set from a file, one URL per
	// line with '#' comments. Useful for checking changed pages in CI.
	URLsFile string

	// Delay is the minimum interval between any two outbound requests.
	Delay time.Duration

	// Timeout is the per-request timeout.
	Timeout time.Duration

	// MaxPages caps how many sitemap entries are crawled. Zero means no cap.
	MaxPages int

	// Since drops sitemap entries last modified before this time.
	// Entries without a lastmod are always kept. Zero means no filter.
	Since time.Time

	// InternalOnly restricts checking to links on the site's own domain.
	InternalOnly bool

	// ExternalOnly restricts checking to links leaving the site.
	// Mutually exclusive with InternalOnly.
	ExternalOnly bool

	// IncludeSubdomains widens "internal" to the registered domain.
	IncludeSubdomains bool

	// UserAgent is sent with every request.
	UserAgent string

	// ExpandDuplicates emits one issue per occurrence instead of one
	// aggregated issue per unique target.
	ExpandDuplicates bool

	// SkipOK excludes healthy (2xx, no redirect) links from the report.
	SkipOK bool

	// FetchWorkers is the page-fetch pool size.
	FetchWorkers int

	// ResolveWorkers is the link-resolution pool size.
	ResolveWorkers int

	// MaxBodySize limits response body reads, in bytes.
	MaxBodySize int64

	// ExcludePatterns drops link targets matching any glob pattern.
	ExcludePatterns []string

	// IncludePatterns, when non-empty, keeps only targets matching at
	// least one glob pattern.
	IncludePatterns []string

	// Headers are extra HTTP headers applied to every request.
	Headers map[string]string

	// Cookies are "name=value" cookies applied to every request.
	Cookies []string

	// OutputFile is where the report is written. Empty means stdout
	// console output only.
	OutputFile string

	// Format forces the report format (csv, json, md, xlsx). Empty means
	// detect from the OutputFile extension.
	Format string

	// FailOn is the priority threshold for exit code 1:
	// critical, high, medium, low, any, or none.
	FailOn string

	// WebhookURL, when set, receives a JSON summary after the crawl.
	WebhookURL string

	// Verbose enables debug-level logging.
	Verbose bool

	// SaveHistory persists the run to the history database.
	SaveHistory bool

	// DBDir is the directory holding the history database.
	DBDir string

	// ConfigFilePath is an explicit path to the .linkcanary file.
	ConfigFilePath string

	// SiteConfigs holds per-site settings loaded from the config file.
	SiteConfigs *File
}

// NewConfig returns a Config with all defaults applied.
func NewConfig() *Config {
	return &Config{
		Delay:          DefaultDelay,
		Timeout:        DefaultTimeout,
		FetchWorkers:   DefaultFetchWorkers,
		ResolveWorkers: DefaultResolveWorkers,
		UserAgent:      DefaultUserAgent,
		MaxBodySize:    DefaultMaxBodySize,
		FailOn:         DefaultFailOn,
		DBDir:          XDGDataDir(),
	}
}

// XDGDataDir returns the XDG data directory for LinkCanary.
// On Linux this is ~/.local/share/linkcanary.
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// validFailOn enumerates accepted --fail-on values.
var validFailOn = map[string]bool{
	"critical": true,
	"high":     true,
	"medium":   true,
	"low":      true,
	"any":      true,
	"none":     true,
}

// validFormats enumerates accepted report formats.
var validFormats = map[string]bool{
	"csv":  true,
	"json": true,
	"md":   true,
	"xlsx": true,
}

// Validate checks the configuration before the crawl starts and returns
// the first problem found. Validation happens once, after flag parsing,
// so every later component can trust its inputs.
func (c *Config) Validate() error {
	sources := 0
	if c.SitemapURL != "" {
		sources++
	}
	if c.PageURL != "" {
		sources++
	}
	if c.URLsFile != "" {
		sources++
	}
	if sources == 0 {
		return ErrNoInput
	}
	if sources > 1 {
		return ErrConflictingInputs
	}

	if c.InternalOnly && c.ExternalOnly {
		return ErrConflictingScopes
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.Delay < 0 {
		return ErrInvalidDelay
	}
	if c.MaxPages < 0 {
		return ErrInvalidMaxPages
	}
	if c.FetchWorkers <= 0 || c.ResolveWorkers <= 0 {
		return ErrInvalidWorkers
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if !validFailOn[c.FailOn] {
		return ErrInvalidFailOn
	}
	if c.Format != "" && !validFormats[c.Format] {
		return ErrInvalidFormat
	}

	return nil
}
