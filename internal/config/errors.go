package config

import "errors"

// Configuration validation errors returned by Config.Validate().
// These are sentinel errors so callers can branch with errors.Is() while
// still printing a human-readable message.
var (
	// ErrNoInput is returned when neither a sitemap URL, a single page
	// URL, nor a URLs file was provided.
	ErrNoInput = errors.New("no input specified: provide a sitemap URL, --url, or --urls-file")

	// ErrConflictingInputs is returned when more than one input source
	// is specified at once.
	ErrConflictingInputs = errors.New("conflicting inputs: sitemap URL, --url, and --urls-file are mutually exclusive")

	// ErrConflictingScopes is returned when both --internal-only and
	// --external-only are set.
	ErrConflictingScopes = errors.New("conflicting scopes: --internal-only and --external-only cannot be used together")

	// ErrInvalidTimeout is returned when the per-request timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidDelay is returned when the inter-request delay is negative.
	// Use 0 for no delay.
	ErrInvalidDelay = errors.New("invalid delay: must be non-negative")

	// ErrInvalidMaxPages is returned when the page cap is negative.
	// Use 0 for no cap.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be non-negative")

	// ErrInvalidWorkers is returned when either worker pool size is not positive.
	ErrInvalidWorkers = errors.New("invalid worker count: must be positive")

	// ErrInvalidMaxBodySize is returned when the body size limit is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidFailOn is returned for an unrecognized --fail-on value.
	ErrInvalidFailOn = errors.New("invalid fail-on value: must be critical, high, medium, low, any, or none")

	// ErrInvalidFormat is returned for an unrecognized report format.
	ErrInvalidFormat = errors.New("invalid format: must be csv, json, md, or xlsx")
)
