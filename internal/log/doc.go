// Package log provides a credential-redacting slog handler.
//
// LinkCanary can crawl staging sites behind basic auth, custom headers,
// or session cookies. Those values flow through the fetcher and resolver,
// and verbose logging must never write them to disk or a terminal.
package log
