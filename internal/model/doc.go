// Package model defines the data types shared across the crawl engine:
// sitemap entries, fetched pages, extracted links, redirect resolutions,
// occurrence groups, and the final issue records handed to report writers.
//
// All types here are plain data. Behavior that mutates shared state lives
// in the packages that own that state (aggregate, resolver, crawl); the
// model package only carries values between them.
package model
