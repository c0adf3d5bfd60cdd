// Package main provides the entry point for the LinkCanary CLI.
//
// LinkCanary audits a website's link health: it reads the site's sitemap,
// crawls every listed page, and reports broken links, redirect chains,
// and redirect loops with remediation hints.
//
// Usage:
//
//	linkcanary check https://example.com/sitemap.xml
//	linkcanary check --url https://example.com/pricing
//
// See --help for all available options.
package main

// main is the entry point for LinkCanary.
func main() {
	Execute()
}
