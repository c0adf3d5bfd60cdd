// Package urlutil provides URL normalization and classification helpers.
//
// Normalization is the primary correctness lever of the whole tool: the
// occurrence map and the resolution cache are both keyed by normalized URL,
// so two spellings of the same logical link must normalize identically or
// the crawl double-counts and double-resolves them.
package urlutil

import (
	"net/url"
	"sort"
	"strings"
)

// Normalize canonicalizes a URL for use as a deduplication key.
//
// Rules applied:
//  1. Scheme and host are lowercased.
//  2. Default ports (:80 for http, :443 for https) are removed.
//  3. The fragment is dropped.
//  4. An empty path becomes "/".
//  5. Query parameters are sorted by key.
//
// Trailing slashes are deliberately preserved: /page and /page/ are
// distinct resources, and collapsing them would hide canonical redirects.
func Normalize(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Host = stripDefaultPort(u.Scheme, u.Host)
	u.Fragment = ""

	if u.Path == "" {
		u.Path = "/"
	}

	if u.RawQuery != "" {
		u.RawQuery = sortQuery(u.Query())
	}

	return u.String(), nil
}

// stripDefaultPort removes :80 from http hosts and :443 from https hosts.
func stripDefaultPort(scheme, host string) string {
	switch scheme {
	case "http":
		return strings.TrimSuffix(host, ":80")
	case "https":
		return strings.TrimSuffix(host, ":443")
	default:
		return host
	}
}

// sortQuery re-encodes query values with keys in sorted order.
func sortQuery(values url.Values) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		for _, v := range values[k] {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(k))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	return b.String()
}

// IsCanonicalVariant reports whether dst is a canonical-form variant of
// src: same host and query, with the URLs differing only by trailing
// slash, letter case in the path, or scheme (http vs https).
func IsCanonicalVariant(src, dst string) bool {
	if src == "" || dst == "" {
		return false
	}

	su, err := url.Parse(src)
	if err != nil {
		return false
	}
	du, err := url.Parse(dst)
	if err != nil {
		return false
	}

	srcHost := stripDefaultPort(strings.ToLower(su.Scheme), strings.ToLower(su.Host))
	dstHost := stripDefaultPort(strings.ToLower(du.Scheme), strings.ToLower(du.Host))
	if srcHost != dstHost {
		return false
	}

	srcPath := strings.TrimRight(strings.ToLower(su.Path), "/")
	dstPath := strings.TrimRight(strings.ToLower(du.Path), "/")
	if srcPath != dstPath {
		return false
	}

	return su.RawQuery == du.RawQuery
}

// Domain extracts the lowercased host (without port) from a URL.
// Returns the empty string for unparseable input.
func Domain(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// commonTwoPartTLDs lists multi-label public suffixes we recognize when
// reducing a host to its registered domain. A full public-suffix list is
// overkill for comparing a site against its own links.
var commonTwoPartTLDs = map[string]bool{
	"co.uk":  true,
	"com.au": true,
	"co.nz":  true,
	"co.za":  true,
	"com.br": true,
	"co.jp":  true,
	"co.kr":  true,
}

// RootDomain reduces a URL's host to its registered domain:
// blog.example.com -> example.com, www.example.co.uk -> example.co.uk.
func RootDomain(raw string) string {
	domain := Domain(raw)
	if domain == "" {
		return ""
	}

	parts := strings.Split(domain, ".")
	if len(parts) <= 2 {
		return domain
	}

	if commonTwoPartTLDs[strings.Join(parts[len(parts)-2:], ".")] {
		return strings.Join(parts[len(parts)-3:], ".")
	}
	return strings.Join(parts[len(parts)-2:], ".")
}

// IsInternal reports whether linkURL belongs to the same site as baseURL.
// With includeSubdomains, hosts sharing the registered domain count as
// internal; otherwise the hosts must match exactly.
func IsInternal(linkURL, baseURL string, includeSubdomains bool) bool {
	linkDomain := Domain(linkURL)
	baseDomain := Domain(baseURL)
	if linkDomain == "" || baseDomain == "" {
		return false
	}

	if linkDomain == baseDomain {
		return true
	}
	if includeSubdomains {
		return RootDomain(linkURL) == RootDomain(baseURL)
	}
	return false
}

// IsHTTPURL reports whether a URL is an absolute http or https URL.
func IsHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// skipSchemes lists href prefixes that can never be link-checked.
var skipSchemes = []string{
	"mailto:", "tel:", "javascript:", "data:", "file:", "ftp:", "ssh:",
}

// ShouldSkipHref reports whether an anchor href is out of scope for
// checking: empty, a bare fragment, or a non-HTTP scheme.
func ShouldSkipHref(href string) bool {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return true
	}

	lower := strings.ToLower(href)
	for _, scheme := range skipSchemes {
		if strings.HasPrefix(lower, scheme) {
			return true
		}
	}
	return false
}
