package sitemap

import (
	"bytes"
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const simpleSitemap = `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>https://example.com/</loc><lastmod>2026-01-10</lastmod></url>
  <url><loc>https://example.com/about</loc></url>
  <url><loc>https://example.com/blog</loc><lastmod>2025-06-01T12:00:00Z</lastmod></url>
</urlset>`

// TestLoadSimpleSitemap tests parsing a plain urlset.
func TestLoadSimpleSitemap(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		w.Write([]byte(simpleSitemap)) //nolint:errcheck
	}))
	defer srv.Close()

	loader := New(srv.Client())
	entries, err := loader.Load(context.Background(), srv.URL+"/sitemap.xml", Filter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	if entries[0].URL != "https://example.com/" {
		t.Errorf("first entry = %q, want declared order preserved", entries[0].URL)
	}
	if !entries[0].HasLastModified() {
		t.Error("expected date-only lastmod to parse")
	}
	if entries[1].HasLastModified() {
		t.Error("expected missing lastmod to be zero")
	}
	if !entries[2].HasLastModified() {
		t.Error("expected RFC3339 lastmod to parse")
	}
}

// TestLoadSitemapIndex tests recursion through an index document.
func TestLoadSitemapIndex(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`<?xml version="1.0"?>
<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <sitemap><loc>` + srv.URL + `/pages.xml</loc></sitemap>
  <sitemap><loc>` + srv.URL + `/posts.xml</loc></sitemap>
</sitemapindex>`)) //nolint:errcheck
	})
	mux.HandleFunc("/pages.xml", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`<urlset><url><loc>https://example.com/a</loc></url></urlset>`)) //nolint:errcheck
	})
	mux.HandleFunc("/posts.xml", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`<urlset><url><loc>https://example.com/b</loc></url></urlset>`)) //nolint:errcheck
	})

	loader := New(srv.Client())
	entries, err := loader.Load(context.Background(), srv.URL+"/sitemap.xml", Filter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].URL != "https://example.com/a" || entries[1].URL != "https://example.com/b" {
		t.Errorf("entries out of order: %+v", entries)
	}
}

// TestLoadGzipSitemap tests transparent gzip decompression.
func TestLoadGzipSitemap(t *testing.T) {
	t.Parallel()

	var compressed bytes.Buffer
	gz := gzip.NewWriter(&compressed)
	if _, err := gz.Write([]byte(simpleSitemap)); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/x-gzip")
		w.Write(compressed.Bytes()) //nolint:errcheck
	}))
	defer srv.Close()

	loader := New(srv.Client())
	entries, err := loader.Load(context.Background(), srv.URL+"/sitemap.xml.gz", Filter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 3 {
		t.Errorf("got %d entries, want 3", len(entries))
	}
}

// TestLoadSinceFilter tests the lastmod cutoff. Entries without a lastmod
// must survive the filter.
func TestLoadSinceFilter(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(simpleSitemap)) //nolint:errcheck
	}))
	defer srv.Close()

	since := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	loader := New(srv.Client())
	entries, err := loader.Load(context.Background(), srv.URL+"/sitemap.xml", Filter{Since: since})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 2026-01-10 passes, missing lastmod passes, 2025-06-01 is dropped.
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2: %+v", len(entries), entries)
	}
	for _, e := range entries {
		if e.URL == "https://example.com/blog" {
			t.Error("entry older than since survived the filter")
		}
	}
}

// TestLoadMaxPages tests deterministic truncation.
func TestLoadMaxPages(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(simpleSitemap)) //nolint:errcheck
	}))
	defer srv.Close()

	loader := New(srv.Client())
	entries, err := loader.Load(context.Background(), srv.URL+"/sitemap.xml", Filter{MaxPages: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].URL != "https://example.com/" || entries[1].URL != "https://example.com/about" {
		t.Errorf("truncation did not preserve declared order: %+v", entries)
	}
}

// TestLoadRootFailure tests that an unreachable root sitemap is fatal.
func TestLoadRootFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	loader := New(srv.Client())
	if _, err := loader.Load(context.Background(), srv.URL+"/sitemap.xml", Filter{}); err == nil {
		t.Error("expected error for unreachable root sitemap")
	}
}

// TestLoadIndexCycle tests that self-referencing indexes terminate.
func TestLoadIndexCycle(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`<sitemapindex>
  <sitemap><loc>` + srv.URL + `/sitemap.xml</loc></sitemap>
  <sitemap><loc>` + srv.URL + `/pages.xml</loc></sitemap>
</sitemapindex>`)) //nolint:errcheck
	})
	mux.HandleFunc("/pages.xml", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`<urlset><url><loc>https://example.com/a</loc></url></urlset>`)) //nolint:errcheck
	})

	loader := New(srv.Client())
	entries, err := loader.Load(context.Background(), srv.URL+"/sitemap.xml", Filter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("got %d entries, want 1", len(entries))
	}
}

// TestLoadUnknownFormat tests the error for non-sitemap documents.
func TestLoadUnknownFormat(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`<html><body>not a sitemap</body></html>`)) //nolint:errcheck
	}))
	defer srv.Close()

	loader := New(srv.Client())
	if _, err := loader.Load(context.Background(), srv.URL+"/sitemap.xml", Filter{}); err == nil {
		t.Error("expected error for unknown document format")
	}
}

// TestParseLastMod tests the accepted timestamp layouts.
func TestParseLastMod(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in       string
		wantZero bool
	}{
		{"2026-01-10", false},
		{"2026-01-10T12:30:00Z", false},
		{"2026-01-10T12:30:00+09:00", false},
		{"", true},
		{"not-a-date", true},
	}

	for _, tt := range tests {
		got := parseLastMod(tt.in)
		if got.IsZero() != tt.wantZero {
			t.Errorf("parseLastMod(%q).IsZero() = %v, want %v", tt.in, got.IsZero(), tt.wantZero)
		}
	}
}
