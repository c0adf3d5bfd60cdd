package config

import (
	"os"
	"path/filepath"
	"testing"
)

// TestGetSiteConfig tests per-site merging over defaults.
func TestGetSiteConfig(t *testing.T) {
	t.Parallel()

	cf := &File{
		Defaults: SiteConfig{
			Headers: map[string]string{"X-Audit": "linkcanary"},
			Cookie:  "default=1",
		},
		Sites: map[string]SiteConfig{
			"staging.example.com": {
				Cookie:        "session=abc",
				BasicAuthUser: "preview",
				Headers:       map[string]string{"X-Preview": "yes"},
			},
		},
	}

	t.Run("site overrides defaults", func(t *testing.T) {
		t.Parallel()

		got := cf.GetSiteConfig("staging.example.com")
		if got.Cookie != "session=abc" {
			t.Errorf("Cookie = %q, want site override", got.Cookie)
		}
		if got.BasicAuthUser != "preview" {
			t.Errorf("BasicAuthUser = %q, want %q", got.BasicAuthUser, "preview")
		}
		if got.Headers["X-Audit"] != "linkcanary" {
			t.Error("expected default header to survive the merge")
		}
		if got.Headers["X-Preview"] != "yes" {
			t.Error("expected site header to be merged in")
		}
	})

	t.Run("unknown site gets defaults", func(t *testing.T) {
		t.Parallel()

		got := cf.GetSiteConfig("other.example.com")
		if got.Cookie != "default=1" {
			t.Errorf("Cookie = %q, want defaults", got.Cookie)
		}
	})
}

// TestLoadConfigFile tests loading the .linkcanary YAML file.
func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("loads sites and defaults", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), ".linkcanary")
		content := `
defaults:
  headers:
    X-Audit: "linkcanary"
sites:
  staging.example.com:
    basicAuthUser: preview
    basicAuthPassEnv: STAGING_PASSWORD
    cookie: "session=abc"
`
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatal(err)
		}

		cf, err := LoadConfigFile(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		site := cf.GetSiteConfig("staging.example.com")
		if site.BasicAuthUser != "preview" {
			t.Errorf("BasicAuthUser = %q, want %q", site.BasicAuthUser, "preview")
		}
		if site.BasicAuthPassEnv != "STAGING_PASSWORD" {
			t.Errorf("BasicAuthPassEnv = %q, want %q", site.BasicAuthPassEnv, "STAGING_PASSWORD")
		}
		if site.Headers["X-Audit"] != "linkcanary" {
			t.Error("expected default header via merge")
		}
	})

	t.Run("missing file returns ErrConfigNotFound", func(t *testing.T) {
		t.Parallel()

		_, err := LoadConfigFile(filepath.Join(t.TempDir(), "missing"))
		if err != ErrConfigNotFound {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})

	t.Run("malformed YAML is an error", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), ".linkcanary")
		if err := os.WriteFile(path, []byte("sites: [not a map"), 0600); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadConfigFile(path); err == nil {
			t.Error("expected error for malformed YAML")
		}
	})
}

// TestFindConfigFile tests the config file search order.
func TestFindConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("explicit existing path wins", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "custom.yaml")
		if err := os.WriteFile(path, []byte("sites: {}"), 0600); err != nil {
			t.Fatal(err)
		}
		if got := FindConfigFile(path); got != path {
			t.Errorf("FindConfigFile(%q) = %q, want the explicit path", path, got)
		}
	})

	t.Run("explicit missing path returns empty", func(t *testing.T) {
		t.Parallel()

		if got := FindConfigFile(filepath.Join(t.TempDir(), "missing")); got != "" {
			t.Errorf("FindConfigFile() = %q, want empty", got)
		}
	})
}
