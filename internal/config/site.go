package config

// SiteConfig holds per-site settings for crawling protected environments
// (staging sites behind basic auth, preview deployments, etc.).
type SiteConfig struct {
	// Cookie is an HTTP cookie header value to send to this site.
	// Format: "name=value" or "name1=value1; name2=value2".
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are custom HTTP headers for requests to this site.
	Headers map[string]string `yaml:"headers,omitempty"`

	// BasicAuthUser is the username for HTTP basic authentication.
	BasicAuthUser string `yaml:"basicAuthUser,omitempty"`

	// BasicAuthPass is the password for HTTP basic authentication.
	// Prefer BasicAuthPassEnv in committed config files.
	BasicAuthPass string `yaml:"basicAuthPass,omitempty"`

	// BasicAuthPassEnv names an environment variable holding the password.
	BasicAuthPassEnv string `yaml:"basicAuthPassEnv,omitempty"`
}

// File represents the structure of the .linkcanary configuration file.
type File struct {
	// Sites maps site hosts (e.g. "staging.example.com") to their settings.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults applies to every site unless overridden per site.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the merged configuration for one site host:
// defaults first, then site-specific overrides.
func (cf *File) GetSiteConfig(host string) SiteConfig {
	result := cf.Defaults

	if site, ok := cf.Sites[host]; ok {
		if site.Cookie != "" {
			result.Cookie = site.Cookie
		}
		if site.BasicAuthUser != "" {
			result.BasicAuthUser = site.BasicAuthUser
		}
		if site.BasicAuthPass != "" {
			result.BasicAuthPass = site.BasicAuthPass
		}
		if site.BasicAuthPassEnv != "" {
			result.BasicAuthPassEnv = site.BasicAuthPassEnv
		}
		if len(site.Headers) > 0 {
			if result.Headers == nil {
				result.Headers = make(map[string]string)
			}
			for k, v := range site.Headers {
				result.Headers[k] = v
			}
		}
	}

	return result
}
