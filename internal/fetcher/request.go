package fetcher

import (
	"net/http"
	"os"

	"github.com/linkcanary/linkcanary/internal/config"
	"github.com/linkcanary/linkcanary/internal/urlutil"
)

// RequestOptions decorates outbound requests with the identity and
// credentials a crawl runs under. Both the page fetcher and the link
// resolver share one instance so authenticated staging sites see
// consistent requests from every worker.
type RequestOptions struct {
	// UserAgent is sent with every request.
	UserAgent string

	// Headers are global extra headers from the CLI.
	Headers map[string]string

	// Cookies are global "name=value" cookies from the CLI.
	Cookies []string

	// Sites carries per-host settings from the .linkcanary file.
	Sites *config.File
}

// Apply sets the User-Agent, global headers and cookies, and any
// per-site credentials matching the request's host.
func (o *RequestOptions) Apply(req *http.Request) {
	if o == nil {
		return
	}

	if o.UserAgent != "" {
		req.Header.Set("User-Agent", o.UserAgent)
	}
	for k, v := range o.Headers {
		req.Header.Set(k, v)
	}
	for _, c := range o.Cookies {
		req.Header.Add("Cookie", c)
	}

	if o.Sites == nil {
		return
	}
	site := o.Sites.GetSiteConfig(urlutil.Domain(req.URL.String()))
	for k, v := range site.Headers {
		req.Header.Set(k, v)
	}
	if site.Cookie != "" {
		req.Header.Add("Cookie", site.Cookie)
	}
	if site.BasicAuthUser != "" {
		pass := site.BasicAuthPass
		if site.BasicAuthPassEnv != "" {
			if env := os.Getenv(site.BasicAuthPassEnv); env != "" {
				pass = env
			}
		}
		req.SetBasicAuth(site.BasicAuthUser, pass)
	}
}
