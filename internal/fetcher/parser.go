package fetcher

import (
	"io"
	"net/url"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"

	"github.com/linkcanary/linkcanary/internal/model"
	"github.com/linkcanary/linkcanary/internal/urlutil"
)

// maxAnchorTextLen bounds stored anchor text. Reports need enough text to
// locate the link on the page, not the full contents of a styled anchor.
const maxAnchorTextLen = 200

// ExtractLinks parses an HTML document and returns its anchors in
// document order, plus the page's declared canonical URL if any.
//
// Relative hrefs are resolved against pageURL (honoring a <base href>),
// non-HTTP schemes and bare fragments are skipped, and each link is
// classified as internal or external relative to baseURL.
func ExtractLinks(r io.Reader, contentType, pageURL, baseURL string, includeSubdomains bool) ([]model.LinkReference, string, error) {
	decoded, err := charset.NewReader(r, contentType)
	if err != nil {
		return nil, "", err
	}

	doc, err := html.Parse(decoded)
	if err != nil {
		return nil, "", err
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, "", err
	}

	p := &pageParser{
		base:              base,
		pageURL:           pageURL,
		baseURL:           baseURL,
		includeSubdomains: includeSubdomains,
	}
	p.walk(doc)
	return p.links, p.canonical, nil
}

// pageParser accumulates anchors while walking the parse tree.
type pageParser struct {
	base              *url.URL
	pageURL           string
	baseURL           string
	includeSubdomains bool

	links     []model.LinkReference
	canonical string
}

func (p *pageParser) walk(n *html.Node) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "base":
			// <base href> changes the resolution base for every anchor
			// after it; browsers honor the first one only.
			if href := attr(n, "href"); href != "" {
				if resolved, err := p.base.Parse(href); err == nil {
					p.base = resolved
				}
			}
		case "link":
			if strings.EqualFold(attr(n, "rel"), "canonical") && p.canonical == "" {
				if href := attr(n, "href"); href != "" {
					if resolved, err := p.base.Parse(href); err == nil {
						p.canonical = resolved.String()
					}
				}
			}
		case "a":
			p.addAnchor(n)
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		p.walk(c)
	}
}

// addAnchor records one <a href> if it is checkable.
func (p *pageParser) addAnchor(n *html.Node) {
	href := attr(n, "href")
	if urlutil.ShouldSkipHref(href) {
		return
	}

	resolved, err := p.base.Parse(strings.TrimSpace(href))
	if err != nil {
		return
	}
	resolved.Fragment = ""

	target := resolved.String()
	if !urlutil.IsHTTPURL(target) {
		return
	}

	p.links = append(p.links, model.LinkReference{
		TargetURL:  target,
		AnchorText: anchorText(n),
		SourcePage: p.pageURL,
		IsInternal: urlutil.IsInternal(target, p.baseURL, p.includeSubdomains),
	})
}

// attr returns the value of the named attribute, or "".
func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, name) {
			return a.Val
		}
	}
	return ""
}

// anchorText collects the visible text inside an anchor, collapsing
// whitespace and truncating to maxAnchorTextLen. Truncation never splits
// a multi-byte rune: the cut backs up to the nearest rune boundary.
func anchorText(n *html.Node) string {
	var b strings.Builder
	collectText(n, &b)

	text := strings.Join(strings.Fields(b.String()), " ")
	if len(text) > maxAnchorTextLen {
		cut := maxAnchorTextLen
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}
	return text
}

func collectText(n *html.Node, b *strings.Builder) {
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
		b.WriteByte(' ')
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, b)
	}
}
