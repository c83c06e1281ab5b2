package fetch

import (
	"net/url"
	"strings"
)

// Site identifies a listing site with known page structure.
type Site string

const (
	// SiteSarkariResult is sarkariresult.com and its mirrors
	SiteSarkariResult Site = "sarkariresult"
	// SiteFreeJobAlert is freejobalert.com
	SiteFreeJobAlert Site = "freejobalert"
	// SiteRojgarResult is rojgarresult.com
	SiteRojgarResult Site = "rojgarresult"
	// SiteUnknown is any other site
	SiteUnknown Site = "unknown"
)

// DetectSite identifies the listing site from a URL.
func DetectSite(urlStr string) Site {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return SiteUnknown
	}
	host := strings.ToLower(parsed.Hostname())

	switch {
	case strings.Contains(host, "sarkariresult"):
		return SiteSarkariResult
	case strings.Contains(host, "freejobalert"):
		return SiteFreeJobAlert
	case strings.Contains(host, "rojgarresult"):
		return SiteRojgarResult
	default:
		return SiteUnknown
	}
}

// SiteContentSelectors returns content selectors for a site, most specific first.
func SiteContentSelectors(site Site) []string {
	switch site {
	case SiteSarkariResult:
		return append([]string{"#post", "div.post"}, ArticleSelectors()...)
	case SiteFreeJobAlert:
		return append([]string{".entry-content", "article.post"}, ArticleSelectors()...)
	case SiteRojgarResult:
		return append([]string{".gb-container .entry-content", ".inside-article"}, ArticleSelectors()...)
	default:
		return ArticleSelectors()
	}
}

// SiteNoiseSelectors returns noise selectors for a site on top of the base set.
func SiteNoiseSelectors(site Site) []string {
	common := []string{
		".social-share",
		".share-buttons",
		".sharedaddy",
		".cookie-banner",
		".cookie-consent",
		".advertisement",
		".adsbygoogle",
		".related-posts",
		".comments-area",
		"#comments",
	}

	switch site {
	case SiteSarkariResult:
		return append(common, "#menu", ".menu", "marquee")
	case SiteFreeJobAlert:
		return append(common, ".telegram-link", ".whatsapp-link", ".sidebar")
	case SiteRojgarResult:
		return append(common, ".site-header", ".sidebar", ".widget-area")
	default:
		return common
	}
}
