package fetch

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonathan/rojgar-pipeline/internal/types"
)

// ExtractedLinksHeader separates page text from the extracted link list.
const ExtractedLinksHeader = "--- EXTRACTED LINKS ---"

// importantLinkKeywords mark anchors whose targets the model should see.
var importantLinkKeywords = []string{
	"apply online",
	"notification",
	"official website",
	"login",
	"click here",
	"download result",
	"admit card",
	"answer key",
	"syllabus",
}

// ExtractImportantLinks returns anchors whose text mentions an application,
// notification or download action, resolved against base. Each label is kept
// once, first occurrence wins.
func ExtractImportantLinks(doc *goquery.Document, base *url.URL) []types.Link {
	var links []types.Link
	seen := make(map[string]bool)

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		label := strings.Join(strings.Fields(s.Text()), " ")
		if label == "" || seen[label] {
			return
		}
		lower := strings.ToLower(label)
		matched := false
		for _, kw := range importantLinkKeywords {
			if strings.Contains(lower, kw) {
				matched = true
				break
			}
		}
		if !matched {
			return
		}

		href, _ := s.Attr("href")
		resolved, ok := ResolveHref(base, href)
		if !ok {
			return
		}
		seen[label] = true
		links = append(links, types.Link{Title: label, URL: resolved})
	})
	return links
}

// FormatLinks renders links as `"label": "url"` lines under ExtractedLinksHeader.
func FormatLinks(links []types.Link) string {
	if len(links) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(ExtractedLinksHeader)
	sb.WriteString("\n")
	for _, l := range links {
		sb.WriteString(fmt.Sprintf("%q: %q\n", l.Title, l.URL))
	}
	return sb.String()
}

// ResolveHref resolves href against base and keeps only http(s) targets, without
// the fragment. Empty and fragment-only hrefs are rejected.
func ResolveHref(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	if base != nil {
		ref = base.ResolveReference(ref)
	}
	if ref.Scheme != "http" && ref.Scheme != "https" {
		return "", false
	}
	ref.Fragment = ""
	return ref.String(), true
}
