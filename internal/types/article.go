package types

import (
	"regexp"
	"strings"
)

// Link is a candidate announcement link found on a source listing page.
type Link struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Article is a fetched announcement page. It lives for one pipeline cycle and is never persisted.
type Article struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

// Cluster is a non-empty group of articles judged to describe the same announcement.
// Articles are ordered by their index in the batch that was clustered.
type Cluster struct {
	Articles []Article `json:"articles"`
}

// URLs returns the URLs of every article in the cluster.
func (c Cluster) URLs() []string {
	urls := make([]string, 0, len(c.Articles))
	for _, a := range c.Articles {
		urls = append(urls, a.URL)
	}
	return urls
}

// Lead returns the first article of the cluster.
func (c Cluster) Lead() Article {
	if len(c.Articles) == 0 {
		return Article{}
	}
	return c.Articles[0]
}

// MaxSlugLength caps record ids and artifact names.
const MaxSlugLength = 80

var nonSlugRun = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lower-cases text, collapses every run of non-alphanumeric characters
// to one hyphen, trims hyphens at the ends and caps the length.
func Slugify(text string) string {
	slug := nonSlugRun.ReplaceAllString(strings.ToLower(text), "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > MaxSlugLength {
		slug = strings.TrimRight(slug[:MaxSlugLength], "-")
	}
	return slug
}
