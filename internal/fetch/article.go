package fetch

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// ArticleFetcher downloads announcement pages and returns their text with the
// important links appended.
type ArticleFetcher struct {
	options        *Options
	browser        Renderer
	browserTimeout time.Duration
	logger         *zap.Logger
}

// ArticleFetcherConfig configures an ArticleFetcher.
type ArticleFetcherConfig struct {
	Options *Options
	// Browser enables headless rendering for pages whose static HTML has too little text.
	Browser        bool
	BrowserTimeout time.Duration
}

// NewArticleFetcher returns an ArticleFetcher.
func NewArticleFetcher(cfg ArticleFetcherConfig, logger *zap.Logger) *ArticleFetcher {
	if cfg.Options == nil {
		cfg.Options = DefaultOptions()
	}
	if cfg.BrowserTimeout == 0 {
		cfg.BrowserTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	f := &ArticleFetcher{
		options:        cfg.Options,
		browserTimeout: cfg.BrowserTimeout,
		logger:         logger.Named("fetch"),
	}
	if cfg.Browser {
		f.browser = WithBrowser
	}
	return f
}

// FetchArticle returns the main text of the page at articleURL followed by its
// extracted links section.
func (f *ArticleFetcher) FetchArticle(ctx context.Context, articleURL string) (string, error) {
	result, err := URL(ctx, articleURL, f.options)
	if err != nil {
		return "", err
	}

	content, err := f.render(result.HTML, articleURL)
	if err != nil {
		return "", err
	}

	if f.browser != nil && ShouldUseBrowser(content) {
		f.logger.Debug("thin page, rendering with browser", zap.String("url", articleURL), zap.Int("chars", len(content)))
		html, berr := f.browser(ctx, articleURL, f.browserTimeout)
		if berr != nil {
			f.logger.Warn("browser rendering failed", zap.String("url", articleURL), zap.Error(berr))
			return content, nil
		}
		if rendered, rerr := f.render(html, articleURL); rerr == nil && len(rendered) > len(content) {
			content = rendered
		}
	}
	return content, nil
}

func (f *ArticleFetcher) render(html, pageURL string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", &Error{URL: pageURL, Message: "failed to parse HTML", Cause: err}
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return "", &Error{URL: pageURL, Message: "invalid URL", Cause: err}
	}

	// Links are collected before noise removal so apply buttons inside forms survive.
	links := ExtractImportantLinks(doc, base)
	site := DetectSite(pageURL)
	text := mainText(doc, SiteContentSelectors(site), SiteNoiseSelectors(site))

	if section := FormatLinks(links); section != "" {
		return fmt.Sprintf("%s\n\n%s", text, section), nil
	}
	return text, nil
}
