package discovery

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/jonathan/rojgar-pipeline/internal/fetch"
	"github.com/jonathan/rojgar-pipeline/internal/ledger"
	"github.com/jonathan/rojgar-pipeline/internal/types"
)

// Config controls collector behavior.
type Config struct {
	UserAgent     string
	RespectRobots bool
	Timeout       time.Duration
	// Now supplies the reference year for the outdated-title filter.
	Now func() time.Time
}

// Collector crawls listing pages with colly and returns new announcement links.
type Collector struct {
	cfg  Config
	base *colly.Collector
	log  *zap.Logger
}

// New builds a Collector.
func New(cfg Config, logger *zap.Logger) *Collector {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := colly.NewCollector(colly.Async(false))
	c.WithTransport(newHTTPTransport())
	return &Collector{cfg: cfg, base: c, log: logger.Named("discovery")}
}

// Discover visits source and returns links that pass the filter and are not in
// seen. Every returned URL is added to seen so a link listed by several sources
// is only returned once per cycle.
func (c *Collector) Discover(ctx context.Context, source string, seen ledger.Set) ([]types.Link, error) {
	filter := DefaultFilter(c.cfg.Now().Year())
	var (
		candidates []types.Link
		fetchErr   error
	)

	collector := c.base.Clone()
	collector.Context = ctx
	if c.cfg.UserAgent != "" {
		collector.UserAgent = c.cfg.UserAgent
	}
	collector.IgnoreRobotsTxt = !c.cfg.RespectRobots
	collector.AllowURLRevisit = true
	collector.SetRequestTimeout(c.cfg.Timeout)

	collector.OnHTML("a[href]", func(e *colly.HTMLElement) {
		title := strings.Join(strings.Fields(e.Text), " ")
		switch reason := filter.Check(title); reason {
		case ReasonAccepted:
		case ReasonOutdatedYear:
			c.log.Debug("skipping outdated link", zap.String("title", title))
			return
		default:
			return
		}

		if href, ok := fetch.ResolveHref(e.Request.URL, e.Attr("href")); ok {
			candidates = append(candidates, types.Link{Title: title, URL: href})
		}
	})
	collector.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(source)
	}()

	select {
	case <-ctx.Done():
		return nil, &Error{Source: source, Message: "canceled", Cause: ctx.Err()}
	case err := <-done:
		if ctx.Err() != nil {
			return nil, &Error{Source: source, Message: "canceled", Cause: ctx.Err()}
		}
		if err != nil {
			return nil, &Error{Source: source, Message: "visit failed", Cause: err}
		}
		if fetchErr != nil {
			return nil, &Error{Source: source, Message: "response failed", Cause: fetchErr}
		}
	}

	var links []types.Link
	for _, link := range candidates {
		if seen.Has(link.URL) {
			continue
		}
		seen.Add(link.URL)
		links = append(links, link)
	}

	c.log.Info("discovered links", zap.String("source", source), zap.Int("new", len(links)))
	return links, nil
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          20,
		IdleConnTimeout:       90 * time.Second,
	}
}
