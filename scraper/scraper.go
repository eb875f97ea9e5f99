// Package scraper walks a paginated listing page by page, retrying each page
// on its own and appending every successful page to the output as it lands.
package scraper

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/aluiziolira/go-scrape-reviews/config"
	"github.com/aluiziolira/go-scrape-reviews/parser"
	"github.com/aluiziolira/go-scrape-reviews/models"
	"github.com/gocolly/colly/v2"
	"github.com/gocolly/colly/v2/proxy"
)

// Source is one paginated remote listing.
type Source interface {
	Name() string
	Endpoint() string
	Body(req models.PageRequest, clientID string) ([]byte, error)
	Decode(body []byte) (parser.Listing, error)
}

// newCollector builds the shared collector every page fetch clones. Clones share
// its HTTP backend, so connections are pooled across workers.
func newCollector(cfg *config.Config) (*colly.Collector, error) {
	collector := colly.NewCollector()
	collector.AllowURLRevisit = true
	collector.ParseHTTPErrorResponse = true
	collector.IgnoreRobotsTxt = true
	collector.DisableCookies()
	collector.SetRequestTimeout(cfg.Timeout)
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: cfg.Concurrency,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig:     &tls.Config{InsecureSkipVerify: cfg.InsecureSkipVerify},
	})

	if len(cfg.Proxies) > 0 {
		switcher, err := proxy.RoundRobinProxySwitcher(cfg.Proxies...)
		if err != nil {
			return nil, fmt.Errorf("configure proxies: %w", err)
		}
		collector.SetProxyFunc(switcher)
	}

	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: cfg.Concurrency,
	}); err != nil {
		return nil, fmt.Errorf("configure rate limits: %w", err)
	}

	return collector, nil
}

func classifyError(err error, statusCode int) error {
	if err == nil && statusCode == 0 {
		return nil
	}

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return ErrTimeout{Err: err}
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return ErrTimeout{Err: err}
		}
		var opErr *net.OpError
		if errors.As(err, &opErr) {
			return ErrConnection{Err: err}
		}
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			return ErrTransport{Err: err}
		}
		return err
	}

	status := ErrHTTPStatus{StatusCode: statusCode}
	switch {
	case statusCode == http.StatusForbidden:
		return ErrForbidden{Err: status}
	case statusCode == http.StatusNotFound:
		return ErrNotFound{Err: status}
	case statusCode == http.StatusTooManyRequests:
		return ErrRateLimited{Err: status}
	case statusCode >= http.StatusMultipleChoices:
		return status
	}
	return nil
}
