package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aluiziolira/go-scrape-reviews/config"
	"github.com/aluiziolira/go-scrape-reviews/credentials"
	"github.com/aluiziolira/go-scrape-reviews/models"
	"github.com/aluiziolira/go-scrape-reviews/parser"
	"github.com/gocolly/colly/v2"
	"golang.org/x/time/rate"
)

// sleepFunc pauses for d or until ctx is done.
type sleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// uniform returns a random duration in [min, max].
func uniform(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min+1)))
}

// fetchStats are the counters of one harvesting run.
type fetchStats struct {
	requests atomic.Int64
	retries  atomic.Int64

	mu           sync.Mutex
	errorsByType map[string]int
}

func newFetchStats() *fetchStats {
	return &fetchStats{errorsByType: make(map[string]int)}
}

func (s *fetchStats) addError(label string) {
	s.mu.Lock()
	s.errorsByType[label]++
	s.mu.Unlock()
}

func (s *fetchStats) snapshotErrors() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.errorsByType))
	for k, v := range s.errorsByType {
		out[k] = v
	}
	return out
}

// Fetcher performs the fetch-with-retry cycle of a single page.
type Fetcher struct {
	cfg       *config.Config
	collector *colly.Collector
	creds     credentials.Provider
	limiter   *rate.Limiter
	metrics   *Metrics
	sleep     sleepFunc
	stats     *fetchStats
}

func newFetcher(cfg *config.Config, collector *colly.Collector, creds credentials.Provider, metrics *Metrics) *Fetcher {
	f := &Fetcher{
		cfg:       cfg,
		collector: collector,
		creds:     creds,
		metrics:   metrics,
		sleep:     sleepContext,
		stats:     newFetchStats(),
	}
	if cfg.RequestsPerSecond > 0 {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		f.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return f
}

// pageCollector is a clone of the shared collector dedicated to one page.
type pageCollector struct {
	c    *colly.Collector
	resp *colly.Response
}

func (f *Fetcher) newPageCollector() *pageCollector {
	pc := &pageCollector{c: f.collector.Clone()}
	pc.c.AllowURLRevisit = true
	pc.c.ParseHTTPErrorResponse = true
	pc.c.OnResponse(func(r *colly.Response) {
		pc.resp = r
	})
	return pc
}

// Fetch returns the terminal result of req. It never returns a pending result:
// every path ends in Success, EmptyEnd or Failure.
func (f *Fetcher) Fetch(ctx context.Context, src Source, req models.PageRequest) models.PageResult {
	result := models.PageResult{Page: req.Index}
	pc := f.newPageCollector()

	var lastErr error
	for attempt := 0; attempt < f.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			f.stats.retries.Add(1)
			f.metrics.IncRetries()
		}
		if err := f.pace(ctx); err != nil {
			result.Status = models.StatusFailure
			result.Err = fmt.Errorf("page %d interrupted: %w", req.Index, err)
			return result
		}

		result.Attempts = attempt + 1
		listing, err := f.attempt(pc, src, req)
		if err == nil {
			// A page of entries that yield no records is not the end of the listing.
			if listing.Items == 0 {
				result.Status = models.StatusEmptyEnd
				return result
			}
			result.Status = models.StatusSuccess
			result.Records = listing.Records
			result.Last = listing.HasMoreKnown && !listing.HasMore
			return result
		}

		lastErr = err
		label := errorTypeLabel(err)
		f.stats.addError(label)
		f.metrics.IncError(label)

		kind := retryKindOf(err)
		if kind == retryNever {
			result.Status = models.StatusFailure
			result.Err = err
			return result
		}
		if attempt == f.cfg.MaxRetries-1 {
			break
		}

		delay := f.delayFor(kind, attempt)
		slog.Warn("page attempt failed, retrying",
			slog.Int("page", req.Index),
			slog.Int("attempt", attempt+1),
			slog.Int("max_attempts", f.cfg.MaxRetries),
			slog.String("category", label),
			slog.Duration("delay", delay),
			slog.Any("error", err),
		)
		if err := f.sleep(ctx, delay); err != nil {
			result.Status = models.StatusFailure
			result.Err = fmt.Errorf("page %d interrupted: %w", req.Index, err)
			return result
		}
	}

	result.Status = models.StatusFailure
	result.Err = fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, result.Attempts, lastErr)
	return result
}

// pace spaces out requests before every attempt.
func (f *Fetcher) pace(ctx context.Context) error {
	if err := f.sleep(ctx, uniform(f.cfg.PaceMin, f.cfg.PaceMax)); err != nil {
		return err
	}
	if f.limiter != nil {
		return f.limiter.Wait(ctx)
	}
	return nil
}

func (f *Fetcher) delayFor(kind retryKind, attempt int) time.Duration {
	switch kind {
	case retryRateLimit:
		f.metrics.IncCooldown("rate_limited")
		return f.cfg.RateLimitCooldown
	case retryThrottle:
		f.metrics.IncCooldown("throttled")
		return f.cfg.ThrottleCooldown
	}
	shift := attempt
	if shift > 16 {
		shift = 16
	}
	return f.cfg.RetryBackoff*time.Duration(1<<shift) + uniform(f.cfg.RetryJitterMin, f.cfg.RetryJitterMax)
}

func (f *Fetcher) attempt(pc *pageCollector, src Source, req models.PageRequest) (parser.Listing, error) {
	bundle, err := f.creds.Credentials()
	if err != nil {
		return parser.Listing{}, fmt.Errorf("credentials: %w", err)
	}
	body, err := src.Body(req, bundle.ClientID)
	if err != nil {
		return parser.Listing{}, fmt.Errorf("encode request: %w", err)
	}

	hdr := http.Header{}
	hdr.Set("Content-Type", "application/json")
	target, err := bundle.ApplyTo(hdr, src.Endpoint())
	if err != nil {
		return parser.Listing{}, fmt.Errorf("build request url: %w", err)
	}

	pc.resp = nil
	start := time.Now()
	err = pc.c.Request(http.MethodPost, target, bytes.NewReader(body), colly.NewContext(), hdr)
	f.metrics.ObserveDuration(time.Since(start))
	f.stats.requests.Add(1)

	if err != nil {
		f.metrics.IncRequest("error")
		return parser.Listing{}, classifyError(err, 0)
	}
	if pc.resp == nil {
		f.metrics.IncRequest("error")
		return parser.Listing{}, ErrTransport{Err: errors.New("no response received")}
	}
	f.metrics.IncRequest(strconv.Itoa(pc.resp.StatusCode/100) + "xx")
	if err := classifyError(nil, pc.resp.StatusCode); err != nil {
		return parser.Listing{}, err
	}

	listing, err := src.Decode(pc.resp.Body)
	if err != nil {
		var apiErr *parser.APIError
		if errors.As(err, &apiErr) {
			if apiErr.Throttled {
				return parser.Listing{}, ErrRateLimited{Err: apiErr}
			}
			return parser.Listing{}, ErrAPI{Err: apiErr}
		}
		return parser.Listing{}, ErrMalformed{Err: err}
	}
	return listing, nil
}
