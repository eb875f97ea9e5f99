package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aluiziolira/go-scrape-reviews/config"
	"github.com/aluiziolira/go-scrape-reviews/credentials"
	"github.com/aluiziolira/go-scrape-reviews/models"
	"github.com/gocolly/colly/v2"
	"github.com/remeh/sizedwaitgroup"
)

// Appender is the append-only output a harvest writes to. Append must be safe
// for concurrent use and returns the number of records actually written.
type Appender interface {
	Append(records []models.Record) (int, error)
}

// Harvester drives a Source through its pages in bounded concurrent batches.
// A Harvester runs one harvest at a time.
type Harvester struct {
	cfg       *config.Config
	collector *colly.Collector
	fetcher   *Fetcher
	metrics   *Metrics
	sleep     sleepFunc
}

func NewHarvester(cfg *config.Config, creds credentials.Provider) (*Harvester, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if creds == nil {
		return nil, fmt.Errorf("credentials provider is required")
	}

	collector, err := newCollector(cfg)
	if err != nil {
		return nil, err
	}
	metrics := NewMetrics()

	return &Harvester{
		cfg:       cfg,
		collector: collector,
		fetcher:   newFetcher(cfg, collector, creds, metrics),
		metrics:   metrics,
		sleep:     sleepContext,
	}, nil
}

func (h *Harvester) Metrics() *Metrics {
	return h.metrics
}

// WithTransport routes every request through rt, replacing the configured
// transport and any proxy rotation.
func (h *Harvester) WithTransport(rt http.RoundTripper) {
	h.collector.WithTransport(rt)
}

// setSleeper replaces every pause the harvester takes.
func (h *Harvester) setSleeper(fn sleepFunc) {
	h.sleep = fn
	h.fetcher.sleep = fn
}

// pageBatches partitions the page range into consecutive batches.
func pageBatches(start, total, size int) [][]int {
	if total <= 0 || size <= 0 {
		return nil
	}
	batches := make([][]int, 0, (total+size-1)/size)
	for first := start; first < start+total; first += size {
		last := min(first+size, start+total)
		batch := make([]int, 0, last-first)
		for page := first; page < last; page++ {
			batch = append(batch, page)
		}
		batches = append(batches, batch)
	}
	return batches
}

// run is the mutable state of one harvest.
type run struct {
	mu     sync.Mutex
	result *models.HarvestResult
	stop   atomic.Bool
}

// Run harvests src into out and returns the run summary. Individual page
// failures never abort the run; cancelling ctx stops it between pages.
func (h *Harvester) Run(ctx context.Context, src Source, out Appender) (*models.HarvestResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if src == nil || out == nil {
		return nil, fmt.Errorf("source and output are required")
	}
	if u, err := url.Parse(src.Endpoint()); err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid endpoint %q", src.Endpoint())
	}

	h.fetcher.stats = newFetchStats()
	r := &run{result: &models.HarvestResult{
		Resource:     src.Name(),
		StartTime:    time.Now(),
		ErrorsByType: make(map[string]int),
	}}

	batches := pageBatches(h.cfg.StartPage, h.cfg.TotalPages, h.cfg.BatchSize)
	slog.Info("harvest starting",
		slog.String("resource", src.Name()),
		slog.Int("start_page", h.cfg.StartPage),
		slog.Int("pages", h.cfg.TotalPages),
		slog.Int("batches", len(batches)),
		slog.Int("concurrency", h.cfg.Concurrency),
	)

	for i, batch := range batches {
		if r.stop.Load() {
			r.result.StoppedEarly = true
			slog.Info("end of listing reached, not scheduling further batches",
				slog.Int("remaining_batches", len(batches)-i))
			break
		}
		if ctx.Err() != nil {
			r.result.StoppedEarly = true
			slog.Warn("harvest interrupted", slog.Int("remaining_batches", len(batches)-i))
			break
		}

		slog.Info("batch starting",
			slog.Int("batch", i+1),
			slog.Int("of", len(batches)),
			slog.Int("first_page", batch[0]),
			slog.Int("last_page", batch[len(batch)-1]),
		)

		swg := sizedwaitgroup.New(h.cfg.Concurrency)
		for _, page := range batch {
			swg.Add()
			go func(page int) {
				defer swg.Done()
				res := h.fetcher.Fetch(ctx, src, models.PageRequest{Index: page, Size: h.cfg.PageSize})
				h.settle(r, res, out)
			}(page)
		}
		swg.Wait()

		r.result.Batches++
		h.metrics.IncBatch()
		slog.Info("batch complete",
			slog.Int("batch", i+1),
			slog.Int("succeeded", r.result.PagesSucceeded),
			slog.Int("failed", r.result.PagesFailed),
			slog.Int("records", r.result.RecordsWritten),
			slog.Int64("requests_per_minute", h.metrics.RequestsPerMinute()),
		)

		if i < len(batches)-1 && !r.stop.Load() {
			rest := uniform(h.cfg.BatchCooldownMin, h.cfg.BatchCooldownMax)
			slog.Info("resting between batches", slog.Duration("duration", rest))
			if err := h.sleep(ctx, rest); err != nil {
				r.result.StoppedEarly = true
				slog.Warn("harvest interrupted", slog.Int("remaining_batches", len(batches)-i-1))
				break
			}
		}
	}

	r.result.EndTime = time.Now()
	r.result.RequestCount = int(h.fetcher.stats.requests.Load())
	r.result.RetryCount = int(h.fetcher.stats.retries.Load())
	for label, n := range h.fetcher.stats.snapshotErrors() {
		r.result.ErrorsByType[label] += n
	}

	slog.Info("harvest finished",
		slog.String("resource", r.result.Resource),
		slog.Int("succeeded", r.result.PagesSucceeded),
		slog.Int("empty", r.result.PagesEmpty),
		slog.Int("failed", r.result.PagesFailed),
		slog.Int("records", r.result.RecordsWritten),
		slog.Float64("success_rate", r.result.SuccessRate()),
		slog.Duration("duration", r.result.Duration()),
	)
	return r.result, nil
}

// settle records the terminal result of one page, appending its records on success.
func (h *Harvester) settle(r *run, res models.PageResult, out Appender) {
	h.metrics.IncPage(res.Status.String())

	switch res.Status {
	case models.StatusSuccess:
		written, err := out.Append(res.Records)
		if err != nil {
			perr := ErrPersist{Err: err}
			h.metrics.IncError("persist")
			slog.Error("page fetched but not persisted",
				slog.Int("page", res.Page),
				slog.Int("records", len(res.Records)),
				slog.Any("error", perr),
			)
			r.mu.Lock()
			r.result.PagesDispatched++
			r.result.PagesFailed++
			r.result.ErrorsByType["persist"]++
			r.result.Failures = append(r.result.Failures, models.PageFailure{Page: res.Page, Reason: perr.Error()})
			r.mu.Unlock()
			return
		}
		h.metrics.AddRecords(written)
		dropped := len(res.Records) - written
		if dropped > 0 {
			slog.Warn("records dropped",
				slog.Int("page", res.Page),
				slog.Int("dropped", dropped),
			)
		}
		if res.Last {
			r.stop.Store(true)
		}
		slog.Info("page harvested",
			slog.Int("page", res.Page),
			slog.Int("records", written),
			slog.Int("attempts", res.Attempts),
			slog.Bool("last", res.Last),
		)
		r.mu.Lock()
		r.result.PagesDispatched++
		r.result.PagesSucceeded++
		r.result.RecordsWritten += written
		r.result.RecordsDropped += dropped
		r.mu.Unlock()

	case models.StatusEmptyEnd:
		r.stop.Store(true)
		slog.Info("page empty, end of listing", slog.Int("page", res.Page))
		r.mu.Lock()
		r.result.PagesDispatched++
		r.result.PagesEmpty++
		r.mu.Unlock()

	default:
		slog.Error("page failed",
			slog.Int("page", res.Page),
			slog.Int("attempts", res.Attempts),
			slog.Any("error", res.Err),
		)
		reason := "unknown"
		if res.Err != nil {
			reason = res.Err.Error()
		}
		r.mu.Lock()
		r.result.PagesDispatched++
		r.result.PagesFailed++
		r.result.Failures = append(r.result.Failures, models.PageFailure{Page: res.Page, Reason: reason})
		r.mu.Unlock()
	}
}
