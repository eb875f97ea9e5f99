// Package pipeline is the append-only output of a harvest: records are
// validated, checked against recently written keys and handed to a writer
// one page at a time.
package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aluiziolira/go-scrape-reviews/models"
	"github.com/aluiziolira/go-scrape-reviews/parser"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/zeebo/xxh3"
)

var (
	// ErrPipelineClosed is returned when Append is called after Close.
	ErrPipelineClosed = errors.New("pipeline: closed")
)

// OutputWriter defines the interface for data output.
type OutputWriter interface {
	Write(records []models.Record) error
	Close() error
	Validate() error
}

// Pipeline serializes appends from concurrent workers onto one writer.
type Pipeline struct {
	writer OutputWriter

	// mu serializes Append and guards closed.
	mu     sync.Mutex
	closed bool

	// recent holds hashes of the last written keys; nil disables overlap counting.
	recent *lru.Cache[uint64, struct{}]

	metrics metrics

	shutdown     chan struct{}
	shutdownOnce sync.Once
}

// NewPipeline builds a pipeline writing to writer. overlapWindow is how many
// recent record keys are remembered to count re-harvested records; zero disables it.
func NewPipeline(writer OutputWriter, overlapWindow int) (*Pipeline, error) {
	if writer == nil {
		return nil, fmt.Errorf("pipeline: writer is required")
	}
	p := &Pipeline{
		writer:   writer,
		metrics:  newMetrics(),
		shutdown: make(chan struct{}),
	}
	if overlapWindow > 0 {
		cache, err := lru.New[uint64, struct{}](overlapWindow)
		if err != nil {
			return nil, fmt.Errorf("pipeline: overlap window: %w", err)
		}
		p.recent = cache
	}
	return p, nil
}

// Append validates records and writes the valid ones as one unit. It returns
// the number of records written. Records already seen are still written: the
// output is append-only and overlaps are only counted.
func (p *Pipeline) Append(records []models.Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, ErrPipelineClosed
	}

	batch := make([]models.Record, 0, len(records))
	for _, record := range records {
		if prepared := p.prepare(record); prepared != nil {
			batch = append(batch, prepared)
		}
	}
	if len(batch) == 0 {
		return 0, nil
	}

	if err := p.writer.Write(batch); err != nil {
		p.metrics.addFailedBatch()
		return 0, fmt.Errorf("write batch: %w", err)
	}
	p.metrics.addAppended(len(batch))
	return len(batch), nil
}

// Close prevents further appends and closes the writer.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	p.signalShutdown()
	return p.writer.Close()
}

// Validate checks the writer produced usable output.
func (p *Pipeline) Validate() error {
	return p.writer.Validate()
}

// GetMetrics returns a snapshot of the internal counters.
func (p *Pipeline) GetMetrics() map[string]interface{} {
	return p.metrics.snapshot()
}

// StartMetricsReporting emits periodic progress logs until Close.
func (p *Pipeline) StartMetricsReporting(interval time.Duration) {
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				metrics := p.GetMetrics()
				slog.Info("pipeline progress",
					slog.Int64("appended_records", metrics["appended_records"].(int64)),
					slog.Int64("overlapping_records", metrics["overlapping_records"].(int64)),
					slog.Any("validation_errors", metrics["validation_errors"]),
				)
			case <-p.shutdown:
				return
			}
		}
	}()
}

// prepare is called with p.mu held.
func (p *Pipeline) prepare(record models.Record) models.Record {
	if record == nil {
		return nil
	}
	if err := parser.ValidateRecord(record); err != nil {
		p.metrics.addValidation("invalid_record")
		slog.Warn("dropping invalid record", slog.String("kind", record.Kind()), slog.Any("error", err))
		return nil
	}

	if p.recent != nil {
		key := xxh3.HashString(record.Kind() + "\x00" + record.Key())
		if p.recent.Contains(key) {
			p.metrics.addOverlap()
		} else {
			p.recent.Add(key, struct{}{})
		}
	}
	return record
}

func (p *Pipeline) signalShutdown() {
	p.shutdownOnce.Do(func() {
		close(p.shutdown)
	})
}

type metrics struct {
	mu            sync.Mutex
	appended      int64
	overlapping   int64
	failedBatches int64
	validation    map[string]int
}

func newMetrics() metrics {
	return metrics{
		validation: make(map[string]int),
	}
}

func (m *metrics) addAppended(n int) {
	m.mu.Lock()
	m.appended += int64(n)
	m.mu.Unlock()
}

func (m *metrics) addOverlap() {
	m.mu.Lock()
	m.overlapping++
	m.mu.Unlock()
}

func (m *metrics) addFailedBatch() {
	m.mu.Lock()
	m.failedBatches++
	m.mu.Unlock()
}

func (m *metrics) addValidation(kind string) {
	m.mu.Lock()
	m.validation[kind]++
	m.mu.Unlock()
}

func (m *metrics) snapshot() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	copyValidation := make(map[string]int, len(m.validation))
	for k, v := range m.validation {
		copyValidation[k] = v
	}

	return map[string]interface{}{
		"appended_records":    m.appended,
		"overlapping_records": m.overlapping,
		"failed_batches":      m.failedBatches,
		"validation_errors":   copyValidation,
	}
}
