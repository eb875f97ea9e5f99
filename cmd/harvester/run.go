package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aluiziolira/go-scrape-reviews/config"
	"github.com/aluiziolira/go-scrape-reviews/credentials"
	"github.com/aluiziolira/go-scrape-reviews/pipeline"
	"github.com/aluiziolira/go-scrape-reviews/scraper"
	"github.com/aluiziolira/go-scrape-reviews/source"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/afero"
)

// listing is a harvestable source that also names the page a browser would
// request it from.
type listing interface {
	scraper.Source
	Referer() string
}

func newSource(cfg *config.Config) (listing, error) {
	switch cfg.Resource {
	case config.ResourceComments:
		return &source.Comments{URL: cfg.Endpoint, POIID: cfg.POIID, SortType: cfg.SortType}, nil
	case config.ResourceAttractions:
		return &source.Attractions{URL: cfg.Endpoint, DistrictID: cfg.DistrictID, SortType: 1}, nil
	}
	return nil, fmt.Errorf("unknown resource %q", cfg.Resource)
}

// run performs one harvest described by cfg. A non-nil transport replaces the
// network stack used for listing requests.
func run(parent context.Context, cfg *config.Config, stdout io.Writer, transport http.RoundTripper) error {
	if parent == nil {
		parent = context.Background()
	}

	src, err := newSource(cfg)
	if err != nil {
		return err
	}

	h, err := scraper.NewHarvester(cfg, credentials.NewRotating(src.Referer()))
	if err != nil {
		return fmt.Errorf("initialising harvester: %w", err)
	}
	if transport != nil {
		h.WithTransport(transport)
	}

	fs := afero.NewOsFs()
	writer, err := createWriter(fs, cfg)
	if err != nil {
		return fmt.Errorf("creating writer: %w", err)
	}

	p, err := pipeline.NewPipeline(writer, cfg.OverlapWindow)
	if err != nil {
		writer.Close()
		return err
	}
	if cfg.Verbose {
		p.StartMetricsReporting(30 * time.Second)
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		if parent.Err() == nil {
			slog.Info("shutdown signal received, finishing in-flight pages")
		}
	}()

	metricsServer := startMetricsServer(cfg.MetricsAddr, h.Metrics())

	result, runErr := h.Run(ctx, src, p)

	if err := p.Validate(); err != nil {
		slog.Warn("output validation failed", slog.Any("error", err))
	}
	if err := p.Close(); err != nil {
		slog.Error("pipeline shutdown failed", slog.Any("error", err))
		if runErr == nil {
			runErr = err
		}
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	if runErr != nil {
		return runErr
	}
	printSummary(stdout, result, outputFiles(cfg), p.GetMetrics())
	return nil
}

func startMetricsServer(addr string, metrics *scraper.Metrics) *http.Server {
	if addr == "" || metrics == nil {
		return nil
	}
	server := &http.Server{
		Addr:              addr,
		Handler:           promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", slog.Any("error", err))
		}
	}()
	slog.Info("metrics server enabled", slog.String("addr", addr))
	return server
}

// createWriter builds the writer for cfg.OutputFormat, adding the aggregate
// CSV file when one is configured.
func createWriter(fs afero.Fs, cfg *config.Config) (pipeline.OutputWriter, error) {
	var primary pipeline.OutputWriter
	var err error

	switch cfg.OutputFormat {
	case "json":
		primary, err = pipeline.NewJSONWriter(fs, cfg.OutputFile, cfg.Fresh)
	case "csv":
		primary, err = pipeline.NewCSVWriter(fs, cfg.OutputFile, cfg.Fresh)
	case "dual":
		primary, err = pipeline.NewDualWriter(fs, cfg.OutputFile, jsonCompanion(cfg.OutputFile), cfg.Fresh)
	case "sqlite":
		primary, err = pipeline.NewSQLiteWriter(cfg.OutputFile, cfg.Fresh)
	default:
		return nil, fmt.Errorf("unsupported format: %s", cfg.OutputFormat)
	}
	if err != nil {
		return nil, err
	}
	if cfg.AggregateFile == "" {
		return primary, nil
	}

	// The aggregate accumulates across runs, so it is never truncated.
	aggregate, err := pipeline.NewCSVWriter(fs, cfg.AggregateFile, false)
	if err != nil {
		primary.Close()
		return nil, fmt.Errorf("create aggregate writer: %w", err)
	}
	return pipeline.NewMultiWriter(primary, aggregate), nil
}

func jsonCompanion(csvFile string) string {
	return strings.TrimSuffix(csvFile, ".csv") + ".jsonl"
}

func outputFiles(cfg *config.Config) []string {
	files := []string{cfg.OutputFile}
	if cfg.OutputFormat == "dual" {
		files = append(files, jsonCompanion(cfg.OutputFile))
	}
	if cfg.AggregateFile != "" {
		files = append(files, cfg.AggregateFile)
	}
	return files
}
