package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/aluiziolira/go-scrape-reviews/models"
	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
)

// maxListedFailures caps the failed pages printed in the summary.
const maxListedFailures = 20

func printSummary(w io.Writer, result *models.HarvestResult, outputs []string, metrics map[string]interface{}) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle("Harvest complete: " + result.Resource)

	t.AppendRows([]table.Row{
		{"Pages dispatched", humanize.Comma(int64(result.PagesDispatched))},
		{"Pages succeeded", humanize.Comma(int64(result.PagesSucceeded))},
		{"Pages empty", humanize.Comma(int64(result.PagesEmpty))},
		{"Pages failed", humanize.Comma(int64(result.PagesFailed))},
		{"Success rate", fmt.Sprintf("%.2f%%", result.SuccessRate())},
		{"Records written", humanize.Comma(int64(result.RecordsWritten))},
		{"Records dropped", humanize.Comma(int64(result.RecordsDropped))},
		{"Requests", humanize.Comma(int64(result.RequestCount))},
		{"Retries", humanize.Comma(int64(result.RetryCount))},
		{"Batches", result.Batches},
		{"Stopped early", result.StoppedEarly},
		{"Duration", result.Duration().Round(time.Millisecond).String()},
	})
	if len(result.ErrorsByType) > 0 {
		t.AppendRow(table.Row{"Error types", formatCounts(result.ErrorsByType)})
	}
	if validation, ok := metrics["validation_errors"].(map[string]int); ok && len(validation) > 0 {
		t.AppendRow(table.Row{"Drop reasons", formatCounts(validation)})
	}
	if overlap, ok := metrics["overlapping_records"].(int64); ok && overlap > 0 {
		t.AppendRow(table.Row{"Re-harvested records", humanize.Comma(overlap)})
	}

	t.AppendSeparator()
	for _, file := range outputs {
		size := "-"
		if info, err := os.Stat(file); err == nil {
			size = humanize.Bytes(uint64(info.Size()))
		}
		t.AppendRow(table.Row{"Output " + file, size})
	}
	t.Render()

	if len(result.Failures) == 0 {
		return
	}
	ft := table.NewWriter()
	ft.SetOutputMirror(w)
	ft.SetStyle(table.StyleLight)
	ft.SetTitle("Failed pages")
	ft.AppendHeader(table.Row{"Page", "Reason"})
	failures := append([]models.PageFailure(nil), result.Failures...)
	sort.Slice(failures, func(i, j int) bool { return failures[i].Page < failures[j].Page })
	for i, f := range failures {
		if i == maxListedFailures {
			ft.AppendFooter(table.Row{"", fmt.Sprintf("... and %d more", len(failures)-maxListedFailures)})
			break
		}
		ft.AppendRow(table.Row{f.Page, f.Reason})
	}
	ft.Render()
}

func formatCounts(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, counts[k]))
	}
	return strings.Join(parts, " ")
}
