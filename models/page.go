package models

import "time"

// PageRequest addresses one page of a paginated listing.
type PageRequest struct {
	Index int
	Size  int
}

// PageStatus is the terminal outcome of a page fetch.
type PageStatus int

const (
	StatusFailure PageStatus = iota
	StatusSuccess
	StatusEmptyEnd
)

func (s PageStatus) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusEmptyEnd:
		return "empty_end"
	default:
		return "failure"
	}
}

// PageResult is the terminal result of fetching one page.
type PageResult struct {
	Page     int
	Status   PageStatus
	Records  []Record
	Err      error
	Attempts int
	// Last is set when a successful payload reported no further pages.
	Last bool
}

// PageFailure is a failed page with its reason, kept for the final report.
type PageFailure struct {
	Page   int
	Reason string
}

// HarvestResult holds the overall result of a harvesting run.
type HarvestResult struct {
	Resource        string
	StartTime       time.Time
	EndTime         time.Time
	Batches         int
	PagesDispatched int
	PagesSucceeded  int
	PagesEmpty      int
	PagesFailed     int
	Failures        []PageFailure
	RecordsWritten  int
	// RecordsDropped counts decoded records the output rejected as invalid.
	RecordsDropped  int
	RequestCount    int
	RetryCount      int
	ErrorsByType    map[string]int
	StoppedEarly    bool
}

// SuccessRate returns the percentage of pages with data that succeeded.
// Pages that signalled the end of the listing are not counted either way.
func (r *HarvestResult) SuccessRate() float64 {
	attempted := r.PagesDispatched - r.PagesEmpty
	if attempted <= 0 {
		return 0
	}
	return float64(r.PagesSucceeded) / float64(attempted) * 100
}

// Duration is the wall time of the run.
func (r *HarvestResult) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}
