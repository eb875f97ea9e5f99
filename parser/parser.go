// Package parser decodes listing payloads into records.
package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aluiziolira/go-scrape-reviews/models"
	"github.com/go-playground/validator/v10"
)

// ErrMalformedPayload is returned when a response body is not the expected JSON document.
var ErrMalformedPayload = errors.New("malformed payload")

// APIError is a well-formed response whose status says the request was refused.
type APIError struct {
	Code    int
	Message string
	// Throttled is set when the message asks the caller to slow down.
	Throttled bool
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api status %d: %s", e.Code, e.Message)
}

// Listing is the decoded content of one page.
type Listing struct {
	Records []models.Record
	// Items is the number of raw entries in the payload, including entries
	// that produced no record. Zero marks the end of the listing.
	Items int
	// HasMore is meaningful only when HasMoreKnown is set.
	HasMore      bool
	HasMoreKnown bool
}

// throttleMarkers are substrings of API messages meaning "too frequent" or "restricted".
var throttleMarkers = []string{"频繁", "限制"}

func isThrottleMessage(msg string) bool {
	for _, marker := range throttleMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func decodeJSON(body []byte, v any) error {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return fmt.Errorf("%w: empty body", ErrMalformedPayload)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return nil
}

// flexString accepts either a JSON string or a JSON number.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

var dateRe = regexp.MustCompile(`Date\((-?\d+)([+-]\d{4})?\)`)

// ConvertDate converts a "/Date(1700000000000+0800)/" timestamp to "2006-01-02 15:04:05"
// in the zone carried by the value. Unparseable input yields an empty string.
func ConvertDate(raw string) string {
	m := dateRe.FindStringSubmatch(raw)
	if m == nil {
		return ""
	}
	ms, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return ""
	}
	loc := time.UTC
	if offset := m[2]; offset != "" {
		hours, _ := strconv.Atoi(offset[1:3])
		minutes, _ := strconv.Atoi(offset[3:5])
		secs := hours*3600 + minutes*60
		if offset[0] == '-' {
			secs = -secs
		}
		loc = time.FixedZone(offset, secs)
	}
	return time.UnixMilli(ms).In(loc).Format(time.DateTime)
}

// NormalizeContent trims the text and folds line breaks into spaces.
func NormalizeContent(text string) string {
	text = strings.TrimSpace(text)
	text = strings.ReplaceAll(text, "\r\n", " ")
	return strings.ReplaceAll(text, "\n", " ")
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// ValidateRecord ensures the identity fields of a record are present.
func ValidateRecord(r models.Record) error {
	if r == nil {
		return fmt.Errorf("record is nil")
	}
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%s record %q: %w", r.Kind(), r.Key(), err)
	}
	return nil
}
