package pipeline

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/aluiziolira/go-scrape-reviews/models"
	"github.com/spf13/afero"
)

// utf8BOM lets spreadsheet tools detect the encoding of the CSV output.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// openAppend opens filename for appending, creating it and its directory as
// needed. fresh truncates an existing file first.
func openAppend(fs afero.Fs, filename string, fresh bool) (afero.File, int64, error) {
	if err := ensureDir(fs, filename); err != nil {
		return nil, 0, err
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_APPEND
	if fresh {
		flags |= os.O_TRUNC
	}
	f, err := fs.OpenFile(filename, flags, 0o644)
	if err != nil {
		return nil, 0, fmt.Errorf("open %q: %w", filename, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("stat %q: %w", filename, err)
	}
	return f, info.Size(), nil
}

// CSVWriter appends records to a CSV file. The header is read from an existing
// file or taken from the first record written, and every later record must match it.
type CSVWriter struct {
	file          afero.File
	writer        *csv.Writer
	header        []string
	headerWritten bool
	mu            sync.Mutex
}

// NewCSVWriter opens filename on fs for appending.
func NewCSVWriter(fs afero.Fs, filename string, fresh bool) (*CSVWriter, error) {
	f, size, err := openAppend(fs, filename, fresh)
	if err != nil {
		return nil, fmt.Errorf("create csv file: %w", err)
	}

	var header []string
	if size > 0 {
		header, err = readCSVHeader(fs, filename)
		if err != nil {
			f.Close()
			return nil, err
		}
	}

	return &CSVWriter{
		file:          f,
		writer:        csv.NewWriter(f),
		header:        header,
		headerWritten: size > 0,
	}, nil
}

// readCSVHeader returns the first row of filename, ignoring a leading BOM.
func readCSVHeader(fs afero.Fs, filename string) ([]string, error) {
	f, err := fs.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("read existing csv header: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	if prefix, err := r.Peek(len(utf8BOM)); err == nil && bytes.Equal(prefix, utf8BOM) {
		r.Discard(len(utf8BOM))
	}
	header, err := csv.NewReader(r).Read()
	if err != nil {
		return nil, fmt.Errorf("read existing csv header: %w", err)
	}
	return header, nil
}

// Write appends records as rows. The batch is checked as a whole first, so a
// rejected batch leaves the file untouched.
func (cw *CSVWriter) Write(records []models.Record) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if len(records) == 0 {
		return nil
	}
	header := cw.header
	if header == nil {
		header = records[0].Header()
	}

	rows := make([][]string, 0, len(records))
	for _, record := range records {
		if !slices.Equal(record.Header(), header) {
			return fmt.Errorf("csv record %q (%s) does not match the file header", record.Key(), record.Kind())
		}
		row := record.Row()
		if len(row) != len(header) {
			return fmt.Errorf("csv record %q has %d columns, header has %d", record.Key(), len(row), len(header))
		}
		rows = append(rows, row)
	}

	cw.header = header
	if !cw.headerWritten {
		if _, err := cw.file.Write(utf8BOM); err != nil {
			return fmt.Errorf("write csv bom: %w", err)
		}
		if err := cw.writer.Write(header); err != nil {
			return fmt.Errorf("write csv header: %w", err)
		}
		cw.headerWritten = true
	}
	if err := cw.writer.WriteAll(rows); err != nil {
		return fmt.Errorf("write csv records: %w", err)
	}
	return nil
}

// Close flushes and closes the file handle.
func (cw *CSVWriter) Close() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv writer: %w", err)
	}
	return cw.file.Close()
}

// Validate ensures the file has content.
func (cw *CSVWriter) Validate() error {
	return validateNonEmpty(cw.file, "csv")
}

// JSONWriter appends newline-delimited JSON records.
type JSONWriter struct {
	file   afero.File
	writer *bufio.Writer
	mu     sync.Mutex
}

// NewJSONWriter opens filename on fs for appending.
func NewJSONWriter(fs afero.Fs, filename string, fresh bool) (*JSONWriter, error) {
	f, _, err := openAppend(fs, filename, fresh)
	if err != nil {
		return nil, fmt.Errorf("create json file: %w", err)
	}

	return &JSONWriter{
		file:   f,
		writer: bufio.NewWriter(f),
	}, nil
}

// Write appends records in JSONL format. Nothing is written if any record fails to encode.
func (jw *JSONWriter) Write(records []models.Record) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	var batch bytes.Buffer
	encoder := json.NewEncoder(&batch)
	encoder.SetEscapeHTML(false)
	for _, record := range records {
		if err := encoder.Encode(record); err != nil {
			return fmt.Errorf("encode json record: %w", err)
		}
	}

	if _, err := jw.writer.Write(batch.Bytes()); err != nil {
		return fmt.Errorf("write json records: %w", err)
	}
	if err := jw.writer.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}

	return nil
}

// Close flushes buffers and closes the underlying file.
func (jw *JSONWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	if err := jw.writer.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}
	return jw.file.Close()
}

// Validate ensures the JSON file has data.
func (jw *JSONWriter) Validate() error {
	return validateNonEmpty(jw.file, "json")
}

func validateNonEmpty(f afero.File, kind string) error {
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s file: %w", kind, err)
	}
	if info.Size() <= 0 {
		return fmt.Errorf("%s file is empty", kind)
	}
	return nil
}

func ensureDir(fs afero.Fs, filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
