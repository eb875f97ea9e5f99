package pipeline

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aluiziolira/go-scrape-reviews/models"
	"github.com/spf13/afero"
)

func readCSV(t *testing.T, fs afero.Fs, path string) [][]string {
	t.Helper()
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if !bytes.HasPrefix(data, utf8BOM) {
		t.Fatalf("csv file should start with a UTF-8 BOM")
	}
	if bytes.Count(data, utf8BOM) != 1 {
		t.Fatalf("csv file should contain exactly one BOM")
	}
	rows, err := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM))).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	return rows
}

func writeCSV(t *testing.T, fs afero.Fs, path string, fresh bool, records []models.Record) {
	t.Helper()
	writer, err := NewCSVWriter(fs, path, fresh)
	if err != nil {
		t.Fatalf("create csv writer: %v", err)
	}
	if err := writer.Write(records); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	if err := writer.Validate(); err != nil {
		t.Fatalf("validate csv: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close csv: %v", err)
	}
}

func TestCSVWriterWrite(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeCSV(t, fs, "output/comments.csv", false, []models.Record{testComment(76342, 1)})

	rows := readCSV(t, fs, "output/comments.csv")
	if len(rows) != 2 {
		t.Fatalf("rows=%d, want 2", len(rows))
	}
	if rows[0][0] != "comment_id" || rows[0][19] != "scraped_at" {
		t.Fatalf("unexpected header: %v", rows[0])
	}
	row := rows[1]
	if row[0] != "1" || row[18] != "76342" {
		t.Fatalf("unexpected identity columns: %v", row)
	}
	if row[5] != `风景很美, "值得" 再来` {
		t.Fatalf("content=%q", row[5])
	}
	if row[14] != "2" || row[15] != "https://img.example.test/a.jpg|https://img.example.test/b.jpg" {
		t.Fatalf("image columns = %q / %q", row[14], row[15])
	}
	if row[19] != "2025-11-04T13:09:13Z" {
		t.Fatalf("scraped_at=%q", row[19])
	}
}

func TestCSVWriterAppendsWithSingleHeader(t *testing.T) {
	fs := afero.NewMemMapFs()
	path := "comments.csv"

	writeCSV(t, fs, path, false, testPage(1, 1, 3))
	writeCSV(t, fs, path, false, testPage(1, 1, 3))

	rows := readCSV(t, fs, path)
	if len(rows) != 7 {
		t.Fatalf("rows=%d, want 7 (one header and both runs)", len(rows))
	}
	headers := 0
	for _, row := range rows {
		if row[0] == "comment_id" {
			headers++
		}
	}
	if headers != 1 {
		t.Fatalf("header rows=%d, want 1", headers)
	}
}

func TestCSVWriterFreshTruncates(t *testing.T) {
	fs := afero.NewMemMapFs()
	path := "comments.csv"

	writeCSV(t, fs, path, false, testPage(1, 1, 5))
	writeCSV(t, fs, path, true, testPage(1, 2, 2))

	rows := readCSV(t, fs, path)
	if len(rows) != 3 {
		t.Fatalf("rows=%d, want 3 after fresh run", len(rows))
	}
}

func TestCSVWriterRejectsMixedRecordKinds(t *testing.T) {
	fs := afero.NewMemMapFs()
	writer, err := NewCSVWriter(fs, "mixed.csv", false)
	if err != nil {
		t.Fatalf("create csv writer: %v", err)
	}
	defer writer.Close()

	attraction := &models.Attraction{POIID: 9, Name: "Panda Base"}
	if err := writer.Write([]models.Record{testComment(1, 1), attraction}); err == nil {
		t.Fatalf("expected column mismatch error")
	}
}

func TestCSVWriterRejectedBatchLeavesFileUnchanged(t *testing.T) {
	fs := afero.NewMemMapFs()
	path := "comments.csv"
	writeCSV(t, fs, path, false, testPage(1, 1, 2))

	writer, err := NewCSVWriter(fs, path, false)
	if err != nil {
		t.Fatalf("create csv writer: %v", err)
	}
	attraction := &models.Attraction{POIID: 9, Name: "Panda Base"}
	if err := writer.Write([]models.Record{testComment(1, 7), attraction}); err == nil {
		t.Fatalf("expected mismatch error")
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close csv: %v", err)
	}

	rows := readCSV(t, fs, path)
	if len(rows) != 3 {
		t.Fatalf("rows=%d, want 3 (no rows from the rejected batch)", len(rows))
	}
}

func TestCSVWriterRejectsKindNotMatchingExistingFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	path := "aggregate.csv"
	writeCSV(t, fs, path, false, testPage(1, 1, 1))

	writer, err := NewCSVWriter(fs, path, false)
	if err != nil {
		t.Fatalf("create csv writer: %v", err)
	}
	defer writer.Close()

	attraction := &models.Attraction{POIID: 9, Name: "Panda Base"}
	err = writer.Write([]models.Record{attraction})
	if err == nil || !strings.Contains(err.Error(), "does not match the file header") {
		t.Fatalf("err = %v, want header mismatch", err)
	}

	if err := writer.Write(testPage(1, 2, 1)); err != nil {
		t.Fatalf("matching records should still append: %v", err)
	}
}

func TestCSVWriterValidateEmpty(t *testing.T) {
	fs := afero.NewMemMapFs()
	writer, err := NewCSVWriter(fs, "empty.csv", false)
	if err != nil {
		t.Fatalf("create csv writer: %v", err)
	}
	defer writer.Close()

	if err := writer.Validate(); err == nil {
		t.Fatalf("expected empty file error")
	}
}

func TestJSONWriterWrite(t *testing.T) {
	fs := afero.NewMemMapFs()
	path := "out/attractions.jsonl"

	for run := 0; run < 2; run++ {
		writer, err := NewJSONWriter(fs, path, false)
		if err != nil {
			t.Fatalf("create json writer: %v", err)
		}
		attraction := &models.Attraction{
			POIID:      76342,
			Name:       "Chengdu Research Base of Giant Panda Breeding",
			Tags:       "亲子、动物",
			IsFree:     false,
			DistrictID: 104,
			ScrapedAt:  time.Date(2025, 11, 4, 13, 9, 13, 0, time.UTC),
		}
		if err := writer.Write([]models.Record{attraction}); err != nil {
			t.Fatalf("write json: %v", err)
		}
		if err := writer.Close(); err != nil {
			t.Fatalf("close json: %v", err)
		}
	}

	f, err := fs.Open(path)
	if err != nil {
		t.Fatalf("open json: %v", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lines := 0
	for scanner.Scan() {
		lines++
		var decoded models.Attraction
		if err := json.Unmarshal(scanner.Bytes(), &decoded); err != nil {
			t.Fatalf("decode line %d: %v", lines, err)
		}
		if decoded.POIID != 76342 || decoded.Tags != "亲子、动物" {
			t.Fatalf("unexpected record: %+v", decoded)
		}
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan json: %v", err)
	}
	if lines != 2 {
		t.Fatalf("lines=%d, want 2", lines)
	}
}

func TestDualWriterWritesBoth(t *testing.T) {
	fs := afero.NewMemMapFs()
	writer, err := NewDualWriter(fs, "out/c.csv", "out/c.jsonl", false)
	if err != nil {
		t.Fatalf("create dual writer: %v", err)
	}
	if err := writer.Write(testPage(1, 1, 4)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := writer.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if rows := readCSV(t, fs, "out/c.csv"); len(rows) != 5 {
		t.Fatalf("csv rows=%d, want 5", len(rows))
	}
	data, err := afero.ReadFile(fs, "out/c.jsonl")
	if err != nil {
		t.Fatalf("read jsonl: %v", err)
	}
	if got := strings.Count(string(data), "\n"); got != 4 {
		t.Fatalf("jsonl lines=%d, want 4", got)
	}
}

func TestMultiWriterValidateReportsEveryWriter(t *testing.T) {
	fs := afero.NewMemMapFs()
	first, err := NewCSVWriter(fs, "a.csv", false)
	if err != nil {
		t.Fatalf("create csv writer: %v", err)
	}
	second, err := NewJSONWriter(fs, "b.jsonl", false)
	if err != nil {
		t.Fatalf("create json writer: %v", err)
	}
	mw := NewMultiWriter(first, second)
	defer mw.Close()

	err = mw.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.Contains(err.Error(), "csv file is empty") || !strings.Contains(err.Error(), "json file is empty") {
		t.Fatalf("validation error should name both writers: %v", err)
	}
}

func TestSQLiteWriterAppendsPerKind(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db", "harvest.db")

	writer, err := NewSQLiteWriter(path, false)
	if err != nil {
		t.Fatalf("create sqlite writer: %v", err)
	}
	if err := writer.Validate(); err == nil {
		t.Fatalf("expected empty database error")
	}
	records := append(testPage(1, 1, 3), &models.Attraction{POIID: 9, Name: "Panda Base"})
	if err := writer.Write(records); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := writer.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewSQLiteWriter(path, false)
	if err != nil {
		t.Fatalf("reopen sqlite writer: %v", err)
	}
	if err := reopened.Write(testPage(1, 1, 3)); err != nil {
		t.Fatalf("write again: %v", err)
	}
	comments, err := reopened.Count("comments")
	if err != nil {
		t.Fatalf("count comments: %v", err)
	}
	attractions, err := reopened.Count("attractions")
	if err != nil {
		t.Fatalf("count attractions: %v", err)
	}
	if comments != 6 || attractions != 1 {
		t.Fatalf("comments=%d attractions=%d, want 6/1", comments, attractions)
	}
	if err := reopened.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	fresh, err := NewSQLiteWriter(path, true)
	if err != nil {
		t.Fatalf("fresh sqlite writer: %v", err)
	}
	defer fresh.Close()
	if _, err := fresh.Count("comments"); err == nil {
		t.Fatalf("fresh database should not contain previous tables")
	}
}
