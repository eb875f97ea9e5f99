package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/aluiziolira/go-scrape-reviews/models"
	_ "modernc.org/sqlite"
)

// SQLiteWriter appends records to one table per record kind. Every column is
// TEXT and holds the same values as the CSV output.
type SQLiteWriter struct {
	db     *sql.DB
	tables map[string]string // kind -> insert statement
	mu     sync.Mutex
}

// NewSQLiteWriter opens the database at path. fresh removes an existing file first.
func NewSQLiteWriter(path string, fresh bool) (*SQLiteWriter, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if fresh {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("remove %q: %w", path, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One connection keeps writes ordered and avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}

	return &SQLiteWriter{
		db:     db,
		tables: make(map[string]string),
	}, nil
}

// Write inserts records inside a single transaction.
func (sw *SQLiteWriter) Write(records []models.Record) error {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if len(records) == 0 {
		return nil
	}

	ctx := context.Background()
	tx, err := sw.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin sqlite transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, record := range records {
		insert, err := sw.ensureTable(ctx, tx, record)
		if err != nil {
			return err
		}
		row := record.Row()
		args := make([]any, len(row))
		for i, v := range row {
			args[i] = v
		}
		if _, err := tx.ExecContext(ctx, insert, args...); err != nil {
			return fmt.Errorf("insert %s record %q: %w", record.Kind(), record.Key(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit sqlite transaction: %w", err)
	}
	return nil
}

// ensureTable creates the table of record's kind on first use and returns its
// insert statement.
func (sw *SQLiteWriter) ensureTable(ctx context.Context, tx *sql.Tx, record models.Record) (string, error) {
	kind := record.Kind()
	if insert, ok := sw.tables[kind]; ok {
		return insert, nil
	}

	header := record.Header()
	columns := make([]string, len(header))
	placeholders := make([]string, len(header))
	for i, name := range header {
		columns[i] = quoteIdent(name)
		placeholders[i] = "?"
	}

	create := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s TEXT)", quoteIdent(kind), strings.Join(columns, " TEXT, "))
	if _, err := tx.ExecContext(ctx, create); err != nil {
		return "", fmt.Errorf("create table %s: %w", kind, err)
	}

	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(kind), strings.Join(columns, ", "), strings.Join(placeholders, ", "))
	sw.tables[kind] = insert
	return insert, nil
}

// Count returns the number of rows stored for kind.
func (sw *SQLiteWriter) Count(kind string) (int, error) {
	var n int
	err := sw.db.QueryRow("SELECT COUNT(*) FROM " + quoteIdent(kind)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", kind, err)
	}
	return n, nil
}

func (sw *SQLiteWriter) Close() error {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.db.Close()
}

// Validate ensures at least one table holds rows.
func (sw *SQLiteWriter) Validate() error {
	sw.mu.Lock()
	kinds := make([]string, 0, len(sw.tables))
	for kind := range sw.tables {
		kinds = append(kinds, kind)
	}
	sw.mu.Unlock()

	for _, kind := range kinds {
		n, err := sw.Count(kind)
		if err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
	}
	return fmt.Errorf("sqlite database is empty")
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
