// Phonographus - Music Listening History Enrichment and Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/phonographus

// Package store implements the columnar file store: one directory of parquet
// files per logical table under a base path, written through DuckDB.
//
// The Writer is mechanical by design - it owns no enrichment policy. It
// provides three write modes:
//
//   - Overwrite: replace the table with the frame
//   - Append: existing rows plus new rows, schemas reconciled by name
//   - MergeByKey: upsert; for duplicate keys the LAST written row wins, so
//     freshly fetched data always replaces stale cached data
//
// All writes are atomic: the result is copied to a hidden temp file in the
// table directory and renamed over the canonical file. A crash or external
// kill mid-write leaves the previous table intact, which is what makes the
// orchestrator's wall-clock timeouts safe.
//
// Schema reconciliation uses DuckDB's UNION ALL BY NAME: when the incoming
// frame and the existing table disagree on columns, the union of columns is
// kept and missing cells become NULL. Enrichment sources evolve their field
// sets over time; a schema change must never fail a write.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/google/uuid"

	"github.com/tomtom215/phonographus/internal/logging"
	"github.com/tomtom215/phonographus/internal/models"
)

// ErrTableNotFound is returned by ReadTable when the table directory holds no
// parquet files.
var ErrTableNotFound = errors.New("table not found")

var tableNameRe = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

type modeKind int

const (
	modeOverwrite modeKind = iota
	modeAppend
	modeMerge
)

// Mode selects the write semantics for WriteTable.
type Mode struct {
	kind modeKind
	keys []string
}

// Overwrite replaces the whole table with the frame.
func Overwrite() Mode { return Mode{kind: modeOverwrite} }

// Append keeps existing rows and adds the frame's rows.
func Append() Mode { return Mode{kind: modeAppend} }

// MergeByKey upserts: rows sharing the given key columns are deduplicated
// keeping the last occurrence, everything else is preserved.
func MergeByKey(keys ...string) Mode { return Mode{kind: modeMerge, keys: keys} }

// WriteStats reports the outcome of one write.
type WriteStats struct {
	RowsWritten int // rows in the incoming frame
	RowsTotal   int // rows in the table after the write
}

// Writer reads and writes parquet tables through an in-process DuckDB
// connection. Safe for concurrent use; writes are serialized internally.
// Cross-process safety relies on the orchestrator's single-writer-per-table
// discipline plus atomic replace.
type Writer struct {
	basePath string
	db       *sql.DB
	mu       sync.Mutex
}

// NewWriter opens a Writer rooted at basePath, creating the directory if
// needed.
func NewWriter(basePath string) (*Writer, error) {
	if err := os.MkdirAll(basePath, 0o750); err != nil {
		return nil, fmt.Errorf("%w: creating store directory %s: %v", models.ErrStoreUnreachable, basePath, err)
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("%w: opening duckdb: %v", models.ErrStoreUnreachable, err)
	}

	return &Writer{basePath: basePath, db: db}, nil
}

// Close releases the underlying DuckDB connection.
func (w *Writer) Close() error {
	return w.db.Close()
}

// BasePath returns the store root directory.
func (w *Writer) BasePath() string {
	return w.basePath
}

// TablePath returns the canonical parquet file path for a table.
func (w *Writer) TablePath(name string) string {
	return filepath.Join(w.basePath, name, name+".parquet")
}

// TableGlob returns the parquet glob for a table directory. Reads use a glob
// rather than the canonical path so tables seeded externally (multiple files)
// still read as one relation.
func (w *Writer) TableGlob(name string) string {
	return filepath.Join(w.basePath, name, "*.parquet")
}

// TableExists reports whether the table has at least one parquet file.
func (w *Writer) TableExists(name string) bool {
	matches, err := filepath.Glob(w.TableGlob(name))
	return err == nil && len(matches) > 0
}

// ReadTable loads a whole table into a Frame. Returns ErrTableNotFound when
// no parquet files exist for the table.
func (w *Writer) ReadTable(ctx context.Context, name string) (*Frame, error) {
	if err := validateTableName(name); err != nil {
		return nil, err
	}
	if !w.TableExists(name) {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, name)
	}

	q := fmt.Sprintf("SELECT * FROM read_parquet(%s, union_by_name=true)", quoteLiteral(w.TableGlob(name)))
	rows, err := w.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("%w: reading table %s: %v", models.ErrStoreUnreachable, name, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("%w: reading columns of %s: %v", models.ErrStoreUnreachable, name, err)
	}

	frame := NewFrame(cols...)
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("%w: scanning row of %s: %v", models.ErrStoreUnreachable, name, err)
		}
		frame.Rows = append(frame.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating table %s: %v", models.ErrStoreUnreachable, name, err)
	}

	return frame, nil
}

// WriteTable persists a frame to the named table using the given mode.
// Writing an empty frame is a no-op for append/merge and truncates the table
// for overwrite.
func (w *Writer) WriteTable(ctx context.Context, frame *Frame, name string, mode Mode) (WriteStats, error) {
	if err := validateTableName(name); err != nil {
		return WriteStats{}, err
	}
	if frame == nil {
		return WriteStats{}, fmt.Errorf("nil frame for table %s", name)
	}
	if frame.Empty() && mode.kind != modeOverwrite {
		return WriteStats{RowsWritten: 0, RowsTotal: w.countRows(ctx, name)}, nil
	}
	if mode.kind == modeMerge {
		for _, k := range mode.keys {
			if frame.ColumnIndex(k) < 0 {
				return WriteStats{}, fmt.Errorf("merge key %q not in frame columns for table %s", k, name)
			}
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	dir := filepath.Dir(w.TablePath(name))
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return WriteStats{}, fmt.Errorf("%w: creating table directory %s: %v", models.ErrStoreUnreachable, dir, err)
	}

	if err := w.loadIncoming(ctx, frame); err != nil {
		return WriteStats{}, err
	}
	defer func() {
		if _, err := w.db.ExecContext(context.Background(), "DROP TABLE IF EXISTS incoming"); err != nil {
			logging.Warn().Err(err).Msg("Failed to drop staging table")
		}
	}()

	selectSQL, err := w.buildSelect(name, mode)
	if err != nil {
		return WriteStats{}, err
	}

	tmpPath := filepath.Join(dir, fmt.Sprintf(".%s-%s.parquet.tmp", name, uuid.NewString()))
	copySQL := fmt.Sprintf(
		"COPY (%s) TO %s (FORMAT PARQUET, COMPRESSION SNAPPY, ROW_GROUP_SIZE 10000)",
		selectSQL, quoteLiteral(tmpPath),
	)
	if _, err := w.db.ExecContext(ctx, copySQL); err != nil {
		_ = os.Remove(tmpPath)
		return WriteStats{}, fmt.Errorf("%w: writing table %s: %v", models.ErrStoreUnreachable, name, err)
	}

	// Atomic replace: rename over the canonical file, then clear any stray
	// files from earlier multi-file layouts.
	if err := os.Rename(tmpPath, w.TablePath(name)); err != nil {
		_ = os.Remove(tmpPath)
		return WriteStats{}, fmt.Errorf("%w: replacing table %s: %v", models.ErrStoreUnreachable, name, err)
	}
	w.removeStrayFiles(name)

	total := w.countRows(ctx, name)
	logging.Debug().
		Str("table", name).
		Int("rows_written", frame.Len()).
		Int("rows_total", total).
		Msg("Table written")

	return WriteStats{RowsWritten: frame.Len(), RowsTotal: total}, nil
}

// loadIncoming stages the frame as a DuckDB table named "incoming" with a
// __seq column preserving insertion order (last-wins needs a total order
// within the frame, not just between existing and new rows).
func (w *Writer) loadIncoming(ctx context.Context, frame *Frame) error {
	if _, err := w.db.ExecContext(ctx, "DROP TABLE IF EXISTS incoming"); err != nil {
		return fmt.Errorf("%w: dropping staging table: %v", models.ErrStoreUnreachable, err)
	}

	defs := make([]string, 0, len(frame.Columns)+1)
	for i, col := range frame.Columns {
		defs = append(defs, fmt.Sprintf("%s %s", quoteIdent(col), frame.columnType(i)))
	}
	defs = append(defs, "__seq BIGINT")

	createSQL := fmt.Sprintf("CREATE TABLE incoming (%s)", strings.Join(defs, ", "))
	if _, err := w.db.ExecContext(ctx, createSQL); err != nil {
		return fmt.Errorf("%w: creating staging table: %v", models.ErrStoreUnreachable, err)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(frame.Columns)+1), ", ")
	insertSQL := fmt.Sprintf("INSERT INTO incoming VALUES (%s)", placeholders)

	stmt, err := w.db.PrepareContext(ctx, insertSQL)
	if err != nil {
		return fmt.Errorf("%w: preparing staging insert: %v", models.ErrStoreUnreachable, err)
	}
	defer stmt.Close()

	for seq, row := range frame.Rows {
		args := make([]any, 0, len(row)+1)
		args = append(args, row...)
		args = append(args, int64(seq))
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("%w: staging row %d: %v", models.ErrStoreUnreachable, seq, err)
		}
	}

	return nil
}

// buildSelect produces the SELECT that computes the table's next contents
// from the staging table and (for append/merge) the existing parquet file.
func (w *Writer) buildSelect(name string, mode Mode) (string, error) {
	exists := w.TableExists(name)

	if mode.kind == modeOverwrite || !exists {
		if mode.kind == modeMerge {
			// No existing table: still dedupe within the frame itself.
			return w.dedupeSelect("SELECT *, CAST(0 AS BIGINT) AS __src FROM incoming", mode.keys), nil
		}
		return "SELECT * EXCLUDE (__seq) FROM incoming ORDER BY __seq", nil
	}

	combined := fmt.Sprintf(
		"SELECT *, (row_number() OVER ()) AS __seq, CAST(0 AS BIGINT) AS __src FROM read_parquet(%s, union_by_name=true) "+
			"UNION ALL BY NAME "+
			"SELECT *, CAST(1 AS BIGINT) AS __src FROM incoming",
		quoteLiteral(w.TableGlob(name)),
	)

	switch mode.kind {
	case modeAppend:
		return fmt.Sprintf(
			"SELECT * EXCLUDE (__seq, __src) FROM (SELECT * FROM (%s) ORDER BY __src, __seq)", combined), nil
	case modeMerge:
		return w.dedupeSelect(combined, mode.keys), nil
	default:
		return "", fmt.Errorf("unsupported write mode")
	}
}

// dedupeSelect keeps the last occurrence per key: later __src wins, and
// within the same source the higher __seq wins.
func (w *Writer) dedupeSelect(combined string, keys []string) string {
	quoted := make([]string, len(keys))
	for i, k := range keys {
		quoted[i] = quoteIdent(k)
	}
	partition := strings.Join(quoted, ", ")
	if partition == "" {
		// Merge with no keys degrades to distinct-rows append.
		return fmt.Sprintf("SELECT DISTINCT * EXCLUDE (__seq, __src) FROM (%s)", combined)
	}

	return fmt.Sprintf(
		"SELECT * EXCLUDE (__seq, __src, __rn) FROM ("+
			"SELECT *, row_number() OVER (PARTITION BY %s ORDER BY __src DESC, __seq DESC) AS __rn FROM (%s)"+
			") WHERE __rn = 1 ORDER BY __src, __seq",
		partition, combined,
	)
}

// countRows returns the current row count of a table, or 0 when absent or
// unreadable (callers only use this for reporting).
func (w *Writer) countRows(ctx context.Context, name string) int {
	if !w.TableExists(name) {
		return 0
	}
	var n int
	q := fmt.Sprintf("SELECT count(*) FROM read_parquet(%s, union_by_name=true)", quoteLiteral(w.TableGlob(name)))
	if err := w.db.QueryRowContext(ctx, q).Scan(&n); err != nil {
		return 0
	}
	return n
}

// removeStrayFiles deletes parquet files other than the canonical one so a
// table directory always reads as exactly one relation.
func (w *Writer) removeStrayFiles(name string) {
	matches, err := filepath.Glob(w.TableGlob(name))
	if err != nil {
		return
	}
	canonical := w.TablePath(name)
	for _, m := range matches {
		if m == canonical {
			continue
		}
		if err := os.Remove(m); err != nil {
			logging.Warn().Err(err).Str("file", m).Msg("Failed to remove stray table file")
		}
	}
}

func validateTableName(name string) error {
	if !tableNameRe.MatchString(name) {
		return fmt.Errorf("invalid table name %q", name)
	}
	return nil
}

// quoteIdent quotes a SQL identifier.
func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// quoteLiteral quotes a SQL string literal.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
