// Phonographus - Music Listening History Enrichment and Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/phonographus

package store

import (
	"fmt"
	"time"
)

// Frame is an ordered, in-memory relation: named columns and rows of values.
// It is the unit processors accumulate fetched data into before handing it to
// the Writer. Cell values may be string, int, int64, float64, bool,
// time.Time, or nil.
type Frame struct {
	Columns []string
	Rows    [][]any
}

// NewFrame creates an empty frame with the given column names.
func NewFrame(columns ...string) *Frame {
	return &Frame{Columns: columns}
}

// Append adds one row. The value count must match the column count.
func (f *Frame) Append(values ...any) error {
	if len(values) != len(f.Columns) {
		return fmt.Errorf("frame %d columns, got %d values", len(f.Columns), len(values))
	}
	f.Rows = append(f.Rows, values)
	return nil
}

// MustAppend adds one row and panics on a column-count mismatch. It is for
// builders whose layout is fixed at compile time, where a mismatch is a
// programming error no caller could recover from; rows must never be
// silently dropped.
func (f *Frame) MustAppend(values ...any) {
	if err := f.Append(values...); err != nil {
		panic(err)
	}
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	return len(f.Rows)
}

// Empty reports whether the frame has no rows.
func (f *Frame) Empty() bool {
	return len(f.Rows) == 0
}

// ColumnIndex returns the index of the named column, or -1.
func (f *Frame) ColumnIndex(name string) int {
	for i, c := range f.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Value returns the cell at (row, column name), or nil if the column does not
// exist.
func (f *Frame) Value(row int, column string) any {
	i := f.ColumnIndex(column)
	if i < 0 || row < 0 || row >= len(f.Rows) {
		return nil
	}
	return f.Rows[row][i]
}

// columnType infers the DuckDB column type from the first non-nil value in
// the column. Columns with no values default to VARCHAR, which round-trips
// safely through schema reconciliation.
func (f *Frame) columnType(col int) string {
	for _, row := range f.Rows {
		switch row[col].(type) {
		case nil:
			continue
		case time.Time:
			return "TIMESTAMP"
		case int, int32, int64:
			return "BIGINT"
		case float32, float64:
			return "DOUBLE"
		case bool:
			return "BOOLEAN"
		default:
			return "VARCHAR"
		}
	}
	return "VARCHAR"
}
