// Phonographus - Music Listening History Enrichment and Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/phonographus

package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func newTestWriter(t *testing.T) *Writer {
	t.Helper()
	w, err := NewWriter(t.TempDir())
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}
	t.Cleanup(func() {
		if err := w.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return w
}

// findRow returns the first row whose column col equals want, or nil.
func findRow(f *Frame, col string, want any) []any {
	idx := f.ColumnIndex(col)
	if idx < 0 {
		return nil
	}
	for _, row := range f.Rows {
		if row[idx] == want {
			return row
		}
	}
	return nil
}

func TestWriteTableOverwriteRoundtrip(t *testing.T) {
	w := newTestWriter(t)
	ctx := context.Background()

	frame := NewFrame("artist_id", "name", "popularity")
	frame.Append("a1", "Boards of Canada", int64(70))
	frame.Append("a2", "Autechre", int64(60))

	stats, err := w.WriteTable(ctx, frame, "spotify_artists", Overwrite())
	if err != nil {
		t.Fatalf("WriteTable() error = %v", err)
	}
	if stats.RowsWritten != 2 || stats.RowsTotal != 2 {
		t.Errorf("WriteTable() stats = %+v, want 2 written, 2 total", stats)
	}

	got, err := w.ReadTable(ctx, "spotify_artists")
	if err != nil {
		t.Fatalf("ReadTable() error = %v", err)
	}
	if got.Len() != 2 {
		t.Fatalf("ReadTable() rows = %d, want 2", got.Len())
	}
	row := findRow(got, "artist_id", "a2")
	if row == nil {
		t.Fatal("ReadTable() missing artist a2")
	}
	if name := row[got.ColumnIndex("name")]; name != "Autechre" {
		t.Errorf("artist a2 name = %v, want Autechre", name)
	}
}

func TestWriteTableOverwriteReplaces(t *testing.T) {
	w := newTestWriter(t)
	ctx := context.Background()

	first := NewFrame("artist_id", "name")
	first.Append("a1", "Old")
	if _, err := w.WriteTable(ctx, first, "spotify_artists", Overwrite()); err != nil {
		t.Fatalf("WriteTable() error = %v", err)
	}

	second := NewFrame("artist_id", "name")
	second.Append("a2", "New")
	if _, err := w.WriteTable(ctx, second, "spotify_artists", Overwrite()); err != nil {
		t.Fatalf("WriteTable() error = %v", err)
	}

	got, err := w.ReadTable(ctx, "spotify_artists")
	if err != nil {
		t.Fatalf("ReadTable() error = %v", err)
	}
	if got.Len() != 1 {
		t.Fatalf("ReadTable() rows = %d, want 1", got.Len())
	}
	if findRow(got, "artist_id", "a1") != nil {
		t.Error("overwrite kept row a1, want it replaced")
	}
}

func TestWriteTableAppend(t *testing.T) {
	w := newTestWriter(t)
	ctx := context.Background()

	first := NewFrame("album_id", "name")
	first.Append("al1", "Geogaddi")
	if _, err := w.WriteTable(ctx, first, "spotify_albums", Overwrite()); err != nil {
		t.Fatalf("WriteTable() error = %v", err)
	}

	second := NewFrame("album_id", "name")
	second.Append("al2", "Amber")
	stats, err := w.WriteTable(ctx, second, "spotify_albums", Append())
	if err != nil {
		t.Fatalf("WriteTable() error = %v", err)
	}
	if stats.RowsTotal != 2 {
		t.Errorf("append total = %d, want 2", stats.RowsTotal)
	}
}

func TestWriteTableAppendReconcilesSchema(t *testing.T) {
	w := newTestWriter(t)
	ctx := context.Background()

	first := NewFrame("album_id", "name")
	first.Append("al1", "Geogaddi")
	if _, err := w.WriteTable(ctx, first, "spotify_albums", Overwrite()); err != nil {
		t.Fatalf("WriteTable() error = %v", err)
	}

	// Incoming frame has an extra column the stored table lacks.
	second := NewFrame("album_id", "name", "label")
	second.Append("al2", "Amber", "Warp")
	if _, err := w.WriteTable(ctx, second, "spotify_albums", Append()); err != nil {
		t.Fatalf("WriteTable() error = %v", err)
	}

	got, err := w.ReadTable(ctx, "spotify_albums")
	if err != nil {
		t.Fatalf("ReadTable() error = %v", err)
	}
	if got.ColumnIndex("label") < 0 {
		t.Fatalf("reconciled columns = %v, want label present", got.Columns)
	}
	old := findRow(got, "album_id", "al1")
	if old == nil {
		t.Fatal("missing original row al1")
	}
	if v := old[got.ColumnIndex("label")]; v != nil {
		t.Errorf("al1 label = %v, want NULL", v)
	}
	added := findRow(got, "album_id", "al2")
	if added == nil {
		t.Fatal("missing appended row al2")
	}
	if v := added[got.ColumnIndex("label")]; v != "Warp" {
		t.Errorf("al2 label = %v, want Warp", v)
	}
}

func TestWriteTableMergeKeepsLast(t *testing.T) {
	w := newTestWriter(t)
	ctx := context.Background()

	first := NewFrame("artist_id", "name", "popularity")
	first.Append("a1", "Boards of Canada", int64(70))
	first.Append("a2", "Autechre", int64(60))
	if _, err := w.WriteTable(ctx, first, "spotify_artists", MergeByKey("artist_id")); err != nil {
		t.Fatalf("WriteTable() error = %v", err)
	}

	// Re-fetch updates a1 and adds a3.
	second := NewFrame("artist_id", "name", "popularity")
	second.Append("a1", "Boards of Canada", int64(75))
	second.Append("a3", "Plaid", int64(50))
	stats, err := w.WriteTable(ctx, second, "spotify_artists", MergeByKey("artist_id"))
	if err != nil {
		t.Fatalf("WriteTable() error = %v", err)
	}
	if stats.RowsTotal != 3 {
		t.Errorf("merge total = %d, want 3", stats.RowsTotal)
	}

	got, err := w.ReadTable(ctx, "spotify_artists")
	if err != nil {
		t.Fatalf("ReadTable() error = %v", err)
	}
	row := findRow(got, "artist_id", "a1")
	if row == nil {
		t.Fatal("missing merged row a1")
	}
	if pop := row[got.ColumnIndex("popularity")]; pop != int64(75) {
		t.Errorf("a1 popularity = %v, want 75 (last write wins)", pop)
	}
}

func TestWriteTableMergeDeduplicatesWithinFrame(t *testing.T) {
	w := newTestWriter(t)
	ctx := context.Background()

	frame := NewFrame("artist_id", "name")
	frame.Append("a1", "First")
	frame.Append("a1", "Second")
	if _, err := w.WriteTable(ctx, frame, "spotify_artists", MergeByKey("artist_id")); err != nil {
		t.Fatalf("WriteTable() error = %v", err)
	}

	got, err := w.ReadTable(ctx, "spotify_artists")
	if err != nil {
		t.Fatalf("ReadTable() error = %v", err)
	}
	if got.Len() != 1 {
		t.Fatalf("rows = %d, want 1 after in-frame dedup", got.Len())
	}
	if name := got.Rows[0][got.ColumnIndex("name")]; name != "Second" {
		t.Errorf("kept name = %v, want Second (last occurrence)", name)
	}
}

func TestWriteTableMergeCompositeKey(t *testing.T) {
	w := newTestWriter(t)
	ctx := context.Background()

	first := NewFrame("artist_id", "genre")
	first.Append("a1", "idm")
	first.Append("a1", "ambient")
	if _, err := w.WriteTable(ctx, first, "spotify_artist_genre", MergeByKey("artist_id", "genre")); err != nil {
		t.Fatalf("WriteTable() error = %v", err)
	}

	second := NewFrame("artist_id", "genre")
	second.Append("a1", "idm")
	second.Append("a2", "downtempo")
	stats, err := w.WriteTable(ctx, second, "spotify_artist_genre", MergeByKey("artist_id", "genre"))
	if err != nil {
		t.Fatalf("WriteTable() error = %v", err)
	}
	if stats.RowsTotal != 3 {
		t.Errorf("composite merge total = %d, want 3", stats.RowsTotal)
	}
}

func TestWriteTableMergeMissingKeyColumn(t *testing.T) {
	w := newTestWriter(t)

	frame := NewFrame("name")
	frame.Append("Plaid")
	if _, err := w.WriteTable(context.Background(), frame, "spotify_artists", MergeByKey("artist_id")); err == nil {
		t.Error("WriteTable() error = nil, want error for missing merge key")
	}
}

func TestWriteTableEmptyFrameIsNoOp(t *testing.T) {
	w := newTestWriter(t)
	ctx := context.Background()

	first := NewFrame("artist_id", "name")
	first.Append("a1", "Boards of Canada")
	if _, err := w.WriteTable(ctx, first, "spotify_artists", Overwrite()); err != nil {
		t.Fatalf("WriteTable() error = %v", err)
	}

	stats, err := w.WriteTable(ctx, NewFrame("artist_id", "name"), "spotify_artists", MergeByKey("artist_id"))
	if err != nil {
		t.Fatalf("WriteTable() error = %v", err)
	}
	if stats.RowsWritten != 0 || stats.RowsTotal != 1 {
		t.Errorf("empty merge stats = %+v, want 0 written, 1 total", stats)
	}
}

func TestReadTableNotFound(t *testing.T) {
	w := newTestWriter(t)

	_, err := w.ReadTable(context.Background(), "no_such_table")
	if !errors.Is(err, ErrTableNotFound) {
		t.Errorf("ReadTable() error = %v, want ErrTableNotFound", err)
	}
}

func TestWriteTableInvalidName(t *testing.T) {
	w := newTestWriter(t)

	frame := NewFrame("x")
	frame.Append("y")
	for _, name := range []string{"", "Upper", "has space", "semi;colon", "dash-ed", "1leading"} {
		if _, err := w.WriteTable(context.Background(), frame, name, Overwrite()); err == nil {
			t.Errorf("WriteTable(%q) error = nil, want invalid name error", name)
		}
	}
}

func TestWriteTableLeavesNoTempFiles(t *testing.T) {
	w := newTestWriter(t)
	ctx := context.Background()

	frame := NewFrame("artist_id")
	frame.Append("a1")
	if _, err := w.WriteTable(ctx, frame, "spotify_artists", Overwrite()); err != nil {
		t.Fatalf("WriteTable() error = %v", err)
	}

	dir := filepath.Dir(w.TablePath("spotify_artists"))
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "spotify_artists.parquet" {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("table dir contents = %v, want exactly spotify_artists.parquet", names)
	}
}
