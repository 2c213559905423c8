// Phonographus - Music Listening History Enrichment and Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/phonographus

package ingest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
)

// cursorState is the persisted ingestion position: the provider's opaque
// "after" cursor from the last successfully merged page.
type cursorState struct {
	After string `json:"after"`
}

// loadCursor reads the cursor file. A missing file means a first run and
// returns an empty cursor; a corrupt file is an error because silently
// restarting from zero would re-walk the whole feed.
func loadCursor(path string) (cursorState, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cursorState{}, nil
	}
	if err != nil {
		return cursorState{}, fmt.Errorf("reading cursor file %s: %w", path, err)
	}

	var state cursorState
	if err := json.Unmarshal(data, &state); err != nil {
		return cursorState{}, fmt.Errorf("parsing cursor file %s: %w", path, err)
	}
	return state, nil
}

// saveCursor persists the cursor atomically (temp file + rename) so a crash
// mid-write leaves the previous position intact. The cursor is only advanced
// after the page it came from has been merged, which makes replays safe: the
// play-event merge key absorbs duplicates.
func saveCursor(path string, state cursorState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encoding cursor: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating cursor directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".cursor-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp cursor file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing cursor: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("closing cursor file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replacing cursor file: %w", err)
	}
	return nil
}
