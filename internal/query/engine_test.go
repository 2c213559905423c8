// Phonographus - Music Listening History Enrichment and Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/phonographus

package query

import (
	"context"
	"testing"
	"time"

	"github.com/tomtom215/phonographus/internal/models"
	"github.com/tomtom215/phonographus/internal/store"
)

func newTestEngine(t *testing.T) (*Engine, *store.Writer) {
	t.Helper()
	w, err := store.NewWriter(t.TempDir())
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}
	e, err := NewEngine(w, 48*time.Hour, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	t.Cleanup(func() {
		if err := e.Close(); err != nil {
			t.Errorf("engine Close() error = %v", err)
		}
		if err := w.Close(); err != nil {
			t.Errorf("writer Close() error = %v", err)
		}
	})
	return e, w
}

func seedTracks(t *testing.T, w *store.Writer, plays ...[]any) {
	t.Helper()
	f := store.NewFrame(
		"played_at", "track_id", "track_name", "isrc",
		"artist_id", "artist_name", "album_id", "album_name",
	)
	for _, p := range plays {
		f.Append(p...)
	}
	if _, err := w.WriteTable(context.Background(), f, TableTracksPlayed, store.MergeByKey("played_at", "track_id")); err != nil {
		t.Fatalf("seeding tracks_played: %v", err)
	}
}

func TestMissingArtistBatch(t *testing.T) {
	e, w := newTestEngine(t)
	ctx := context.Background()
	now := time.Now().UTC()

	seedTracks(t, w,
		[]any{now, "t1", "Roygbiv", "GBAAA9800001", "a2", "Boards of Canada", "al1", "Music Has the Right"},
		[]any{now, "t2", "Gantz Graf", "GBAAA0200002", "a1", "Autechre", "al2", "Gantz Graf"},
		[]any{now, "t3", "Eyen", "GBAAA9900003", "a3", "Plaid", "al3", "Rest Proof Clockwork"},
	)

	known := store.NewFrame("artist_id", "artist_name")
	known.Append("a3", "Plaid")
	if _, err := w.WriteTable(ctx, known, TableSpotifyArtists, store.MergeByKey("artist_id")); err != nil {
		t.Fatalf("seeding spotify_artists: %v", err)
	}

	got, err := e.MissingArtistBatch(ctx, 50)
	if err != nil {
		t.Fatalf("MissingArtistBatch() error = %v", err)
	}
	want := []models.ArtistCandidate{
		{ID: "a1", Name: "Autechre"},
		{ID: "a2", Name: "Boards of Canada"},
	}
	if len(got) != len(want) {
		t.Fatalf("MissingArtistBatch() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("batch[%d] = %v, want %v (name-ordered)", i, got[i], want[i])
		}
	}

	n, err := e.CountMissing(ctx, EntitySpotifyArtist)
	if err != nil {
		t.Fatalf("CountMissing() error = %v", err)
	}
	if n != 2 {
		t.Errorf("CountMissing() = %d, want 2", n)
	}
}

func TestMissingArtistBatchRespectsLimit(t *testing.T) {
	e, w := newTestEngine(t)
	now := time.Now().UTC()

	seedTracks(t, w,
		[]any{now, "t1", "x", "ISRC1", "a1", "Autechre", "al1", "x"},
		[]any{now, "t2", "y", "ISRC2", "a2", "Boards of Canada", "al2", "y"},
	)

	got, err := e.MissingArtistBatch(context.Background(), 1)
	if err != nil {
		t.Fatalf("MissingArtistBatch() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != "a1" {
		t.Errorf("MissingArtistBatch(limit=1) = %v, want first-ordered a1", got)
	}
}

// Processors always fetch the next batch from the top after merging results.
// Progress relies on the missing set shrinking, so a merged entity must never
// reappear in a later batch.
func TestBatchShrinksAfterMerge(t *testing.T) {
	e, w := newTestEngine(t)
	ctx := context.Background()
	now := time.Now().UTC()

	seedTracks(t, w,
		[]any{now, "t1", "x", "ISRC1", "a1", "Autechre", "al1", "x"},
		[]any{now, "t2", "y", "ISRC2", "a2", "Boards of Canada", "al2", "y"},
		[]any{now, "t3", "z", "ISRC3", "a3", "Plaid", "al3", "z"},
	)

	seen := map[string]bool{}
	for i := 0; i < 4; i++ {
		batch, err := e.MissingArtistBatch(ctx, 1)
		if err != nil {
			t.Fatalf("MissingArtistBatch() error = %v", err)
		}
		if len(batch) == 0 {
			break
		}
		if seen[batch[0].ID] {
			t.Fatalf("artist %s returned again after merge", batch[0].ID)
		}
		seen[batch[0].ID] = true

		done := store.NewFrame("artist_id", "artist_name")
		done.Append(batch[0].ID, batch[0].Name)
		if _, err := w.WriteTable(ctx, done, TableSpotifyArtists, store.MergeByKey("artist_id")); err != nil {
			t.Fatalf("merging enriched artist: %v", err)
		}
	}
	if len(seen) != 3 {
		t.Errorf("enriched %d artists across batches, want 3", len(seen))
	}
}

func TestMissingArtistBatchExcludesFailures(t *testing.T) {
	e, w := newTestEngine(t)
	ctx := context.Background()
	now := time.Now().UTC()

	seedTracks(t, w,
		[]any{now, "t1", "x", "ISRC1", "a1", "Autechre", "al1", "x"},
		[]any{now, "t2", "y", "ISRC2", "a2", "Boards of Canada", "al2", "y"},
	)

	failures := store.NewFrame("domain", "entity_key", "reason", "failed_at")
	failures.Append(string(models.FailureSpotifyArtist), "a1", "not found", now.Add(-time.Hour))
	// Aged past the 7d TTL: must not suppress the entity.
	failures.Append(string(models.FailureSpotifyArtist), "a2", "not found", now.Add(-8*24*time.Hour))
	if _, err := w.WriteTable(ctx, failures, TableFailures, store.Append()); err != nil {
		t.Fatalf("seeding failures: %v", err)
	}

	got, err := e.MissingArtistBatch(ctx, 50)
	if err != nil {
		t.Fatalf("MissingArtistBatch() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != "a2" {
		t.Errorf("MissingArtistBatch() = %v, want only a2 (a1 failed recently, a2 failure expired)", got)
	}
}

func TestMissingAlbumBatch(t *testing.T) {
	e, w := newTestEngine(t)
	ctx := context.Background()
	now := time.Now().UTC()

	seedTracks(t, w,
		[]any{now, "t1", "x", "ISRC1", "a1", "Autechre", "al1", "Amber"},
		[]any{now, "t2", "y", "ISRC2", "a1", "Autechre", "al2", "Tri Repetae"},
	)
	known := store.NewFrame("album_id", "album_name")
	known.Append("al2", "Tri Repetae")
	if _, err := w.WriteTable(ctx, known, TableSpotifyAlbums, store.MergeByKey("album_id")); err != nil {
		t.Fatalf("seeding spotify_albums: %v", err)
	}

	got, err := e.MissingAlbumBatch(ctx, 50)
	if err != nil {
		t.Fatalf("MissingAlbumBatch() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != "al1" {
		t.Errorf("MissingAlbumBatch() = %v, want only al1", got)
	}
}

func TestMissingMBZArtistBatchWindowsByRecency(t *testing.T) {
	e, w := newTestEngine(t)
	ctx := context.Background()
	now := time.Now().UTC()

	seedTracks(t, w,
		[]any{now.Add(-time.Hour), "t1", "x", "ISRC1", "a1", "Autechre", "al1", "x"},
		[]any{now.Add(-72 * time.Hour), "t2", "y", "ISRC2", "a2", "Boards of Canada", "al2", "y"},
	)

	got, err := e.MissingMBZArtistBatch(ctx, 50)
	if err != nil {
		t.Fatalf("MissingMBZArtistBatch() error = %v", err)
	}
	if len(got) != 1 || got[0].Name != "Autechre" || got[0].ISRC != "ISRC1" || got[0].SpotifyID != "a1" {
		t.Errorf("MissingMBZArtistBatch() = %v, want only recently played Autechre", got)
	}
}

func TestMissingMBZArtistBatchMatchesBySpotifyID(t *testing.T) {
	e, w := newTestEngine(t)
	ctx := context.Background()
	now := time.Now().UTC()

	// The stored record carries MusicBrainz's canonical spelling, which
	// need not match the play history's. Only the Spotify id links them.
	seedTracks(t, w,
		[]any{now, "t1", "x", "ISRC1", "a1", "ASAP Rocky", "al1", "x"},
		[]any{now, "t2", "y", "ISRC2", "a2", "Autechre", "al2", "y"},
	)
	info := store.NewFrame("id", "spotify_id", "name", "area_id")
	info.Append("mbid-1", "a1", "A$AP Rocky", "area-1")
	if _, err := w.WriteTable(ctx, info, TableMBZArtistInfo, store.MergeByKey("id")); err != nil {
		t.Fatalf("seeding mbz_artist_info: %v", err)
	}

	got, err := e.MissingMBZArtistBatch(ctx, 50)
	if err != nil {
		t.Fatalf("MissingMBZArtistBatch() error = %v", err)
	}
	if len(got) != 1 || got[0].SpotifyID != "a2" {
		t.Errorf("MissingMBZArtistBatch() = %v, want only Autechre (a1 enriched under its canonical name)", got)
	}
}

func TestMissingAreaBatch(t *testing.T) {
	e, w := newTestEngine(t)
	ctx := context.Background()

	info := store.NewFrame("id", "name", "area_id")
	info.Append("mbid-1", "Autechre", "area-1")
	info.Append("mbid-2", "Plaid", "area-2")
	info.Append("mbid-3", "Unknown", nil)
	if _, err := w.WriteTable(ctx, info, TableMBZArtistInfo, store.MergeByKey("id")); err != nil {
		t.Fatalf("seeding mbz_artist_info: %v", err)
	}
	hier := store.NewFrame("area_id", "area_name", "city_name", "country_code", "continent", "params")
	hier.Append("area-2", "Rochdale", "Rochdale", "GB", "Europe", "Rochdale,GB")
	if _, err := w.WriteTable(ctx, hier, TableMBZAreaHierarchy, store.MergeByKey("area_id")); err != nil {
		t.Fatalf("seeding mbz_area_hierarchy: %v", err)
	}

	got, err := e.MissingAreaBatch(ctx, 50)
	if err != nil {
		t.Fatalf("MissingAreaBatch() error = %v", err)
	}
	if len(got) != 1 || got[0] != "area-1" {
		t.Errorf("MissingAreaBatch() = %v, want [area-1]", got)
	}
}

func TestAreasNeedingGeoBatch(t *testing.T) {
	e, w := newTestEngine(t)
	ctx := context.Background()

	hier := store.NewFrame("area_id", "area_name", "city_name", "country_code", "continent", "params")
	hier.Append("area-1", "Rochdale", "Rochdale", "GB", nil, nil)
	hier.Append("area-2", "Sheffield", "Sheffield", "GB", "Europe", "Sheffield,GB")
	if _, err := w.WriteTable(ctx, hier, TableMBZAreaHierarchy, store.MergeByKey("area_id")); err != nil {
		t.Fatalf("seeding mbz_area_hierarchy: %v", err)
	}

	got, err := e.AreasNeedingGeoBatch(ctx, 50)
	if err != nil {
		t.Fatalf("AreasNeedingGeoBatch() error = %v", err)
	}
	if len(got) != 1 || got[0] != "area-1" {
		t.Errorf("AreasNeedingGeoBatch() = %v, want [area-1]", got)
	}
}

func TestMissingCityBatch(t *testing.T) {
	e, w := newTestEngine(t)
	ctx := context.Background()

	hier := store.NewFrame("area_id", "area_name", "city_name", "country_code", "continent", "params")
	hier.Append("area-1", "Rochdale", "Rochdale", "GB", "Europe", "Rochdale,GB")
	hier.Append("area-2", "Sheffield", "Sheffield", "GB", "Europe", "Sheffield,GB")
	if _, err := w.WriteTable(ctx, hier, TableMBZAreaHierarchy, store.MergeByKey("area_id")); err != nil {
		t.Fatalf("seeding mbz_area_hierarchy: %v", err)
	}
	cities := store.NewFrame("params", "city_name", "country_code", "lat", "long")
	cities.Append("Sheffield,GB", "Sheffield", "GB", 53.38, -1.47)
	if _, err := w.WriteTable(ctx, cities, TableCities, store.MergeByKey("params")); err != nil {
		t.Fatalf("seeding cities: %v", err)
	}

	got, err := e.MissingCityBatch(ctx, 50)
	if err != nil {
		t.Fatalf("MissingCityBatch() error = %v", err)
	}
	want := models.CityCandidate{City: "Rochdale", CountryCode: "GB", Params: "Rochdale,GB"}
	if len(got) != 1 || got[0] != want {
		t.Errorf("MissingCityBatch() = %v, want [%v]", got, want)
	}
}

func TestMissingBatchesEmptyWithoutSourceTables(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	if got, err := e.MissingArtistBatch(ctx, 10); err != nil || len(got) != 0 {
		t.Errorf("MissingArtistBatch() = %v, %v, want empty, nil", got, err)
	}
	if got, err := e.MissingCityBatch(ctx, 10); err != nil || len(got) != 0 {
		t.Errorf("MissingCityBatch() = %v, %v, want empty, nil", got, err)
	}
	if n, err := e.CountMissing(ctx, EntityMBZArtist); err != nil || n != 0 {
		t.Errorf("CountMissing(mbz_artist) = %d, %v, want 0, nil", n, err)
	}
}
