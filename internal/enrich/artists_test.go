// Phonographus - Music Listening History Enrichment and Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/phonographus

package enrich

import (
	"context"
	"testing"
	"time"

	"github.com/tomtom215/phonographus/internal/models"
	"github.com/tomtom215/phonographus/internal/query"
)

func TestSpotifyArtistProcessorEnrichesAll(t *testing.T) {
	w, e, ft := newTestEnv(t)
	now := time.Now().UTC()
	seedTracks(t, w,
		[]any{now, "t1", "x", "ISRC1", "a1", "Autechre", "al1", "x"},
		[]any{now, "t2", "y", "ISRC2", "a2", "Boards of Canada", "al2", "y"},
	)

	catalog := &fakeCatalog{
		artists: map[string]models.ArtistRecord{
			"a1": {ArtistID: "a1", Name: "Autechre", Popularity: 60, Followers: 250000},
			"a2": {ArtistID: "a2", Name: "Boards of Canada", Popularity: 70, Followers: 900000},
		},
		genres: map[string][]string{"a1": {"idm", "electronic"}},
	}

	res := NewSpotifyArtistProcessor(w, e, ft, catalog, 50).Process(context.Background(), 0)
	if res.Status != models.StatusSuccess {
		t.Fatalf("status = %s (%s), want success", res.Status, res.Message)
	}
	if res.Data["processed"] != 2 {
		t.Errorf("processed = %v, want 2", res.Data["processed"])
	}
	if res.Data["total_missing"] != 2 || res.Data["num_batches"] != 1 {
		t.Errorf("batch plan = %v/%v, want total_missing 2 in 1 batch",
			res.Data["total_missing"], res.Data["num_batches"])
	}

	artists := readTable(t, w, query.TableSpotifyArtists)
	if artists.Len() != 2 {
		t.Errorf("spotify_artists rows = %d, want 2", artists.Len())
	}
	genres := readTable(t, w, query.TableSpotifyGenres)
	if genres.Len() != 2 {
		t.Errorf("spotify_artist_genre rows = %d, want 2", genres.Len())
	}

	// Drained missing set: a second run is a no-op with zero API calls.
	calls := catalog.artistCalls
	res = NewSpotifyArtistProcessor(w, e, ft, catalog, 50).Process(context.Background(), 0)
	if res.Status != models.StatusNoUpdates {
		t.Errorf("second run status = %s, want no_updates", res.Status)
	}
	if catalog.artistCalls != calls {
		t.Errorf("second run made %d API calls, want 0", catalog.artistCalls-calls)
	}
}

func TestSpotifyArtistProcessorNoWorkMakesNoCalls(t *testing.T) {
	w, e, ft := newTestEnv(t)
	catalog := &fakeCatalog{}

	res := NewSpotifyArtistProcessor(w, e, ft, catalog, 50).Process(context.Background(), 0)
	if res.Status != models.StatusNoUpdates {
		t.Errorf("status = %s, want no_updates", res.Status)
	}
	if catalog.artistCalls != 0 {
		t.Errorf("API calls = %d, want 0", catalog.artistCalls)
	}
}

func TestSpotifyArtistProcessorPartialFailureIsolation(t *testing.T) {
	w, e, ft := newTestEnv(t)
	now := time.Now().UTC()
	seedTracks(t, w,
		[]any{now, "t1", "x", "ISRC1", "a1", "Autechre", "al1", "x"},
		[]any{now, "t2", "y", "ISRC2", "a2", "Ghost Artist", "al2", "y"},
	)

	catalog := &fakeCatalog{
		artists: map[string]models.ArtistRecord{
			"a1": {ArtistID: "a1", Name: "Autechre"},
		},
	}

	res := NewSpotifyArtistProcessor(w, e, ft, catalog, 50).Process(context.Background(), 0)
	if res.Status != models.StatusPartialSuccess {
		t.Fatalf("status = %s (%s), want partial_success", res.Status, res.Message)
	}
	if len(res.Errors) != 1 {
		t.Errorf("errors = %v, want one entry for a2", res.Errors)
	}

	// The successful row persisted; the failed id is suppressed so the next
	// run has nothing to do.
	if readTable(t, w, query.TableSpotifyArtists).Len() != 1 {
		t.Error("successful artist not persisted alongside failure")
	}
	res = NewSpotifyArtistProcessor(w, e, ft, catalog, 50).Process(context.Background(), 0)
	if res.Status != models.StatusNoUpdates {
		t.Errorf("run after failure suppression = %s, want no_updates", res.Status)
	}
}

func TestSpotifyArtistProcessorTransientAbort(t *testing.T) {
	w, e, ft := newTestEnv(t)
	now := time.Now().UTC()
	seedTracks(t, w, []any{now, "t1", "x", "ISRC1", "a1", "Autechre", "al1", "x"})

	catalog := &fakeCatalog{err: models.ErrTransient}
	res := NewSpotifyArtistProcessor(w, e, ft, catalog, 50).Process(context.Background(), 0)
	if res.Status != models.StatusError {
		t.Fatalf("status = %s, want error", res.Status)
	}
	if !res.Retryable {
		t.Error("transient abort should be retryable")
	}
	if res.ExitCode() != 1 {
		t.Errorf("exit code = %d, want 1", res.ExitCode())
	}
}

func TestSpotifyArtistProcessorAuthAbortNotRetryable(t *testing.T) {
	w, e, ft := newTestEnv(t)
	now := time.Now().UTC()
	seedTracks(t, w, []any{now, "t1", "x", "ISRC1", "a1", "Autechre", "al1", "x"})

	catalog := &fakeCatalog{err: models.ErrAuth}
	res := NewSpotifyArtistProcessor(w, e, ft, catalog, 50).Process(context.Background(), 0)
	if res.Status != models.StatusError {
		t.Fatalf("status = %s, want error", res.Status)
	}
	if res.Retryable {
		t.Error("auth failure must not be retryable")
	}
}

func TestSpotifyArtistProcessorLimitCapsWork(t *testing.T) {
	w, e, ft := newTestEnv(t)
	now := time.Now().UTC()
	seedTracks(t, w,
		[]any{now, "t1", "x", "ISRC1", "a1", "Autechre", "al1", "x"},
		[]any{now, "t2", "y", "ISRC2", "a2", "Boards of Canada", "al2", "y"},
		[]any{now, "t3", "z", "ISRC3", "a3", "Plaid", "al3", "z"},
	)

	catalog := &fakeCatalog{
		artists: map[string]models.ArtistRecord{
			"a1": {ArtistID: "a1", Name: "Autechre"},
			"a2": {ArtistID: "a2", Name: "Boards of Canada"},
			"a3": {ArtistID: "a3", Name: "Plaid"},
		},
	}

	res := NewSpotifyArtistProcessor(w, e, ft, catalog, 50).Process(context.Background(), 2)
	if res.Status != models.StatusSuccess {
		t.Fatalf("status = %s, want success", res.Status)
	}
	if res.Data["processed"] != 2 {
		t.Errorf("processed = %v, want limit-capped 2", res.Data["processed"])
	}
	if readTable(t, w, query.TableSpotifyArtists).Len() != 2 {
		t.Error("store rows != 2 under limit")
	}
}

func TestSpotifyAlbumProcessor(t *testing.T) {
	w, e, ft := newTestEnv(t)
	now := time.Now().UTC()
	seedTracks(t, w,
		[]any{now, "t1", "x", "ISRC1", "a1", "Autechre", "al1", "Amber"},
		[]any{now, "t2", "y", "ISRC2", "a1", "Autechre", "al2", "Gone Album"},
	)

	catalog := &fakeCatalog{
		albums: map[string]models.AlbumRecord{
			"al1": {AlbumID: "al1", Name: "Amber", Label: "Warp", TotalTracks: 11},
		},
	}

	res := NewSpotifyAlbumProcessor(w, e, ft, catalog, 20).Process(context.Background(), 0)
	if res.Status != models.StatusPartialSuccess {
		t.Fatalf("status = %s (%s), want partial_success", res.Status, res.Message)
	}

	albums := readTable(t, w, query.TableSpotifyAlbums)
	if albums.Len() != 1 {
		t.Fatalf("spotify_albums rows = %d, want 1", albums.Len())
	}
	if v := albums.Rows[0][albums.ColumnIndex("label")]; v != "Warp" {
		t.Errorf("label = %v, want Warp", v)
	}

	failures := readTable(t, w, query.TableFailures)
	if failures.Len() != 1 {
		t.Errorf("failure rows = %d, want 1 for al2", failures.Len())
	}
}
