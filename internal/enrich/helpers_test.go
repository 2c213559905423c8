// Phonographus - Music Listening History Enrichment and Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/phonographus

package enrich

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/tomtom215/phonographus/internal/models"
	"github.com/tomtom215/phonographus/internal/query"
	"github.com/tomtom215/phonographus/internal/store"
)

func newTestEnv(t *testing.T) (*store.Writer, *query.Engine, *FailureTracker) {
	t.Helper()
	w, err := store.NewWriter(t.TempDir())
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}
	e, err := query.NewEngine(w, 48*time.Hour, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	t.Cleanup(func() {
		_ = e.Close()
		_ = w.Close()
	})
	return w, e, NewFailureTracker(w)
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
	if _, err := w.WriteTable(context.Background(), f, query.TableTracksPlayed, store.MergeByKey("played_at", "track_id")); err != nil {
		t.Fatalf("seeding tracks_played: %v", err)
	}
}

func readTable(t *testing.T, w *store.Writer, name string) *store.Frame {
	t.Helper()
	f, err := w.ReadTable(context.Background(), name)
	if err != nil {
		t.Fatalf("ReadTable(%s) error = %v", name, err)
	}
	return f
}

// fakeCatalog scripts the primary provider. Ids absent from the maps come
// back as missing, mirroring the real batch endpoints.
type fakeCatalog struct {
	artists map[string]models.ArtistRecord
	genres  map[string][]string
	albums  map[string]models.AlbumRecord
	err     error

	artistCalls int
	albumCalls  int
}

func (f *fakeCatalog) FetchArtists(_ context.Context, ids []string) ([]models.ArtistRecord, []models.ArtistGenre, []string, error) {
	f.artistCalls++
	if f.err != nil {
		return nil, nil, nil, f.err
	}
	var records []models.ArtistRecord
	var genres []models.ArtistGenre
	var missing []string
	for _, id := range ids {
		rec, ok := f.artists[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		records = append(records, rec)
		for _, g := range f.genres[id] {
			genres = append(genres, models.ArtistGenre{ArtistID: id, Genre: g})
		}
	}
	return records, genres, missing, nil
}

func (f *fakeCatalog) FetchAlbums(_ context.Context, ids []string) ([]models.AlbumRecord, []string, error) {
	f.albumCalls++
	if f.err != nil {
		return nil, nil, f.err
	}
	var records []models.AlbumRecord
	var missing []string
	for _, id := range ids {
		rec, ok := f.albums[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		records = append(records, rec)
	}
	return records, missing, nil
}

// fakeResolver scripts the secondary provider.
type fakeResolver struct {
	mbidByISRC map[string]string
	artists    map[string]models.MBZArtistRecord
	areas      map[string]models.AreaRecord
	err        error

	isrcCalls   int
	artistCalls int
	areaCalls   int
}

func (f *fakeResolver) ArtistMBIDByISRC(_ context.Context, isrc string) (string, error) {
	f.isrcCalls++
	if f.err != nil {
		return "", f.err
	}
	mbid, ok := f.mbidByISRC[isrc]
	if !ok {
		return "", fmt.Errorf("%w: isrc %s", models.ErrNotFound, isrc)
	}
	return mbid, nil
}

func (f *fakeResolver) ArtistByID(_ context.Context, mbid string) (models.MBZArtistRecord, error) {
	f.artistCalls++
	if f.err != nil {
		return models.MBZArtistRecord{}, f.err
	}
	rec, ok := f.artists[mbid]
	if !ok {
		return models.MBZArtistRecord{}, fmt.Errorf("%w: artist %s", models.ErrNotFound, mbid)
	}
	return rec, nil
}

func (f *fakeResolver) AreaHierarchy(_ context.Context, areaID string) (models.AreaRecord, error) {
	f.areaCalls++
	if f.err != nil {
		return models.AreaRecord{}, f.err
	}
	rec, ok := f.areas[areaID]
	if !ok {
		return models.AreaRecord{}, fmt.Errorf("%w: area %s", models.ErrNotFound, areaID)
	}
	return rec, nil
}

// fakeGeocoder scripts the coordinate provider, keyed by "<city>,<cc>".
type fakeGeocoder struct {
	coords map[string]models.CityCoordinates
	err    error
	calls  int
}

func (f *fakeGeocoder) Geocode(_ context.Context, city, countryCode string) (models.CityCoordinates, error) {
	f.calls++
	if f.err != nil {
		return models.CityCoordinates{}, f.err
	}
	key := city + "," + countryCode
	rec, ok := f.coords[key]
	if !ok {
		return models.CityCoordinates{}, fmt.Errorf("%w: no geocoding result for %q", models.ErrNotFound, key)
	}
	return rec, nil
}
