// Phonographus - Music Listening History Enrichment and Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/phonographus

// Package query detects which entities referenced by the play history still
// lack enrichment data. Every method re-reads the parquet files on each call,
// so a batch fetched after a write reflects that write; the missing set only
// shrinks as processors merge results, which is what lets them always fetch
// the next batch "from the top" without an advancing offset.
package query

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/tomtom215/phonographus/internal/models"
	"github.com/tomtom215/phonographus/internal/store"
)

// EntityType identifies one class of enrichable entity.
type EntityType string

const (
	EntitySpotifyArtist EntityType = "spotify_artist"
	EntitySpotifyAlbum  EntityType = "spotify_album"
	EntityMBZArtist     EntityType = "mbz_artist"
	EntityMBZArea       EntityType = "mbz_area"
	EntityGeoArea       EntityType = "geo_area"
	EntityGeoCity       EntityType = "geo_city"
)

// Table names in the store. The query layer and the enrichment processors
// must agree on these.
const (
	TableTracksPlayed     = "tracks_played"
	TableSpotifyArtists   = "spotify_artists"
	TableSpotifyAlbums    = "spotify_albums"
	TableSpotifyGenres    = "spotify_artist_genre"
	TableMBZArtistInfo    = "mbz_artist_info"
	TableMBZAreaHierarchy = "mbz_area_hierarchy"
	TableCities           = "cities_with_lat_long"
	TableFailures         = "enrichment_failures"
)

// Engine runs missing-entity queries against the parquet store. It opens its
// own in-process DuckDB connection; the store.Writer is used only for file
// paths. Safe for concurrent use.
type Engine struct {
	db            *sql.DB
	store         *store.Writer
	recencyWindow time.Duration
	failureTTL    time.Duration
	now           func() time.Time
}

// NewEngine opens a query engine over the given store. recencyWindow bounds
// which plays feed the MusicBrainz candidate set; failureTTL is how long a
// recorded failure keeps an entity out of batches.
func NewEngine(st *store.Writer, recencyWindow, failureTTL time.Duration) (*Engine, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("%w: opening duckdb: %v", models.ErrStoreUnreachable, err)
	}
	return &Engine{
		db:            db,
		store:         st,
		recencyWindow: recencyWindow,
		failureTTL:    failureTTL,
		now:           time.Now,
	}, nil
}

// Close releases the engine's DuckDB connection.
func (e *Engine) Close() error {
	return e.db.Close()
}

// rel returns the FROM-clause relation for a store table.
func (e *Engine) rel(name string) string {
	return fmt.Sprintf("read_parquet('%s', union_by_name=true)", strings.ReplaceAll(e.store.TableGlob(name), "'", "''"))
}

// failureFilter returns a NOT IN predicate excluding entities with an
// unexpired failure in the given domain, or an empty clause when no failures
// have been recorded yet. keyExpr is the SQL expression for the entity key on
// the candidate side.
func (e *Engine) failureFilter(domain models.FailureDomain, keyExpr string) (string, []any) {
	if !e.store.TableExists(TableFailures) {
		return "", nil
	}
	clause := fmt.Sprintf(
		" AND %s NOT IN (SELECT entity_key FROM %s WHERE domain = ? AND failed_at >= ?)",
		keyExpr, e.rel(TableFailures),
	)
	return clause, []any{string(domain), e.now().Add(-e.failureTTL)}
}

// CountMissing returns the size of the missing set for an entity type.
func (e *Engine) CountMissing(ctx context.Context, entity EntityType) (int, error) {
	q, args, err := e.missingQuery(entity)
	if err != nil {
		return 0, err
	}
	if q == "" {
		return 0, nil
	}

	var n int
	countQ := fmt.Sprintf("SELECT count(*) FROM (%s)", q)
	if err := e.db.QueryRowContext(ctx, countQ, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: counting missing %s: %v", models.ErrStoreUnreachable, entity, err)
	}
	return n, nil
}

// missingQuery builds the unlimited candidate query for an entity type. An
// empty query means a prerequisite table is absent and the missing set is
// empty by definition.
func (e *Engine) missingQuery(entity EntityType) (string, []any, error) {
	switch entity {
	case EntitySpotifyArtist:
		return e.missingArtistsQuery()
	case EntitySpotifyAlbum:
		return e.missingAlbumsQuery()
	case EntityMBZArtist:
		return e.missingMBZArtistsQuery()
	case EntityMBZArea:
		return e.missingAreasQuery()
	case EntityGeoArea:
		return e.areasNeedingGeoQuery()
	case EntityGeoCity:
		return e.missingCitiesQuery()
	default:
		return "", nil, fmt.Errorf("unknown entity type %q", entity)
	}
}

func (e *Engine) missingArtistsQuery() (string, []any, error) {
	if !e.store.TableExists(TableTracksPlayed) {
		return "", nil, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT DISTINCT t.artist_id, t.artist_name FROM %s t", e.rel(TableTracksPlayed))
	if e.store.TableExists(TableSpotifyArtists) {
		fmt.Fprintf(&b, " LEFT JOIN %s sa ON t.artist_id = sa.artist_id", e.rel(TableSpotifyArtists))
		b.WriteString(" WHERE t.artist_id IS NOT NULL AND t.artist_id <> '' AND sa.artist_id IS NULL")
	} else {
		b.WriteString(" WHERE t.artist_id IS NOT NULL AND t.artist_id <> ''")
	}

	clause, args := e.failureFilter(models.FailureSpotifyArtist, "t.artist_id")
	b.WriteString(clause)
	b.WriteString(" ORDER BY t.artist_name, t.artist_id")
	return b.String(), args, nil
}

func (e *Engine) missingAlbumsQuery() (string, []any, error) {
	if !e.store.TableExists(TableTracksPlayed) {
		return "", nil, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT DISTINCT t.album_id, t.album_name FROM %s t", e.rel(TableTracksPlayed))
	if e.store.TableExists(TableSpotifyAlbums) {
		fmt.Fprintf(&b, " LEFT JOIN %s sa ON t.album_id = sa.album_id", e.rel(TableSpotifyAlbums))
		b.WriteString(" WHERE t.album_id IS NOT NULL AND t.album_id <> '' AND sa.album_id IS NULL")
	} else {
		b.WriteString(" WHERE t.album_id IS NOT NULL AND t.album_id <> ''")
	}

	clause, args := e.failureFilter(models.FailureSpotifyAlbum, "t.album_id")
	b.WriteString(clause)
	b.WriteString(" ORDER BY t.album_name, t.album_id")
	return b.String(), args, nil
}

// missingMBZArtistsQuery bounds candidates to the recency window: the
// MusicBrainz stage enriches what was played lately rather than the whole
// backlog, keeping its slow request rate proportional to listening activity.
// Matching against mbz_artist_info is by the Spotify artist id stored on
// each record. The merged row carries MusicBrainz's canonical name, which
// may be spelled differently from the play history ("ASAP Rocky" vs
// "A$AP Rocky"), so a name join would never drain the missing set.
func (e *Engine) missingMBZArtistsQuery() (string, []any, error) {
	if !e.store.TableExists(TableTracksPlayed) {
		return "", nil, nil
	}

	cutoff := e.now().Add(-e.recencyWindow)
	args := []any{cutoff}

	var b strings.Builder
	fmt.Fprintf(&b,
		"SELECT min(t.artist_name) AS artist_name, min(t.isrc) AS isrc, t.artist_id AS spotify_id FROM %s t", e.rel(TableTracksPlayed))
	b.WriteString(" WHERE t.played_at >= ? AND t.artist_id IS NOT NULL AND t.artist_id <> ''")
	b.WriteString(" AND t.isrc IS NOT NULL AND t.isrc <> ''")
	if e.store.TableExists(TableMBZArtistInfo) {
		fmt.Fprintf(&b,
			" AND t.artist_id NOT IN (SELECT spotify_id FROM %s WHERE spotify_id IS NOT NULL)",
			e.rel(TableMBZArtistInfo))
	}

	clause, fargs := e.failureFilter(models.FailureMBZArtist, "t.artist_id")
	b.WriteString(clause)
	args = append(args, fargs...)
	b.WriteString(" GROUP BY t.artist_id ORDER BY artist_name, t.artist_id")
	return b.String(), args, nil
}

func (e *Engine) missingAreasQuery() (string, []any, error) {
	if !e.store.TableExists(TableMBZArtistInfo) {
		return "", nil, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT DISTINCT a.area_id FROM %s a", e.rel(TableMBZArtistInfo))
	if e.store.TableExists(TableMBZAreaHierarchy) {
		fmt.Fprintf(&b, " LEFT JOIN %s h ON a.area_id = h.area_id", e.rel(TableMBZAreaHierarchy))
		b.WriteString(" WHERE a.area_id IS NOT NULL AND a.area_id <> '' AND h.area_id IS NULL")
	} else {
		b.WriteString(" WHERE a.area_id IS NOT NULL AND a.area_id <> ''")
	}

	clause, args := e.failureFilter(models.FailureMBZArea, "a.area_id")
	b.WriteString(clause)
	b.WriteString(" ORDER BY a.area_id")
	return b.String(), args, nil
}

// areasNeedingGeoQuery finds hierarchy rows the derivation pass has not
// touched yet. The pass always sets continent (or its Unknown marker), so an
// empty continent is the pending signal; params may legitimately stay empty
// for rows with no geocodable place name.
func (e *Engine) areasNeedingGeoQuery() (string, []any, error) {
	if !e.store.TableExists(TableMBZAreaHierarchy) {
		return "", nil, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT h.area_id FROM %s h", e.rel(TableMBZAreaHierarchy))
	b.WriteString(" WHERE (h.continent IS NULL OR h.continent = '')")
	b.WriteString(" ORDER BY h.area_id")
	return b.String(), nil, nil
}

func (e *Engine) missingCitiesQuery() (string, []any, error) {
	if !e.store.TableExists(TableMBZAreaHierarchy) {
		return "", nil, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b,
		"SELECT DISTINCT h.city_name, h.country_code, h.params FROM %s h", e.rel(TableMBZAreaHierarchy))
	if e.store.TableExists(TableCities) {
		fmt.Fprintf(&b, " LEFT JOIN %s c ON h.params = c.params", e.rel(TableCities))
		b.WriteString(" WHERE h.params IS NOT NULL AND h.params <> '' AND c.params IS NULL")
	} else {
		b.WriteString(" WHERE h.params IS NOT NULL AND h.params <> ''")
	}
	b.WriteString(" AND h.city_name IS NOT NULL AND h.city_name <> ''")

	clause, args := e.failureFilter(models.FailureGeoCity, "h.params")
	b.WriteString(clause)
	b.WriteString(" ORDER BY h.params")
	return b.String(), args, nil
}

// MissingArtistBatch returns up to limit artists needing Spotify enrichment,
// ordered by name then id so batches are deterministic.
func (e *Engine) MissingArtistBatch(ctx context.Context, limit int) ([]models.ArtistCandidate, error) {
	q, args, err := e.missingArtistsQuery()
	if err != nil || q == "" {
		return nil, err
	}
	rows, err := e.db.QueryContext(ctx, q+" LIMIT ?", append(args, limit)...)
	if err != nil {
		return nil, fmt.Errorf("%w: querying missing artists: %v", models.ErrStoreUnreachable, err)
	}
	defer rows.Close()

	var out []models.ArtistCandidate
	for rows.Next() {
		var id, name sql.NullString
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("%w: scanning artist candidate: %v", models.ErrStoreUnreachable, err)
		}
		out = append(out, models.ArtistCandidate{ID: id.String, Name: name.String})
	}
	return out, rows.Err()
}

// MissingAlbumBatch returns up to limit albums needing Spotify enrichment.
func (e *Engine) MissingAlbumBatch(ctx context.Context, limit int) ([]models.AlbumCandidate, error) {
	q, args, err := e.missingAlbumsQuery()
	if err != nil || q == "" {
		return nil, err
	}
	rows, err := e.db.QueryContext(ctx, q+" LIMIT ?", append(args, limit)...)
	if err != nil {
		return nil, fmt.Errorf("%w: querying missing albums: %v", models.ErrStoreUnreachable, err)
	}
	defer rows.Close()

	var out []models.AlbumCandidate
	for rows.Next() {
		var id, name sql.NullString
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("%w: scanning album candidate: %v", models.ErrStoreUnreachable, err)
		}
		out = append(out, models.AlbumCandidate{ID: id.String, Name: name.String})
	}
	return out, rows.Err()
}

// MissingMBZArtistBatch returns up to limit recently played artists needing
// MusicBrainz enrichment, each with one ISRC for the recording lookup.
func (e *Engine) MissingMBZArtistBatch(ctx context.Context, limit int) ([]models.MBZArtistCandidate, error) {
	q, args, err := e.missingMBZArtistsQuery()
	if err != nil || q == "" {
		return nil, err
	}
	rows, err := e.db.QueryContext(ctx, q+" LIMIT ?", append(args, limit)...)
	if err != nil {
		return nil, fmt.Errorf("%w: querying missing mbz artists: %v", models.ErrStoreUnreachable, err)
	}
	defer rows.Close()

	var out []models.MBZArtistCandidate
	for rows.Next() {
		var name, isrc, spotifyID sql.NullString
		if err := rows.Scan(&name, &isrc, &spotifyID); err != nil {
			return nil, fmt.Errorf("%w: scanning mbz artist candidate: %v", models.ErrStoreUnreachable, err)
		}
		out = append(out, models.MBZArtistCandidate{Name: name.String, ISRC: isrc.String, SpotifyID: spotifyID.String})
	}
	return out, rows.Err()
}

// MissingAreaBatch returns up to limit MusicBrainz area ids referenced by
// artists but absent from the hierarchy table.
func (e *Engine) MissingAreaBatch(ctx context.Context, limit int) ([]string, error) {
	q, args, err := e.missingAreasQuery()
	if err != nil || q == "" {
		return nil, err
	}
	return e.queryStrings(ctx, q+" LIMIT ?", append(args, limit), "missing areas")
}

// AreasNeedingGeoBatch returns up to limit hierarchy area ids whose derived
// geography has not been computed.
func (e *Engine) AreasNeedingGeoBatch(ctx context.Context, limit int) ([]string, error) {
	q, args, err := e.areasNeedingGeoQuery()
	if err != nil || q == "" {
		return nil, err
	}
	return e.queryStrings(ctx, q+" LIMIT ?", append(args, limit), "areas needing geo")
}

// MissingCityBatch returns up to limit cities needing coordinates.
func (e *Engine) MissingCityBatch(ctx context.Context, limit int) ([]models.CityCandidate, error) {
	q, args, err := e.missingCitiesQuery()
	if err != nil || q == "" {
		return nil, err
	}
	rows, err := e.db.QueryContext(ctx, q+" LIMIT ?", append(args, limit)...)
	if err != nil {
		return nil, fmt.Errorf("%w: querying missing cities: %v", models.ErrStoreUnreachable, err)
	}
	defer rows.Close()

	var out []models.CityCandidate
	for rows.Next() {
		var city, cc, params sql.NullString
		if err := rows.Scan(&city, &cc, &params); err != nil {
			return nil, fmt.Errorf("%w: scanning city candidate: %v", models.ErrStoreUnreachable, err)
		}
		out = append(out, models.CityCandidate{City: city.String, CountryCode: cc.String, Params: params.String})
	}
	return out, rows.Err()
}

func (e *Engine) queryStrings(ctx context.Context, q string, args []any, what string) ([]string, error) {
	rows, err := e.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: querying %s: %v", models.ErrStoreUnreachable, what, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s sql.NullString
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("%w: scanning %s: %v", models.ErrStoreUnreachable, what, err)
		}
		out = append(out, s.String)
	}
	return out, rows.Err()
}
