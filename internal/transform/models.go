// Phonographus - Music Listening History Enrichment and Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/phonographus

package transform

import "fmt"

// ModelSet returns the full model list in dependency order: staging views
// first, then dimensions, then facts. The materializer runs them in slice
// order, so a model may only reference models that precede it (or the
// src_* source views the materializer creates before any model runs).
func ModelSet() []Model {
	return []Model{
		{
			Name:            "stg_plays",
			Materialization: MaterializeView,
			SQL: `SELECT
    played_at,
    played_at_local,
    track_id,
    track_name,
    isrc,
    artist_id,
    artist_name,
    album_id,
    album_name,
    duration_ms,
    popularity AS track_popularity
FROM src_tracks_played`,
		},
		{
			Name:            "stg_artists",
			Materialization: MaterializeView,
			SQL: `SELECT
    a.artist_id,
    a.artist_name,
    a.popularity,
    a.followers,
    a.image_url,
    g.primary_genre
FROM src_spotify_artists a
LEFT JOIN (
    SELECT artist_id, min(genre) AS primary_genre
    FROM src_spotify_artist_genre
    GROUP BY artist_id
) g USING (artist_id)`,
		},
		{
			Name:            "stg_albums",
			Materialization: MaterializeView,
			SQL: `SELECT
    album_id,
    album_name,
    label,
    total_tracks,
    popularity,
    release_date,
    release_date_precision,
    album_type,
    CASE
        WHEN release_date_precision IN ('year', 'month', 'day')
        THEN try_cast(substr(release_date, 1, 4) AS INTEGER)
    END AS release_year
FROM src_spotify_albums`,
		},
		{
			Name:            "stg_geography",
			Materialization: MaterializeView,
			SQL: `SELECT
    h.area_id,
    h.area_name,
    h.area_type,
    h.city_name,
    h.municipality_name,
    h.county_name,
    h.district_name,
    h.subdivision_name,
    h.island_name,
    h.country_name,
    h.country_code,
    h.continent,
    h.continent_code,
    h.params,
    c.lat,
    c.long
FROM src_mbz_area_hierarchy h
LEFT JOIN src_cities_with_lat_long c USING (params)`,
		},
		{
			Name:            "dim_artists",
			Materialization: MaterializeTable,
			SQL: fmt.Sprintf(`SELECT
    %s AS artist_key,
    s.artist_id,
    s.artist_name,
    s.popularity,
    s.followers,
    s.image_url,
    s.primary_genre,
    m.id AS mbz_artist_id,
    m.type AS artist_type,
    m.country,
    m.area_id,
    m.area_name,
    m.begin_date,
    m.end_date,
    m.top_tag
FROM stg_artists s
LEFT JOIN src_mbz_artist_info m ON m.spotify_id = s.artist_id`, SurrogateKey("s.artist_id")),
		},
		{
			Name:            "dim_albums",
			Materialization: MaterializeTable,
			SQL: fmt.Sprintf(`SELECT
    %s AS album_key,
    album_id,
    album_name,
    label,
    total_tracks,
    popularity,
    release_date,
    release_date_precision,
    release_year,
    album_type
FROM stg_albums`, SurrogateKey("album_id")),
		},
		{
			Name:            "dim_geography",
			Materialization: MaterializeTable,
			SQL: fmt.Sprintf(`SELECT
    %s AS geo_key,
    area_id,
    area_name,
    area_type,
    city_name,
    municipality_name,
    county_name,
    district_name,
    subdivision_name,
    island_name,
    country_name,
    country_code,
    continent,
    continent_code,
    params,
    lat,
    long
FROM stg_geography`, SurrogateKey("area_id")),
		},
		{
			Name:            "fct_plays",
			Materialization: MaterializeTable,
			SQL: fmt.Sprintf(`SELECT
    %s AS play_key,
    p.played_at,
    p.played_at_local,
    cast(p.played_at_local AS DATE) AS play_date,
    extract(hour FROM p.played_at_local) AS play_hour,
    dayname(p.played_at_local) AS play_weekday,
    p.track_id,
    p.track_name,
    p.isrc,
    p.duration_ms,
    p.track_popularity,
    %s AS artist_key,
    p.artist_name,
    %s AS album_key,
    p.album_name,
    %s AS geo_key
FROM stg_plays p
LEFT JOIN src_mbz_artist_info m ON m.spotify_id = p.artist_id`,
				SurrogateKey("p.played_at", "p.track_id"),
				SurrogateKey("p.artist_id"),
				SurrogateKey("p.album_id"),
				SurrogateKey("m.area_id")),
		},
	}
}

// sourceTables are the raw store tables exposed to models as src_* views.
// Absent tables still get a view over an empty relation so the model set
// materializes before any enrichment has run.
var sourceTables = []sourceTable{
	{name: "tracks_played", emptySQL: `SELECT
    cast(NULL AS TIMESTAMP) AS played_at, cast(NULL AS TIMESTAMP) AS played_at_local,
    cast(NULL AS VARCHAR) AS track_id, cast(NULL AS VARCHAR) AS track_name,
    cast(NULL AS VARCHAR) AS isrc, cast(NULL AS VARCHAR) AS artist_id,
    cast(NULL AS VARCHAR) AS artist_name, cast(NULL AS VARCHAR) AS album_id,
    cast(NULL AS VARCHAR) AS album_name, cast(NULL AS BIGINT) AS duration_ms,
    cast(NULL AS BIGINT) AS popularity WHERE false`},
	{name: "spotify_artists", emptySQL: `SELECT
    cast(NULL AS VARCHAR) AS artist_id, cast(NULL AS VARCHAR) AS artist_name,
    cast(NULL AS BIGINT) AS popularity, cast(NULL AS BIGINT) AS followers,
    cast(NULL AS VARCHAR) AS image_url WHERE false`},
	{name: "spotify_artist_genre", emptySQL: `SELECT
    cast(NULL AS VARCHAR) AS artist_id, cast(NULL AS VARCHAR) AS genre WHERE false`},
	{name: "spotify_albums", emptySQL: `SELECT
    cast(NULL AS VARCHAR) AS album_id, cast(NULL AS VARCHAR) AS album_name,
    cast(NULL AS VARCHAR) AS label, cast(NULL AS BIGINT) AS total_tracks,
    cast(NULL AS BIGINT) AS popularity, cast(NULL AS VARCHAR) AS release_date,
    cast(NULL AS VARCHAR) AS release_date_precision, cast(NULL AS VARCHAR) AS album_type WHERE false`},
	{name: "mbz_artist_info", emptySQL: `SELECT
    cast(NULL AS VARCHAR) AS id, cast(NULL AS VARCHAR) AS spotify_id,
    cast(NULL AS VARCHAR) AS name, cast(NULL AS VARCHAR) AS sort_name,
    cast(NULL AS VARCHAR) AS type, cast(NULL AS VARCHAR) AS country,
    cast(NULL AS VARCHAR) AS area_id, cast(NULL AS VARCHAR) AS area_name,
    cast(NULL AS VARCHAR) AS begin_area_id, cast(NULL AS VARCHAR) AS begin_date,
    cast(NULL AS VARCHAR) AS end_date, cast(NULL AS VARCHAR) AS top_tag WHERE false`},
	{name: "mbz_area_hierarchy", emptySQL: `SELECT
    cast(NULL AS VARCHAR) AS area_id, cast(NULL AS VARCHAR) AS area_name,
    cast(NULL AS VARCHAR) AS area_type, cast(NULL AS VARCHAR) AS city_name,
    cast(NULL AS VARCHAR) AS municipality_name, cast(NULL AS VARCHAR) AS county_name,
    cast(NULL AS VARCHAR) AS district_name, cast(NULL AS VARCHAR) AS subdivision_name,
    cast(NULL AS VARCHAR) AS island_name, cast(NULL AS VARCHAR) AS country_name,
    cast(NULL AS VARCHAR) AS country_code, cast(NULL AS VARCHAR) AS continent,
    cast(NULL AS VARCHAR) AS continent_code, cast(NULL AS VARCHAR) AS params WHERE false`},
	{name: "cities_with_lat_long", emptySQL: `SELECT
    cast(NULL AS VARCHAR) AS params, cast(NULL AS VARCHAR) AS city_name,
    cast(NULL AS VARCHAR) AS country_code, cast(NULL AS DOUBLE) AS lat,
    cast(NULL AS DOUBLE) AS "long" WHERE false`},
}

type sourceTable struct {
	name     string
	emptySQL string
}
