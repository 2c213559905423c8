// Phonographus - Music Listening History Enrichment and Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/phonographus

// Package models defines the data structures shared across the Phonographus
// pipeline: play events, enrichment records, failure records, and the task
// result contract consumed by the external scheduler.
package models

import (
	"time"
)

// PlayEvent represents a single listen from the streaming service history.
//
// Events are append-only facts: created by ingestion, never mutated, never
// deleted. Everything downstream (enrichment, dimensional modeling) is built
// from this table.
//
// Key fields:
//   - PlayedAt: UTC timestamp from the provider, part of the dedup key
//   - PlayedAtLocal: PlayedAt converted to the configured home timezone
//   - Cursor: provider pagination cursor captured at ingest for resumability
type PlayEvent struct {
	TrackID     string    `json:"track_id"`
	TrackName   string    `json:"track_name"`
	TrackISRC   string    `json:"track_isrc,omitempty"`
	ArtistID    string    `json:"artist_id"`
	ArtistName  string    `json:"artist"`
	AlbumID     string    `json:"album_id"`
	AlbumName   string    `json:"album_name"`
	DurationMS  int64     `json:"duration_ms"`
	Popularity  int       `json:"popularity"`
	PlayedAt    time.Time `json:"played_at"`
	PlayedAtLocal time.Time `json:"played_at_local"`
	Cursor      string    `json:"cursor,omitempty"`
}

// ArtistRecord holds primary (Spotify) metadata for one artist.
//
// One row per artist id; enrichment merges by ArtistID with last-write-wins,
// so a re-fetch always replaces stale cached data.
type ArtistRecord struct {
	ArtistID   string `json:"artist_id"`
	Name       string `json:"artist_name"`
	Popularity int    `json:"popularity"`
	Followers  int64  `json:"followers"`
	ImageURL   string `json:"image_url,omitempty"`
}

// ArtistGenre is one (artist, genre) pair extracted from primary metadata.
// Merged by the composite key so repeated enrichment never duplicates pairs.
type ArtistGenre struct {
	ArtistID string `json:"artist_id"`
	Genre    string `json:"genre"`
}

// AlbumRecord holds primary (Spotify) metadata for one album.
// Same merge-by-key lifecycle as ArtistRecord.
type AlbumRecord struct {
	AlbumID              string `json:"album_id"`
	Name                 string `json:"album_name"`
	Label                string `json:"label,omitempty"`
	TotalTracks          int    `json:"total_tracks"`
	Popularity           int    `json:"popularity"`
	ReleaseDate          string `json:"release_date,omitempty"`
	ReleaseDatePrecision string `json:"release_date_precision,omitempty"`
	AlbumType            string `json:"album_type,omitempty"`
}

// MBZArtistRecord holds secondary (MusicBrainz) metadata for one artist,
// keyed by the MusicBrainz id and linked back to the streaming service
// through SpotifyID.
type MBZArtistRecord struct {
	MBID        string `json:"id"`
	SpotifyID   string `json:"spotify_id"`
	Name        string `json:"name"`
	SortName    string `json:"sort_name,omitempty"`
	Type        string `json:"type,omitempty"`
	Country     string `json:"country,omitempty"`
	AreaID      string `json:"area_id,omitempty"`
	AreaName    string `json:"area_name,omitempty"`
	BeginAreaID string `json:"begin_area_id,omitempty"`
	BeginDate   string `json:"begin_date,omitempty"`
	EndDate     string `json:"end_date,omitempty"`
	TopTag      string `json:"top_tag,omitempty"`
}

// AreaRecord is the flattened MusicBrainz area hierarchy for one area id:
// the area itself plus every parent level that exists, in named columns.
//
// Built incrementally in two passes. The hierarchy pass fills the name chain;
// the fast geographic stage then derives Continent, CountryCode and Params.
// Params is the deterministic geocoding parameter string
// ("<city>,<country_code>") used as the natural join key to
// CityCoordinates - it must be reproducible from the hierarchy fields alone.
type AreaRecord struct {
	AreaID           string `json:"area_id"`
	AreaName         string `json:"area_name"`
	AreaType         string `json:"area_type"`
	CityName         string `json:"city_name,omitempty"`
	MunicipalityName string `json:"municipality_name,omitempty"`
	CountyName       string `json:"county_name,omitempty"`
	DistrictName     string `json:"district_name,omitempty"`
	SubdivisionName  string `json:"subdivision_name,omitempty"`
	IslandName       string `json:"island_name,omitempty"`
	CountryName      string `json:"country_name,omitempty"`
	CountryCode      string `json:"country_code,omitempty"`
	Continent        string `json:"continent,omitempty"`
	ContinentCode    string `json:"continent_code,omitempty"`
	Params           string `json:"params,omitempty"`
}

// CityCoordinates is one geocoded location, keyed by the same Params string
// as AreaRecord. Filled by the slow geographic stage.
type CityCoordinates struct {
	Params      string  `json:"params"`
	CityName    string  `json:"city_name"`
	CountryCode string  `json:"country_code"`
	Lat         float64 `json:"lat"`
	Long        float64 `json:"long"`
}

// FailureRecord is one failed external lookup. The table is append-only and
// never blocks enrichment writes; the query engine consults it so failed
// entities are not re-declared "missing" on every cycle until the failure
// ages past the configured TTL.
type FailureRecord struct {
	Domain    string    `json:"domain"`
	EntityKey string    `json:"entity_key"`
	Reason    string    `json:"reason"`
	FailedAt  time.Time `json:"failed_at"`
}
