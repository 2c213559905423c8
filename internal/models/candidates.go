// Phonographus - Music Listening History Enrichment and Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/phonographus

package models

// FailureDomain names the enrichment stage a failure was recorded under.
// Failures are scoped per domain so a MusicBrainz miss for an artist name
// never suppresses the Spotify lookup for the same artist.
type FailureDomain string

const (
	FailureSpotifyArtist FailureDomain = "spotify_artist"
	FailureSpotifyAlbum  FailureDomain = "spotify_album"
	FailureMBZArtist     FailureDomain = "mbz_artist"
	FailureMBZArea       FailureDomain = "mbz_area"
	FailureGeoCity       FailureDomain = "geo_city"
)

// ArtistCandidate is a play-history artist with no primary metadata yet.
type ArtistCandidate struct {
	ID   string
	Name string
}

// AlbumCandidate is a play-history album with no primary metadata yet.
type AlbumCandidate struct {
	ID   string
	Name string
}

// MBZArtistCandidate is a recently played artist with no MusicBrainz record,
// paired with one of its track ISRCs for the recording-based MBID lookup.
type MBZArtistCandidate struct {
	Name      string
	ISRC      string
	SpotifyID string
}

// CityCandidate is an area-hierarchy city with no coordinates yet. Params is
// the "<city>,<country_code>" geocoding key shared with CityCoordinates.
type CityCandidate struct {
	City        string
	CountryCode string
	Params      string
}
