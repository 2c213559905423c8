// Phonographus - Music Listening History Enrichment and Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/phonographus

// Package enrich implements the enrichment processors: batch loops that find
// entities missing metadata, call the external providers, and merge results
// into the store.
//
// Processors share a contract:
//   - results are merged after EVERY batch, never buffered until the end, so
//     an interrupted run keeps all completed work
//   - the next batch is always fetched from the top of the (now smaller)
//     missing set
//   - a per-entity miss records a failure and continues; an auth or
//     transient provider error aborts the run with whatever was completed
package enrich

import (
	"context"

	"github.com/tomtom215/phonographus/internal/models"
	"github.com/tomtom215/phonographus/internal/musicbrainz"
)

// Catalog is the primary provider surface the Spotify processors need.
type Catalog interface {
	FetchArtists(ctx context.Context, ids []string) ([]models.ArtistRecord, []models.ArtistGenre, []string, error)
	FetchAlbums(ctx context.Context, ids []string) ([]models.AlbumRecord, []string, error)
}

// ArtistResolver is the secondary provider surface the MusicBrainz
// processors need.
type ArtistResolver interface {
	ArtistMBIDByISRC(ctx context.Context, isrc string) (string, error)
	ArtistByID(ctx context.Context, mbid string) (models.MBZArtistRecord, error)
	AreaHierarchy(ctx context.Context, areaID string) (models.AreaRecord, error)
}

// Geocoder resolves a city and country code to coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, city, countryCode string) (models.CityCoordinates, error)
}

// compile-time checks against the real clients
var _ ArtistResolver = (*musicbrainz.Client)(nil)
