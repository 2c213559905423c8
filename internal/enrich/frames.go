// Phonographus - Music Listening History Enrichment and Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/phonographus

package enrich

import (
	"github.com/tomtom215/phonographus/internal/models"
	"github.com/tomtom215/phonographus/internal/store"
)

// Frame builders map enrichment records onto store column layouts. Column
// names here are the schema contract shared with the query engine and the
// transform models.

func artistFrame(records []models.ArtistRecord) *store.Frame {
	f := store.NewFrame("artist_id", "artist_name", "popularity", "followers", "image_url")
	for _, r := range records {
		f.MustAppend(r.ArtistID, r.Name, int64(r.Popularity), r.Followers, r.ImageURL)
	}
	return f
}

func genreFrame(genres []models.ArtistGenre) *store.Frame {
	f := store.NewFrame("artist_id", "genre")
	for _, g := range genres {
		f.MustAppend(g.ArtistID, g.Genre)
	}
	return f
}

func albumFrame(records []models.AlbumRecord) *store.Frame {
	f := store.NewFrame(
		"album_id", "album_name", "label", "total_tracks", "popularity",
		"release_date", "release_date_precision", "album_type",
	)
	for _, r := range records {
		f.MustAppend(r.AlbumID, r.Name, r.Label, int64(r.TotalTracks), int64(r.Popularity),
			r.ReleaseDate, r.ReleaseDatePrecision, r.AlbumType)
	}
	return f
}

func mbzArtistFrame(records []models.MBZArtistRecord) *store.Frame {
	f := store.NewFrame(
		"id", "spotify_id", "name", "sort_name", "type", "country",
		"area_id", "area_name", "begin_area_id", "begin_date", "end_date", "top_tag",
	)
	for _, r := range records {
		f.MustAppend(r.MBID, r.SpotifyID, r.Name, r.SortName, r.Type, r.Country,
			r.AreaID, r.AreaName, r.BeginAreaID, r.BeginDate, r.EndDate, r.TopTag)
	}
	return f
}

func areaFrame(records []models.AreaRecord) *store.Frame {
	f := store.NewFrame(
		"area_id", "area_name", "area_type",
		"city_name", "municipality_name", "county_name", "district_name",
		"subdivision_name", "island_name", "country_name", "country_code",
		"continent", "continent_code", "params",
	)
	for _, r := range records {
		f.MustAppend(r.AreaID, r.AreaName, r.AreaType,
			r.CityName, r.MunicipalityName, r.CountyName, r.DistrictName,
			r.SubdivisionName, r.IslandName, r.CountryName, r.CountryCode,
			r.Continent, r.ContinentCode, r.Params)
	}
	return f
}

func cityFrame(records []models.CityCoordinates) *store.Frame {
	f := store.NewFrame("params", "city_name", "country_code", "lat", "long")
	for _, r := range records {
		f.MustAppend(r.Params, r.CityName, r.CountryCode, r.Lat, r.Long)
	}
	return f
}
