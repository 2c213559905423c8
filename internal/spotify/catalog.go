// Phonographus - Music Listening History Enrichment and Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/phonographus

package spotify

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/tomtom215/phonographus/internal/models"
)

// Batch endpoint ceilings imposed by the provider.
const (
	MaxArtistBatch = 50
	MaxAlbumBatch  = 20
)

type artistResponse struct {
	Artists []*struct {
		ID         string `json:"id"`
		Name       string `json:"name"`
		Popularity int    `json:"popularity"`
		Followers  struct {
			Total int64 `json:"total"`
		} `json:"followers"`
		Genres []string `json:"genres"`
		Images []struct {
			URL string `json:"url"`
		} `json:"images"`
	} `json:"artists"`
}

type albumResponse struct {
	Albums []*struct {
		ID                   string `json:"id"`
		Name                 string `json:"name"`
		Label                string `json:"label"`
		TotalTracks          int    `json:"total_tracks"`
		Popularity           int    `json:"popularity"`
		ReleaseDate          string `json:"release_date"`
		ReleaseDatePrecision string `json:"release_date_precision"`
		AlbumType            string `json:"album_type"`
	} `json:"albums"`
}

// FetchArtists resolves up to MaxArtistBatch artist ids in one call. Ids the
// provider does not know come back as nulls and are returned in missing; the
// call itself still succeeds so one dead id never stalls a batch.
func (c *Client) FetchArtists(ctx context.Context, ids []string) ([]models.ArtistRecord, []models.ArtistGenre, []string, error) {
	if len(ids) == 0 {
		return nil, nil, nil, nil
	}
	if len(ids) > MaxArtistBatch {
		return nil, nil, nil, fmt.Errorf("artist batch of %d exceeds provider limit %d", len(ids), MaxArtistBatch)
	}

	params := url.Values{}
	params.Set("ids", strings.Join(ids, ","))

	var resp artistResponse
	if err := c.get(ctx, "get_artists", "/artists", params, &resp); err != nil {
		return nil, nil, nil, err
	}

	records := make([]models.ArtistRecord, 0, len(resp.Artists))
	var genres []models.ArtistGenre
	var missing []string
	for i, a := range resp.Artists {
		if a == nil || a.ID == "" {
			if i < len(ids) {
				missing = append(missing, ids[i])
			}
			continue
		}
		rec := models.ArtistRecord{
			ArtistID:   a.ID,
			Name:       a.Name,
			Popularity: a.Popularity,
			Followers:  a.Followers.Total,
		}
		if len(a.Images) > 0 {
			rec.ImageURL = a.Images[0].URL
		}
		records = append(records, rec)
		for _, g := range a.Genres {
			genres = append(genres, models.ArtistGenre{ArtistID: a.ID, Genre: g})
		}
	}
	return records, genres, missing, nil
}

// FetchAlbums resolves up to MaxAlbumBatch album ids in one call. Unknown ids
// are returned in missing.
func (c *Client) FetchAlbums(ctx context.Context, ids []string) ([]models.AlbumRecord, []string, error) {
	if len(ids) == 0 {
		return nil, nil, nil
	}
	if len(ids) > MaxAlbumBatch {
		return nil, nil, fmt.Errorf("album batch of %d exceeds provider limit %d", len(ids), MaxAlbumBatch)
	}

	params := url.Values{}
	params.Set("ids", strings.Join(ids, ","))

	var resp albumResponse
	if err := c.get(ctx, "get_albums", "/albums", params, &resp); err != nil {
		return nil, nil, err
	}

	records := make([]models.AlbumRecord, 0, len(resp.Albums))
	var missing []string
	for i, a := range resp.Albums {
		if a == nil || a.ID == "" {
			if i < len(ids) {
				missing = append(missing, ids[i])
			}
			continue
		}
		records = append(records, models.AlbumRecord{
			AlbumID:              a.ID,
			Name:                 a.Name,
			Label:                a.Label,
			TotalTracks:          a.TotalTracks,
			Popularity:           a.Popularity,
			ReleaseDate:          a.ReleaseDate,
			ReleaseDatePrecision: a.ReleaseDatePrecision,
			AlbumType:            a.AlbumType,
		})
	}
	return records, missing, nil
}
