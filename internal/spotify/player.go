// Phonographus - Music Listening History Enrichment and Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/phonographus

package spotify

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/tomtom215/phonographus/internal/models"
)

// MaxRecentlyPlayed is the provider's page ceiling for the play feed.
const MaxRecentlyPlayed = 50

type recentlyPlayedResponse struct {
	Items []struct {
		PlayedAt string `json:"played_at"`
		Track    struct {
			ID          string `json:"id"`
			Name        string `json:"name"`
			DurationMS  int64  `json:"duration_ms"`
			Popularity  int    `json:"popularity"`
			ExternalIDs struct {
				ISRC string `json:"isrc"`
			} `json:"external_ids"`
			Artists []struct {
				ID   string `json:"id"`
				Name string `json:"name"`
			} `json:"artists"`
			Album struct {
				ID   string `json:"id"`
				Name string `json:"name"`
			} `json:"album"`
		} `json:"track"`
	} `json:"items"`
	Cursors struct {
		After string `json:"after"`
	} `json:"cursors"`
}

// RecentlyPlayed fetches one page of the play feed. after is the opaque
// cursor from a previous call ("" for the newest page); the returned cursor
// is "" when the feed has no newer plays.
//
// The provider feed only reaches back 50 plays, so ingestion must run at
// least as often as the listener can produce 50 plays; the recency-window
// floor on the ingest interval encodes that.
func (c *Client) RecentlyPlayed(ctx context.Context, after string, limit int) ([]models.PlayEvent, string, error) {
	if limit <= 0 || limit > MaxRecentlyPlayed {
		limit = MaxRecentlyPlayed
	}

	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	if after != "" {
		params.Set("after", after)
	}

	var resp recentlyPlayedResponse
	if err := c.get(ctx, "recently_played", "/me/player/recently-played", params, &resp); err != nil {
		return nil, "", err
	}

	events := make([]models.PlayEvent, 0, len(resp.Items))
	for _, item := range resp.Items {
		playedAt, err := time.Parse(time.RFC3339Nano, item.PlayedAt)
		if err != nil {
			return nil, "", fmt.Errorf("parsing played_at %q: %w", item.PlayedAt, err)
		}
		ev := models.PlayEvent{
			TrackID:    item.Track.ID,
			TrackName:  item.Track.Name,
			TrackISRC:  item.Track.ExternalIDs.ISRC,
			AlbumID:    item.Track.Album.ID,
			AlbumName:  item.Track.Album.Name,
			DurationMS: item.Track.DurationMS,
			Popularity: item.Track.Popularity,
			PlayedAt:   playedAt.UTC(),
		}
		// First-listed artist is the primary credit.
		if len(item.Track.Artists) > 0 {
			ev.ArtistID = item.Track.Artists[0].ID
			ev.ArtistName = item.Track.Artists[0].Name
		}
		events = append(events, ev)
	}
	return events, resp.Cursors.After, nil
}
