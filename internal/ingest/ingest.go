// Phonographus - Music Listening History Enrichment and Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/phonographus

// Package ingest appends the provider's recently-played feed to the
// tracks_played table. Events are immutable facts: the merge key
// (played_at, track_id) makes re-ingesting an overlapping page a no-op, so
// the cursor only needs to be approximately right, never exact.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/phonographus/internal/config"
	"github.com/tomtom215/phonographus/internal/logging"
	"github.com/tomtom215/phonographus/internal/metrics"
	"github.com/tomtom215/phonographus/internal/models"
	"github.com/tomtom215/phonographus/internal/query"
	"github.com/tomtom215/phonographus/internal/store"
)

// Feed is the provider surface ingestion needs.
type Feed interface {
	RecentlyPlayed(ctx context.Context, after string, limit int) ([]models.PlayEvent, string, error)
}

// maxPages bounds one ingestion run. The feed itself only reaches back 50
// plays, so more than a few pages means the cursor is being ignored by the
// provider; bail rather than loop.
const maxPages = 10

// Ingester pulls new play events into the store.
type Ingester struct {
	store *store.Writer
	feed  Feed
	cfg   config.IngestConfig
	loc   *time.Location
}

// NewIngester wires an ingester. The configured timezone must be valid;
// config validation guarantees that before anything is constructed.
func NewIngester(st *store.Writer, feed Feed, cfg config.IngestConfig) (*Ingester, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", cfg.Timezone, err)
	}
	return &Ingester{store: st, feed: feed, cfg: cfg, loc: loc}, nil
}

// Run performs one ingestion cycle: page through the feed from the saved
// cursor, merge each page, advance the cursor after each merge.
func (ing *Ingester) Run(ctx context.Context) models.Result {
	state, err := loadCursor(ing.cfg.CursorPath)
	if err != nil {
		return models.ErrorResult(fmt.Sprintf("loading ingest cursor: %v", err))
	}

	total := 0
	pages := 0
	for pages < maxPages {
		events, next, err := ing.feed.RecentlyPlayed(ctx, state.After, ing.cfg.PageLimit)
		if err != nil {
			if total > 0 {
				return models.PartialSuccessResult(
					fmt.Sprintf("ingested %d plays before feed error", total),
					map[string]any{"ingested": total, "pages": pages},
					[]string{err.Error()})
			}
			if models.IsTransient(err) {
				return models.TransientErrorResult(fmt.Sprintf("fetching play feed: %v", err))
			}
			return models.ErrorResult(fmt.Sprintf("fetching play feed: %v", err))
		}
		if len(events) == 0 {
			break
		}
		pages++

		if _, err := ing.store.WriteTable(ctx, ing.eventFrame(events), query.TableTracksPlayed,
			store.MergeByKey("played_at", "track_id")); err != nil {
			return models.ErrorResult(fmt.Sprintf("merging play events: %v", err))
		}
		metrics.RowsMergedTotal.WithLabelValues(query.TableTracksPlayed).Add(float64(len(events)))
		total += len(events)

		// Merge landed; now it is safe to never see this page again.
		if next != "" {
			state.After = next
			if err := saveCursor(ing.cfg.CursorPath, state); err != nil {
				logging.Warn().Err(err).Msg("Failed to persist ingest cursor")
			}
		}
		if next == "" || len(events) < ing.cfg.PageLimit {
			break
		}
	}

	logging.Info().Int("ingested", total).Int("pages", pages).Msg("Ingestion cycle complete")
	if total == 0 {
		return models.NoUpdatesResult("no new plays in feed")
	}
	return models.SuccessResult(
		fmt.Sprintf("ingested %d plays", total),
		map[string]any{"ingested": total, "pages": pages})
}

// eventFrame maps play events onto the tracks_played layout, deriving the
// home-timezone timestamp used by downstream listening-habit models.
func (ing *Ingester) eventFrame(events []models.PlayEvent) *store.Frame {
	f := store.NewFrame(
		"played_at", "played_at_local", "track_id", "track_name", "isrc",
		"artist_id", "artist_name", "album_id", "album_name",
		"duration_ms", "popularity",
	)
	for _, ev := range events {
		f.MustAppend(
			ev.PlayedAt.UTC(), rebaseWallClock(ev.PlayedAt.In(ing.loc)),
			ev.TrackID, ev.TrackName, ev.TrackISRC,
			ev.ArtistID, ev.ArtistName, ev.AlbumID, ev.AlbumName,
			ev.DurationMS, int64(ev.Popularity),
		)
	}
	return f
}

// rebaseWallClock re-labels a localized timestamp as UTC so its wall-clock
// components survive the store's zoneless TIMESTAMP columns. played_at_local
// is a display/bucketing value, not an instant; the true instant lives in
// played_at.
func rebaseWallClock(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}
