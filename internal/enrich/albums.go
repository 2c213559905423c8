// Phonographus - Music Listening History Enrichment and Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/phonographus

package enrich

import (
	"context"
	"fmt"

	"github.com/tomtom215/phonographus/internal/logging"
	"github.com/tomtom215/phonographus/internal/metrics"
	"github.com/tomtom215/phonographus/internal/models"
	"github.com/tomtom215/phonographus/internal/query"
	"github.com/tomtom215/phonographus/internal/store"
)

// SpotifyAlbumProcessor fills spotify_albums from the primary provider's
// batch album endpoint. Same loop shape as the artist processor with the
// provider's smaller batch ceiling.
type SpotifyAlbumProcessor struct {
	store     *store.Writer
	engine    *query.Engine
	failures  *FailureTracker
	catalog   Catalog
	batchSize int
}

// NewSpotifyAlbumProcessor wires an album processor.
func NewSpotifyAlbumProcessor(st *store.Writer, eng *query.Engine, ft *FailureTracker, catalog Catalog, batchSize int) *SpotifyAlbumProcessor {
	return &SpotifyAlbumProcessor{store: st, engine: eng, failures: ft, catalog: catalog, batchSize: batchSize}
}

// Process runs batch cycles until the missing set is drained or limit
// entities have been handled (0 means unbounded).
func (p *SpotifyAlbumProcessor) Process(ctx context.Context, limit int) models.Result {
	o := &outcome{}

	total, err := p.engine.CountMissing(ctx, query.EntitySpotifyAlbum)
	if err != nil {
		o.abortErr = err
		o.retryable = models.IsTransient(err)
		return o.result("album")
	}
	o.plan(total, limit, p.batchSize)

	for {
		size := p.batchSize
		if limit > 0 {
			remaining := limit - o.processed - o.failed
			if remaining <= 0 {
				break
			}
			if remaining < size {
				size = remaining
			}
		}

		batch, err := p.engine.MissingAlbumBatch(ctx, size)
		if err != nil {
			o.abortErr = err
			o.retryable = models.IsTransient(err)
			break
		}
		if len(batch) == 0 {
			break
		}
		o.batches++

		ids := make([]string, len(batch))
		for i, c := range batch {
			ids[i] = c.ID
		}

		records, missing, err := p.catalog.FetchAlbums(ctx, ids)
		if err != nil {
			o.abortErr = err
			o.retryable = models.IsTransient(err)
			metrics.BatchesTotal.WithLabelValues("enrich-spotify-albums", "error").Inc()
			break
		}

		if len(records) > 0 {
			if _, err := p.store.WriteTable(ctx, albumFrame(records), query.TableSpotifyAlbums, store.MergeByKey("album_id")); err != nil {
				o.abortErr = err
				break
			}
			metrics.RowsMergedTotal.WithLabelValues(query.TableSpotifyAlbums).Add(float64(len(records)))
		}
		o.processed += len(records)

		if len(missing) > 0 {
			reasons := make(map[string]string, len(missing))
			for _, id := range missing {
				reasons[id] = "album not found"
				o.recordFailure(fmt.Sprintf("album %s not found", id))
			}
			p.failures.RecordAll(ctx, models.FailureSpotifyAlbum, reasons)
		}

		status := "success"
		if len(missing) > 0 {
			status = "partial"
		}
		metrics.BatchesTotal.WithLabelValues("enrich-spotify-albums", status).Inc()
		logging.Info().
			Int("batch", o.batches).
			Int("enriched", len(records)).
			Int("missing", len(missing)).
			Msg("Album batch merged")
	}

	return o.result("album")
}
