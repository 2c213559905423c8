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

// SpotifyArtistProcessor fills spotify_artists and spotify_artist_genre from
// the primary provider's batch artist endpoint.
type SpotifyArtistProcessor struct {
	store     *store.Writer
	engine    *query.Engine
	failures  *FailureTracker
	catalog   Catalog
	batchSize int
}

// NewSpotifyArtistProcessor wires an artist processor.
func NewSpotifyArtistProcessor(st *store.Writer, eng *query.Engine, ft *FailureTracker, catalog Catalog, batchSize int) *SpotifyArtistProcessor {
	return &SpotifyArtistProcessor{store: st, engine: eng, failures: ft, catalog: catalog, batchSize: batchSize}
}

// Process runs batch cycles until the missing set is drained or limit
// entities have been handled (0 means unbounded). Each batch is merged before
// the next is fetched.
func (p *SpotifyArtistProcessor) Process(ctx context.Context, limit int) models.Result {
	o := &outcome{}

	total, err := p.engine.CountMissing(ctx, query.EntitySpotifyArtist)
	if err != nil {
		o.abortErr = err
		o.retryable = models.IsTransient(err)
		return o.result("artist")
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

		batch, err := p.engine.MissingArtistBatch(ctx, size)
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

		records, genres, missing, err := p.catalog.FetchArtists(ctx, ids)
		if err != nil {
			o.abortErr = err
			o.retryable = models.IsTransient(err)
			metrics.BatchesTotal.WithLabelValues("enrich-spotify-artists", "error").Inc()
			break
		}

		if len(records) > 0 {
			if _, err := p.store.WriteTable(ctx, artistFrame(records), query.TableSpotifyArtists, store.MergeByKey("artist_id")); err != nil {
				o.abortErr = err
				break
			}
			metrics.RowsMergedTotal.WithLabelValues(query.TableSpotifyArtists).Add(float64(len(records)))
		}
		if len(genres) > 0 {
			if _, err := p.store.WriteTable(ctx, genreFrame(genres), query.TableSpotifyGenres, store.MergeByKey("artist_id", "genre")); err != nil {
				o.abortErr = err
				break
			}
			metrics.RowsMergedTotal.WithLabelValues(query.TableSpotifyGenres).Add(float64(len(genres)))
		}
		o.processed += len(records)

		if len(missing) > 0 {
			reasons := make(map[string]string, len(missing))
			for _, id := range missing {
				reasons[id] = "artist not found"
				o.recordFailure(fmt.Sprintf("artist %s not found", id))
			}
			p.failures.RecordAll(ctx, models.FailureSpotifyArtist, reasons)
		}

		status := "success"
		if len(missing) > 0 {
			status = "partial"
		}
		metrics.BatchesTotal.WithLabelValues("enrich-spotify-artists", status).Inc()
		logging.Info().
			Int("batch", o.batches).
			Int("enriched", len(records)).
			Int("missing", len(missing)).
			Msg("Artist batch merged")
	}

	return o.result("artist")
}
