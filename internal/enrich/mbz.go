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

// MBZArtistProcessor fills mbz_artist_info for recently played artists.
// Resolution is two lookups per artist: ISRC -> recording -> artist MBID,
// then the artist record itself. Both ride the provider's one-per-second
// budget, so batches are small and the candidate set is recency-windowed.
type MBZArtistProcessor struct {
	store     *store.Writer
	engine    *query.Engine
	failures  *FailureTracker
	resolver  ArtistResolver
	batchSize int
}

// NewMBZArtistProcessor wires a MusicBrainz artist processor.
func NewMBZArtistProcessor(st *store.Writer, eng *query.Engine, ft *FailureTracker, resolver ArtistResolver, batchSize int) *MBZArtistProcessor {
	return &MBZArtistProcessor{store: st, engine: eng, failures: ft, resolver: resolver, batchSize: batchSize}
}

// Process runs batch cycles until the missing set is drained or limit
// entities have been handled (0 means unbounded). The cycle never exceeds
// the batch count planned up front, so a candidate that somehow survives
// its own merge cannot keep the loop (and the provider budget) spinning.
func (p *MBZArtistProcessor) Process(ctx context.Context, limit int) models.Result {
	o := &outcome{}

	total, err := p.engine.CountMissing(ctx, query.EntityMBZArtist)
	if err != nil {
		o.abortErr = err
		o.retryable = models.IsTransient(err)
		return o.result("musicbrainz artist")
	}
	o.plan(total, limit, p.batchSize)

loop:
	for {
		if o.batches >= o.numBatches {
			break
		}
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

		batch, err := p.engine.MissingMBZArtistBatch(ctx, size)
		if err != nil {
			o.abortErr = err
			o.retryable = models.IsTransient(err)
			break
		}
		if len(batch) == 0 {
			break
		}
		o.batches++

		records := make([]models.MBZArtistRecord, 0, len(batch))
		reasons := make(map[string]string)
		for _, cand := range batch {
			rec, err := p.resolveArtist(ctx, cand)
			switch {
			case err == nil:
				records = append(records, rec)
			case models.IsNotFound(err):
				reasons[cand.SpotifyID] = err.Error()
				o.recordFailure(fmt.Sprintf("artist %q: %v", cand.Name, err))
			default:
				// Merge what this batch resolved before aborting.
				o.abortErr = err
				o.retryable = models.IsTransient(err)
				metrics.BatchesTotal.WithLabelValues("enrich-mbz-artists", "error").Inc()
				p.mergeBatch(ctx, o, records, reasons)
				break loop
			}
		}

		if !p.mergeBatch(ctx, o, records, reasons) {
			break
		}

		status := "success"
		if len(reasons) > 0 {
			status = "partial"
		}
		metrics.BatchesTotal.WithLabelValues("enrich-mbz-artists", status).Inc()
		logging.Info().
			Int("batch", o.batches).
			Int("enriched", len(records)).
			Int("missing", len(reasons)).
			Msg("MusicBrainz artist batch merged")
	}

	return o.result("musicbrainz artist")
}

func (p *MBZArtistProcessor) resolveArtist(ctx context.Context, cand models.MBZArtistCandidate) (models.MBZArtistRecord, error) {
	mbid, err := p.resolver.ArtistMBIDByISRC(ctx, cand.ISRC)
	if err != nil {
		return models.MBZArtistRecord{}, err
	}
	rec, err := p.resolver.ArtistByID(ctx, mbid)
	if err != nil {
		return models.MBZArtistRecord{}, err
	}
	rec.SpotifyID = cand.SpotifyID
	return rec, nil
}

// mergeBatch persists resolved records and failure suppressions. Returns
// false when the store write failed and the run should stop.
func (p *MBZArtistProcessor) mergeBatch(ctx context.Context, o *outcome, records []models.MBZArtistRecord, reasons map[string]string) bool {
	if len(records) > 0 {
		if _, err := p.store.WriteTable(ctx, mbzArtistFrame(records), query.TableMBZArtistInfo, store.MergeByKey("id")); err != nil {
			if o.abortErr == nil {
				o.abortErr = err
			}
			return false
		}
		metrics.RowsMergedTotal.WithLabelValues(query.TableMBZArtistInfo).Add(float64(len(records)))
		o.processed += len(records)
	}
	p.failures.RecordAll(ctx, models.FailureMBZArtist, reasons)
	return true
}
