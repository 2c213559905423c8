// Phonographus - Music Listening History Enrichment and Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/phonographus

package enrich

import (
	"context"
	"fmt"

	"github.com/alitto/pond/v2"

	"github.com/tomtom215/phonographus/internal/logging"
	"github.com/tomtom215/phonographus/internal/metrics"
	"github.com/tomtom215/phonographus/internal/models"
	"github.com/tomtom215/phonographus/internal/query"
	"github.com/tomtom215/phonographus/internal/store"
)

// GeoCoordinateProcessor is the slow geographic stage: it geocodes distinct
// cities through the coordinate provider. Lookups fan out over a bounded
// worker pool; the client's shared rate limiter keeps the provider budget
// honest regardless of worker count, so workers only hide per-request
// latency.
type GeoCoordinateProcessor struct {
	store     *store.Writer
	engine    *query.Engine
	failures  *FailureTracker
	geocoder  Geocoder
	batchSize int
	workers   int
}

// NewGeoCoordinateProcessor wires a geocoding processor.
func NewGeoCoordinateProcessor(st *store.Writer, eng *query.Engine, ft *FailureTracker, geocoder Geocoder, batchSize, workers int) *GeoCoordinateProcessor {
	if workers < 1 {
		workers = 1
	}
	return &GeoCoordinateProcessor{
		store: st, engine: eng, failures: ft, geocoder: geocoder,
		batchSize: batchSize, workers: workers,
	}
}

type geocodeOutcome struct {
	candidate models.CityCandidate
	coords    models.CityCoordinates
	err       error
}

// Process runs batch cycles until the missing set is drained or limit
// entities have been handled (0 means unbounded).
func (p *GeoCoordinateProcessor) Process(ctx context.Context, limit int) models.Result {
	o := &outcome{}

	total, err := p.engine.CountMissing(ctx, query.EntityGeoCity)
	if err != nil {
		o.abortErr = err
		o.retryable = models.IsTransient(err)
		return o.result("city")
	}
	o.plan(total, limit, p.batchSize)

	pool := pond.NewResultPool[geocodeOutcome](p.workers)
	defer pool.StopAndWait()

loop:
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

		batch, err := p.engine.MissingCityBatch(ctx, size)
		if err != nil {
			o.abortErr = err
			o.retryable = models.IsTransient(err)
			break
		}
		if len(batch) == 0 {
			break
		}
		o.batches++

		tasks := make([]pond.Result[geocodeOutcome], len(batch))
		for i, cand := range batch {
			cand := cand
			tasks[i] = pool.SubmitErr(func() (geocodeOutcome, error) {
				coords, err := p.geocoder.Geocode(ctx, cand.City, cand.CountryCode)
				return geocodeOutcome{candidate: cand, coords: coords, err: err}, nil
			})
		}

		var resolved []models.CityCoordinates
		reasons := make(map[string]string)
		for _, task := range tasks {
			res, err := task.Wait()
			if err != nil {
				o.abortErr = err
				break loop
			}
			switch {
			case res.err == nil:
				// Key by the hierarchy params so the join holds even when the
				// provider normalizes the place name.
				coords := res.coords
				coords.Params = res.candidate.Params
				coords.CityName = res.candidate.City
				resolved = append(resolved, coords)
			case models.IsNotFound(res.err):
				reasons[res.candidate.Params] = res.err.Error()
				o.recordFailure(fmt.Sprintf("city %q: %v", res.candidate.Params, res.err))
			default:
				if o.abortErr == nil {
					o.abortErr = res.err
					o.retryable = models.IsTransient(res.err)
				}
			}
		}

		if len(resolved) > 0 {
			if _, err := p.store.WriteTable(ctx, cityFrame(resolved), query.TableCities, store.MergeByKey("params")); err != nil {
				if o.abortErr == nil {
					o.abortErr = err
				}
				break
			}
			metrics.RowsMergedTotal.WithLabelValues(query.TableCities).Add(float64(len(resolved)))
			o.processed += len(resolved)
		}
		p.failures.RecordAll(ctx, models.FailureGeoCity, reasons)

		if o.abortErr != nil {
			metrics.BatchesTotal.WithLabelValues("enrich-geo-coordinates", "error").Inc()
			break
		}

		status := "success"
		if len(reasons) > 0 {
			status = "partial"
		}
		metrics.BatchesTotal.WithLabelValues("enrich-geo-coordinates", status).Inc()
		logging.Info().
			Int("batch", o.batches).
			Int("geocoded", len(resolved)).
			Int("missing", len(reasons)).
			Msg("Geocoding batch merged")
	}

	return o.result("city")
}
