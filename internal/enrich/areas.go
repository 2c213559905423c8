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

// MBZAreaProcessor fills mbz_area_hierarchy for area ids referenced by
// enriched artists. One hierarchy is several area lookups (the walk to the
// root), so the effective batch budget is a multiple of the batch size.
type MBZAreaProcessor struct {
	store     *store.Writer
	engine    *query.Engine
	failures  *FailureTracker
	resolver  ArtistResolver
	batchSize int
}

// NewMBZAreaProcessor wires an area hierarchy processor.
func NewMBZAreaProcessor(st *store.Writer, eng *query.Engine, ft *FailureTracker, resolver ArtistResolver, batchSize int) *MBZAreaProcessor {
	return &MBZAreaProcessor{store: st, engine: eng, failures: ft, resolver: resolver, batchSize: batchSize}
}

// Process runs batch cycles until the missing set is drained or limit
// entities have been handled (0 means unbounded).
func (p *MBZAreaProcessor) Process(ctx context.Context, limit int) models.Result {
	o := &outcome{}

	total, err := p.engine.CountMissing(ctx, query.EntityMBZArea)
	if err != nil {
		o.abortErr = err
		o.retryable = models.IsTransient(err)
		return o.result("area")
	}
	o.plan(total, limit, p.batchSize)

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

		batch, err := p.engine.MissingAreaBatch(ctx, size)
		if err != nil {
			o.abortErr = err
			o.retryable = models.IsTransient(err)
			break
		}
		if len(batch) == 0 {
			break
		}
		o.batches++

		records := make([]models.AreaRecord, 0, len(batch))
		reasons := make(map[string]string)
		for _, areaID := range batch {
			rec, err := p.resolver.AreaHierarchy(ctx, areaID)
			switch {
			case err == nil:
				records = append(records, rec)
			case models.IsNotFound(err):
				reasons[areaID] = err.Error()
				o.recordFailure(fmt.Sprintf("area %s: %v", areaID, err))
			default:
				o.abortErr = err
				o.retryable = models.IsTransient(err)
				metrics.BatchesTotal.WithLabelValues("enrich-mbz-areas", "error").Inc()
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
		metrics.BatchesTotal.WithLabelValues("enrich-mbz-areas", status).Inc()
		logging.Info().
			Int("batch", o.batches).
			Int("enriched", len(records)).
			Int("missing", len(reasons)).
			Msg("Area hierarchy batch merged")
	}

	return o.result("area")
}

func (p *MBZAreaProcessor) mergeBatch(ctx context.Context, o *outcome, records []models.AreaRecord, reasons map[string]string) bool {
	if len(records) > 0 {
		if _, err := p.store.WriteTable(ctx, areaFrame(records), query.TableMBZAreaHierarchy, store.MergeByKey("area_id")); err != nil {
			if o.abortErr == nil {
				o.abortErr = err
			}
			return false
		}
		metrics.RowsMergedTotal.WithLabelValues(query.TableMBZAreaHierarchy).Add(float64(len(records)))
		o.processed += len(records)
	}
	p.failures.RecordAll(ctx, models.FailureMBZArea, reasons)
	return true
}
