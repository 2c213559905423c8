// Phonographus - Music Listening History Enrichment and Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/phonographus

package enrich

import (
	"fmt"

	"github.com/tomtom215/phonographus/internal/models"
)

// outcome accumulates per-run counters shared by every processor.
type outcome struct {
	processed int // entities successfully enriched and merged
	failed    int // entities recorded as failed (provider misses)
	batches   int
	errs      []string // per-entity failure descriptions
	abortErr  error    // provider/store error that stopped the run early
	retryable bool

	// Batch plan, captured at cycle start for the scheduler's benefit.
	totalMissing int
	toProcess    int
	batchSize    int
	numBatches   int
}

// recordFailure notes one per-entity miss.
func (o *outcome) recordFailure(desc string) {
	o.failed++
	o.errs = append(o.errs, desc)
}

// plan records what the cycle intends to do before the first batch runs.
func (o *outcome) plan(totalMissing, limit, batchSize int) {
	o.totalMissing = totalMissing
	o.toProcess = totalMissing
	if limit > 0 && limit < totalMissing {
		o.toProcess = limit
	}
	o.batchSize = batchSize
	if batchSize > 0 {
		o.numBatches = (o.toProcess + batchSize - 1) / batchSize
	}
}

// result maps an outcome onto the task result contract:
//   - nothing to do at all -> no_updates
//   - everything enriched -> success
//   - some enriched, some missed or an abort after progress -> partial_success
//   - abort before any progress -> error (retryable only for transient causes)
func (o *outcome) result(what string) models.Result {
	data := map[string]any{
		"processed":     o.processed,
		"failed":        o.failed,
		"batches":       o.batches,
		"total_missing": o.totalMissing,
		"to_process":    o.toProcess,
		"batch_size":    o.batchSize,
		"num_batches":   o.numBatches,
	}

	if o.abortErr != nil {
		// Partial success requires at least one persisted row; recorded
		// misses alone do not soften an abort.
		if o.processed == 0 {
			errs := append(o.errs, o.abortErr.Error())
			if o.retryable {
				return models.TransientErrorResult(fmt.Sprintf("%s enrichment failed", what), errs...)
			}
			return models.ErrorResult(fmt.Sprintf("%s enrichment failed", what), errs...)
		}
		return models.PartialSuccessResult(
			fmt.Sprintf("%s enrichment interrupted after %d entities", what, o.processed),
			data, append(o.errs, o.abortErr.Error()))
	}

	switch {
	case o.processed == 0 && o.failed == 0:
		return models.NoUpdatesResult(fmt.Sprintf("no %s entities need enrichment", what))
	case o.processed == 0:
		// Every candidate failed. Failures were recorded (so the next run
		// skips them), but the cycle itself produced nothing.
		return models.ErrorResult(
			fmt.Sprintf("all %d %s entities failed enrichment", o.failed, what), o.errs...)
	case o.failed > 0:
		return models.PartialSuccessResult(
			fmt.Sprintf("enriched %d %s entities, %d failed", o.processed, what, o.failed), data, o.errs)
	default:
		return models.SuccessResult(fmt.Sprintf("enriched %d %s entities", o.processed, what), data)
	}
}
