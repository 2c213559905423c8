// Phonographus - Music Listening History Enrichment and Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/phonographus

package enrich

import (
	"context"
	"time"

	"github.com/tomtom215/phonographus/internal/logging"
	"github.com/tomtom215/phonographus/internal/metrics"
	"github.com/tomtom215/phonographus/internal/models"
	"github.com/tomtom215/phonographus/internal/query"
	"github.com/tomtom215/phonographus/internal/store"
)

// FailureTracker records per-entity enrichment failures. The query engine
// excludes recorded entities from missing-set batches until the failure ages
// past the configured TTL, so one permanently unknown id cannot pin a batch
// slot forever.
//
// Failures merge by (domain, entity_key): re-failing refreshes the timestamp
// instead of growing the table.
type FailureTracker struct {
	store *store.Writer
	now   func() time.Time
}

// NewFailureTracker creates a tracker writing to the given store.
func NewFailureTracker(st *store.Writer) *FailureTracker {
	return &FailureTracker{store: st, now: time.Now}
}

// Record persists one failure. Recording is best-effort: a store error is
// logged and swallowed because losing a suppression entry only costs a
// repeated lookup next cycle, while failing the batch would cost real work.
func (t *FailureTracker) Record(ctx context.Context, domain models.FailureDomain, entityKey, reason string) {
	t.RecordAll(ctx, domain, map[string]string{entityKey: reason})
}

// RecordAll persists a set of failures for one domain in a single write.
func (t *FailureTracker) RecordAll(ctx context.Context, domain models.FailureDomain, reasons map[string]string) {
	if len(reasons) == 0 {
		return
	}

	f := store.NewFrame("domain", "entity_key", "reason", "failed_at")
	now := t.now().UTC()
	for key, reason := range reasons {
		if key == "" {
			continue
		}
		f.MustAppend(string(domain), key, reason, now)
	}
	if f.Empty() {
		return
	}

	_, err := t.store.WriteTable(ctx, f, query.TableFailures, store.MergeByKey("domain", "entity_key"))
	if err != nil {
		logging.Warn().Err(err).Str("domain", string(domain)).Int("count", f.Len()).
			Msg("Failed to record enrichment failures")
		return
	}

	metrics.FailuresRecordedTotal.WithLabelValues(string(domain)).Add(float64(f.Len()))
	logging.Debug().Str("domain", string(domain)).Int("count", f.Len()).Msg("Recorded enrichment failures")
}
