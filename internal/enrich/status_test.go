// Phonographus - Music Listening History Enrichment and Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/phonographus

package enrich

import (
	"errors"
	"testing"

	"github.com/tomtom215/phonographus/internal/models"
)

func TestOutcomeResult(t *testing.T) {
	tests := []struct {
		name          string
		o             outcome
		wantStatus    models.Status
		wantRetryable bool
	}{
		{"nothing to do", outcome{}, models.StatusNoUpdates, false},
		{"all enriched", outcome{processed: 5, batches: 1}, models.StatusSuccess, false},
		{"some missed", outcome{processed: 4, failed: 1, batches: 1}, models.StatusPartialSuccess, false},
		{"only misses", outcome{failed: 3, batches: 1}, models.StatusError, false},
		{
			"abort before progress, transient",
			outcome{abortErr: errors.New("boom"), retryable: true},
			models.StatusError, true,
		},
		{
			"abort before progress, permanent",
			outcome{abortErr: errors.New("bad creds")},
			models.StatusError, false,
		},
		{
			"abort after progress keeps partial",
			outcome{processed: 2, abortErr: errors.New("boom"), retryable: true},
			models.StatusPartialSuccess, false,
		},
		{
			"abort with only recorded misses is still an error",
			outcome{failed: 2, abortErr: errors.New("boom"), retryable: true},
			models.StatusError, true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := tt.o.result("widget")
			if res.Status != tt.wantStatus {
				t.Errorf("status = %s, want %s", res.Status, tt.wantStatus)
			}
			if res.Retryable != tt.wantRetryable {
				t.Errorf("retryable = %v, want %v", res.Retryable, tt.wantRetryable)
			}
		})
	}
}
