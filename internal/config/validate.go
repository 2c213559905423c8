// Phonographus - Music Listening History Enrichment and Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/phonographus

package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Validate checks structural constraints via validator tags plus the
// cross-field invariants that tags cannot express.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if ok := asValidationErrors(err, &verrs); ok && len(verrs) > 0 {
			first := verrs[0]
			return fmt.Errorf("invalid config field %s: failed %q constraint", first.Namespace(), first.Tag())
		}
		return err
	}

	// The recency window bounds which play events are considered for
	// rate-limited enrichment. If ingestion runs less often than the window
	// spans, plays landing in the gap would never be enriched.
	if c.Enrichment.RecencyWindow < c.Ingest.Interval {
		return fmt.Errorf("enrichment.recency_window (%s) must be >= ingest.interval (%s)",
			c.Enrichment.RecencyWindow, c.Ingest.Interval)
	}

	if _, err := time.LoadLocation(c.Ingest.Timezone); err != nil {
		return fmt.Errorf("invalid ingest.timezone %q: %w", c.Ingest.Timezone, err)
	}

	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return fmt.Errorf("metrics.addr is required when metrics.enabled is true")
	}

	return nil
}

// asValidationErrors extracts validator.ValidationErrors without panicking on
// other error types (e.g. InvalidValidationError).
func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	verrs, ok := err.(validator.ValidationErrors) //nolint:errorlint // validator returns the concrete type
	if ok {
		*target = verrs
	}
	return ok
}
