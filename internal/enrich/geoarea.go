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

// GeoAreaProcessor is the fast geographic stage: it derives continent,
// country code and the geocoding params key for hierarchy rows, entirely
// from local data. No external calls, so it runs unbatched and unthrottled.
type GeoAreaProcessor struct {
	store  *store.Writer
	engine *query.Engine
}

// NewGeoAreaProcessor wires a fast geographic processor.
func NewGeoAreaProcessor(st *store.Writer, eng *query.Engine) *GeoAreaProcessor {
	return &GeoAreaProcessor{store: st, engine: eng}
}

// Process derives geography for up to limit hierarchy rows (0 means all).
func (p *GeoAreaProcessor) Process(ctx context.Context, limit int) models.Result {
	o := &outcome{}

	total, err := p.engine.CountMissing(ctx, query.EntityGeoArea)
	if err != nil {
		o.abortErr = err
		o.retryable = models.IsTransient(err)
		return o.result("geographic area")
	}
	o.plan(total, limit, total)

	batchLimit := limit
	if batchLimit <= 0 {
		batchLimit = 1 << 30
	}
	pending, err := p.engine.AreasNeedingGeoBatch(ctx, batchLimit)
	if err != nil {
		return models.TransientErrorResult(fmt.Sprintf("listing areas needing geography: %v", err))
	}
	if len(pending) == 0 {
		return o.result("geographic area")
	}

	frame, err := p.store.ReadTable(ctx, query.TableMBZAreaHierarchy)
	if err != nil {
		return models.TransientErrorResult(fmt.Sprintf("reading area hierarchy: %v", err))
	}
	records, err := areaRecordsFromFrame(frame)
	if err != nil {
		return models.ErrorResult(fmt.Sprintf("decoding area hierarchy: %v", err))
	}

	pendingSet := make(map[string]bool, len(pending))
	for _, id := range pending {
		pendingSet[id] = true
	}

	var updated []models.AreaRecord
	for _, rec := range records {
		if !pendingSet[rec.AreaID] {
			continue
		}
		if deriveGeography(&rec) {
			o.processed++
		} else {
			// Mark so the row leaves the pending set instead of being
			// re-derived (and re-failed) on every run.
			rec.Continent = "Unknown"
			o.recordFailure(fmt.Sprintf("area %s (%s): no country code derivable", rec.AreaID, rec.AreaName))
		}
		updated = append(updated, rec)
	}

	if len(updated) > 0 {
		o.batches = 1
		if _, err := p.store.WriteTable(ctx, areaFrame(updated), query.TableMBZAreaHierarchy, store.MergeByKey("area_id")); err != nil {
			// Nothing from this pass was persisted, including the
			// "Unknown" markers counted as failures above.
			o.abortErr = err
			o.retryable = models.IsTransient(err)
			o.processed = 0
			return o.result("geographic area")
		}
		metrics.RowsMergedTotal.WithLabelValues(query.TableMBZAreaHierarchy).Add(float64(len(updated)))
		metrics.BatchesTotal.WithLabelValues("enrich-geo-areas", "success").Inc()
	}

	logging.Info().
		Int("derived", o.processed).
		Int("underivable", o.failed).
		Msg("Geographic derivation pass complete")
	return o.result("geographic area")
}

// areaRecordsFromFrame decodes hierarchy rows back into records. Unknown
// columns are ignored; absent columns read as empty.
func areaRecordsFromFrame(f *store.Frame) ([]models.AreaRecord, error) {
	col := func(name string) int { return f.ColumnIndex(name) }
	str := func(row []any, idx int) string {
		if idx < 0 || row[idx] == nil {
			return ""
		}
		s, ok := row[idx].(string)
		if !ok {
			return fmt.Sprintf("%v", row[idx])
		}
		return s
	}

	idIdx := col("area_id")
	if idIdx < 0 {
		return nil, fmt.Errorf("hierarchy table has no area_id column")
	}
	idx := map[string]int{
		"area_name": col("area_name"), "area_type": col("area_type"),
		"city_name": col("city_name"), "municipality_name": col("municipality_name"),
		"county_name": col("county_name"), "district_name": col("district_name"),
		"subdivision_name": col("subdivision_name"), "island_name": col("island_name"),
		"country_name": col("country_name"), "country_code": col("country_code"),
		"continent": col("continent"), "continent_code": col("continent_code"),
		"params": col("params"),
	}

	records := make([]models.AreaRecord, 0, f.Len())
	for _, row := range f.Rows {
		records = append(records, models.AreaRecord{
			AreaID:           str(row, idIdx),
			AreaName:         str(row, idx["area_name"]),
			AreaType:         str(row, idx["area_type"]),
			CityName:         str(row, idx["city_name"]),
			MunicipalityName: str(row, idx["municipality_name"]),
			CountyName:       str(row, idx["county_name"]),
			DistrictName:     str(row, idx["district_name"]),
			SubdivisionName:  str(row, idx["subdivision_name"]),
			IslandName:       str(row, idx["island_name"]),
			CountryName:      str(row, idx["country_name"]),
			CountryCode:      str(row, idx["country_code"]),
			Continent:        str(row, idx["continent"]),
			ContinentCode:    str(row, idx["continent_code"]),
			Params:           str(row, idx["params"]),
		})
	}
	return records, nil
}
