// Phonographus - Music Listening History Enrichment and Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/phonographus

package musicbrainz

import (
	"context"
	"net/url"

	"github.com/tomtom215/phonographus/internal/logging"
	"github.com/tomtom215/phonographus/internal/models"
)

// Area is one node of the MusicBrainz area graph.
type Area struct {
	ID       string
	Name     string
	Type     string
	ISOCodes []string
	ParentID string
}

type areaResponse struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Type          string   `json:"type"`
	ISO31661Codes []string `json:"iso-3166-1-codes"`
	Relations     []struct {
		Type      string `json:"type"`
		Direction string `json:"direction"`
		Area      *struct {
			ID string `json:"id"`
		} `json:"area"`
	} `json:"relations"`
}

// AreaByID fetches one area node with its parent link. The parent is the
// target of the backward "part of" relation; MusicBrainz models the hierarchy
// as a single-parent chain for administrative areas.
func (c *Client) AreaByID(ctx context.Context, areaID string) (Area, error) {
	params := url.Values{}
	params.Set("inc", "area-rels")

	var resp areaResponse
	err := c.get(ctx, c.areaLimiter, "area_lookup", "/ws/2/area/"+url.PathEscape(areaID), params, &resp)
	if err != nil {
		return Area{}, err
	}

	area := Area{
		ID:       resp.ID,
		Name:     resp.Name,
		Type:     resp.Type,
		ISOCodes: resp.ISO31661Codes,
	}
	for _, rel := range resp.Relations {
		if rel.Type == "part of" && rel.Direction == "backward" && rel.Area != nil {
			area.ParentID = rel.Area.ID
			break
		}
	}
	return area, nil
}

// AreaHierarchy resolves an area id into a flattened place chain by walking
// "part of" relations to the root. Each level is assigned to its typed column;
// unrecognized types only contribute when they are the starting area.
//
// A visited set plus a depth cap protect against relation cycles in the
// source data.
func (c *Client) AreaHierarchy(ctx context.Context, areaID string) (models.AreaRecord, error) {
	rec := models.AreaRecord{AreaID: areaID}
	visited := map[string]bool{}

	current := areaID
	for depth := 0; current != "" && depth < maxHierarchyDepth; depth++ {
		if visited[current] {
			logging.Warn().Str("area_id", current).Msg("Area hierarchy cycle detected")
			break
		}
		visited[current] = true

		area, err := c.AreaByID(ctx, current)
		if err != nil {
			// Levels already walked are still useful; only a miss on the
			// starting area fails the whole record.
			if depth > 0 && models.IsNotFound(err) {
				logging.Warn().Str("area_id", current).Msg("Parent area not found, keeping partial hierarchy")
				break
			}
			return models.AreaRecord{}, err
		}

		if depth == 0 {
			rec.AreaName = area.Name
			rec.AreaType = area.Type
		}
		assignLevel(&rec, area)
		current = area.ParentID
	}

	return rec, nil
}

// assignLevel maps an area node onto its named column. First assignment wins:
// when a chain has two subdivisions the one closer to the start is the more
// specific and is kept.
func assignLevel(rec *models.AreaRecord, area Area) {
	set := func(dst *string) {
		if *dst == "" {
			*dst = area.Name
		}
	}
	switch area.Type {
	case "City":
		set(&rec.CityName)
	case "Municipality":
		set(&rec.MunicipalityName)
	case "County":
		set(&rec.CountyName)
	case "District":
		set(&rec.DistrictName)
	case "Subdivision":
		set(&rec.SubdivisionName)
	case "Island":
		set(&rec.IslandName)
	case "Country":
		set(&rec.CountryName)
		if rec.CountryCode == "" && len(area.ISOCodes) > 0 {
			rec.CountryCode = area.ISOCodes[0]
		}
	}
}
