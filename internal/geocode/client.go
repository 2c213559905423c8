// Phonographus - Music Listening History Enrichment and Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/phonographus

// Package geocode implements the coordinate provider client (OpenWeather
// direct geocoding). This is the slowest external surface in the pipeline:
// the free tier allows under one call per second, so the limiter defaults to
// a 1.1s interval and the slow geographic stage is the only caller.
package geocode

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/tomtom215/phonographus/internal/config"
	"github.com/tomtom215/phonographus/internal/metrics"
	"github.com/tomtom215/phonographus/internal/models"
)

const serviceName = "geocoder"

// Client is the direct geocoding client. Safe for concurrent use; the shared
// limiter serializes calls across worker goroutines.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a geocoding client from configuration.
func NewClient(cfg config.GeocoderConfig) *Client {
	limit := rate.Inf
	if cfg.CallDelay > 0 {
		limit = rate.Every(cfg.CallDelay)
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(limit, 1),
	}
}

type geocodeResult struct {
	Name    string  `json:"name"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Country string  `json:"country"`
}

// Geocode resolves a city and ISO country code to coordinates. The returned
// record's Params field is the same "<city>,<country_code>" string the area
// hierarchy derives, so results join back without normalization.
//
// Returns models.ErrNotFound when the provider knows no such place.
func (c *Client) Geocode(ctx context.Context, city, countryCode string) (models.CityCoordinates, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return models.CityCoordinates{}, err
	}

	q := city + "," + countryCode
	params := url.Values{}
	params.Set("q", q)
	params.Set("limit", "1")
	params.Set("appid", c.apiKey)

	reqURL := fmt.Sprintf("%s/geo/1.0/direct?%s", c.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return models.CityCoordinates{}, fmt.Errorf("creating request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.APICallDuration.WithLabelValues(serviceName, "direct").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.APICallsTotal.WithLabelValues(serviceName, "direct", "transient").Inc()
		return models.CityCoordinates{}, fmt.Errorf("%w: geocoding %s: %v", models.ErrTransient, q, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		metrics.APICallsTotal.WithLabelValues(serviceName, "direct", "auth").Inc()
		return models.CityCoordinates{}, fmt.Errorf("%w: geocoder rejected API key (status %d)", models.ErrAuth, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		metrics.APICallsTotal.WithLabelValues(serviceName, "direct", "transient").Inc()
		return models.CityCoordinates{}, fmt.Errorf("%w: geocoder returned status %d", models.ErrTransient, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		metrics.APICallsTotal.WithLabelValues(serviceName, "direct", "error").Inc()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return models.CityCoordinates{}, fmt.Errorf("geocoder returned status %d: %s", resp.StatusCode, body)
	}

	var results []geocodeResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		metrics.APICallsTotal.WithLabelValues(serviceName, "direct", "error").Inc()
		return models.CityCoordinates{}, fmt.Errorf("decoding geocoder response: %w", err)
	}
	if len(results) == 0 {
		metrics.APICallsTotal.WithLabelValues(serviceName, "direct", "not_found").Inc()
		return models.CityCoordinates{}, fmt.Errorf("%w: no geocoding result for %q", models.ErrNotFound, q)
	}

	metrics.APICallsTotal.WithLabelValues(serviceName, "direct", "success").Inc()
	return models.CityCoordinates{
		Params:      q,
		CityName:    city,
		CountryCode: countryCode,
		Lat:         results[0].Lat,
		Long:        results[0].Lon,
	}, nil
}
