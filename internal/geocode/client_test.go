// Phonographus - Music Listening History Enrichment and Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/phonographus

package geocode

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tomtom215/phonographus/internal/config"
	"github.com/tomtom215/phonographus/internal/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.GeocoderConfig{
		APIKey:    "test-key",
		BaseURL:   srv.URL,
		Timeout:   5 * time.Second,
		CallDelay: 0,
	})
}

func TestGeocode(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/geo/1.0/direct" {
			t.Errorf("path = %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("q") != "Rochdale,GB" || q.Get("limit") != "1" || q.Get("appid") != "test-key" {
			t.Errorf("query = %v", q)
		}
		fmt.Fprint(w, `[{"name":"Rochdale","lat":53.6097,"lon":-2.1561,"country":"GB"}]`)
	})

	got, err := c.Geocode(context.Background(), "Rochdale", "GB")
	if err != nil {
		t.Fatalf("Geocode() error = %v", err)
	}
	want := models.CityCoordinates{
		Params:      "Rochdale,GB",
		CityName:    "Rochdale",
		CountryCode: "GB",
		Lat:         53.6097,
		Long:        -2.1561,
	}
	if got != want {
		t.Errorf("Geocode() = %+v, want %+v", got, want)
	}
}

func TestGeocodeNoResult(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `[]`)
	})

	_, err := c.Geocode(context.Background(), "Nowhereville", "XX")
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Geocode() error = %v, want ErrNotFound", err)
	}
}

func TestGeocodeErrorClassification(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr error
	}{
		{"bad key is auth", http.StatusUnauthorized, models.ErrAuth},
		{"rate limited is transient", http.StatusTooManyRequests, models.ErrTransient},
		{"server error is transient", http.StatusBadGateway, models.ErrTransient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			})
			_, err := c.Geocode(context.Background(), "Rochdale", "GB")
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Geocode() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
