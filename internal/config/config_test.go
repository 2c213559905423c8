// Phonographus - Music Listening History Enrichment and Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/phonographus

package config

import (
	"net/url"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := defaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default config should validate, got: %v", err)
	}
}

func TestDefaultValues(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Enrichment.RecencyWindow != 48*time.Hour {
		t.Errorf("Expected 48h recency window, got %s", cfg.Enrichment.RecencyWindow)
	}
	if cfg.Enrichment.Workers != 5 {
		t.Errorf("Expected 5 workers, got %d", cfg.Enrichment.Workers)
	}
	if cfg.Enrichment.ArtistBatchSize != 50 {
		t.Errorf("Expected artist batch size 50, got %d", cfg.Enrichment.ArtistBatchSize)
	}
	if cfg.Enrichment.MBZBatchSize != 10 {
		t.Errorf("Expected MBZ batch size 10, got %d", cfg.Enrichment.MBZBatchSize)
	}
	if cfg.MusicBrainz.CallDelay != time.Second {
		t.Errorf("Expected 1s MusicBrainz call delay, got %s", cfg.MusicBrainz.CallDelay)
	}
	if cfg.Geocoder.CallDelay != 1100*time.Millisecond {
		t.Errorf("Expected 1.1s geocoder call delay, got %s", cfg.Geocoder.CallDelay)
	}

	// The geocode client appends /geo/1.0/direct itself; a default carrying
	// the path would double it on every request.
	if cfg.Geocoder.BaseURL != "https://api.openweathermap.org" {
		t.Errorf("Expected path-free geocoder base URL, got %s", cfg.Geocoder.BaseURL)
	}
	u, err := url.Parse(cfg.Geocoder.BaseURL)
	if err != nil || u.Path != "" {
		t.Errorf("Geocoder base URL must not carry a path, got %q", cfg.Geocoder.BaseURL)
	}
}

func TestValidateRecencyWindowAgainstIngestInterval(t *testing.T) {
	cfg := defaultConfig()
	cfg.Enrichment.RecencyWindow = time.Hour
	cfg.Ingest.Interval = 6 * time.Hour

	if err := cfg.Validate(); err == nil {
		t.Error("Expected validation failure when recency window < ingest interval")
	}
}

func TestValidateBatchSizeBounds(t *testing.T) {
	cfg := defaultConfig()
	cfg.Enrichment.ArtistBatchSize = 100 // Spotify caps the batch endpoint at 50

	if err := cfg.Validate(); err == nil {
		t.Error("Expected validation failure for artist batch size > 50")
	}
}

func TestValidateTimezone(t *testing.T) {
	cfg := defaultConfig()
	cfg.Ingest.Timezone = "Not/AZone"

	if err := cfg.Validate(); err == nil {
		t.Error("Expected validation failure for bogus timezone")
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"PHONO_SPOTIFY_CLIENT_ID", "spotify.client_id"},
		{"PHONO_ENRICHMENT_RECENCY_WINDOW", "enrichment.recency_window"},
		{"PHONO_MUSICBRAINZ_USER_AGENT", "musicbrainz.user_agent"},
		{"PHONO_STORE_PATH", "store.path"},
		{"PHONO_LOGGING_LEVEL", "logging.level"},
		{"PHONO_UNKNOWN_THING", "unknown_thing"},
	}

	for _, tt := range tests {
		if got := envTransformFunc(tt.in); got != tt.want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	t.Setenv("PHONO_ENRICHMENT_WORKERS", "3")
	t.Setenv("PHONO_STORE_PATH", "/tmp/phono-test-store")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Enrichment.Workers != 3 {
		t.Errorf("Expected workers=3 from env, got %d", cfg.Enrichment.Workers)
	}
	if cfg.Store.Path != "/tmp/phono-test-store" {
		t.Errorf("Expected store path from env, got %q", cfg.Store.Path)
	}
}
