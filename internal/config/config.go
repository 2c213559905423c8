// Phonographus - Music Listening History Enrichment and Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/phonographus

// Package config loads and validates Phonographus configuration.
//
// Configuration is loaded via Koanf v2 with layered sources (highest priority
// wins):
//   - Environment variables (PHONO_ prefix, e.g. PHONO_SPOTIFY_CLIENT_ID)
//   - Config file (config.yaml)
//   - Built-in defaults
//
// The resulting Config struct is immutable by convention: it is built once at
// startup and passed into constructors. Nothing reads os.Getenv at call time,
// which keeps tasks deterministic and testable.
package config

import (
	"time"
)

// Config is the root configuration for all Phonographus tasks.
type Config struct {
	Logging     LoggingConfig     `koanf:"logging"`
	Store       StoreConfig       `koanf:"store"`
	Database    DatabaseConfig    `koanf:"database"`
	Spotify     SpotifyConfig     `koanf:"spotify"`
	MusicBrainz MusicBrainzConfig `koanf:"musicbrainz"`
	Geocoder    GeocoderConfig    `koanf:"geocoder"`
	Enrichment  EnrichmentConfig  `koanf:"enrichment"`
	Ingest      IngestConfig      `koanf:"ingest"`
	Metrics     MetricsConfig     `koanf:"metrics"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal panic disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// StoreConfig locates the columnar file store: one directory of parquet
// files per logical table under Path.
type StoreConfig struct {
	Path string `koanf:"path" validate:"required"`
}

// DatabaseConfig tunes the embedded DuckDB database used by the
// transformation layer. The enrichment side queries parquet directly through
// in-memory connections and does not touch this file.
type DatabaseConfig struct {
	Path      string `koanf:"path" validate:"required"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads" validate:"gte=0"`
}

// SpotifyConfig holds credentials and tuning for the Spotify Web API client.
// The refresh token comes from a one-time user authorization and is exchanged
// for short-lived access tokens at runtime.
type SpotifyConfig struct {
	ClientID     string        `koanf:"client_id"`
	ClientSecret string        `koanf:"client_secret"`
	RefreshToken string        `koanf:"refresh_token"`
	BaseURL      string        `koanf:"base_url" validate:"required,url"`
	TokenURL     string        `koanf:"token_url" validate:"required,url"`
	Timeout      time.Duration `koanf:"timeout" validate:"gt=0"`
	// CallDelay is the courtesy delay between sequential API calls, tuned to
	// provider rate limits. This is not failure backoff.
	CallDelay time.Duration `koanf:"call_delay" validate:"gte=0"`
}

// MusicBrainzConfig holds tuning for the MusicBrainz API client.
// MusicBrainz enforces one request per second per client and requires a
// meaningful User-Agent.
type MusicBrainzConfig struct {
	BaseURL   string        `koanf:"base_url" validate:"required,url"`
	UserAgent string        `koanf:"user_agent" validate:"required"`
	Timeout   time.Duration `koanf:"timeout" validate:"gt=0"`
	CallDelay time.Duration `koanf:"call_delay" validate:"gte=0"`
	// AreaCallDelay applies to area-hierarchy lookups, which are lighter and
	// tolerate a shorter interval.
	AreaCallDelay time.Duration `koanf:"area_call_delay" validate:"gte=0"`
}

// GeocoderConfig holds credentials and tuning for the OpenWeather direct
// geocoding API (60 calls per minute on the free tier).
type GeocoderConfig struct {
	APIKey    string        `koanf:"api_key"`
	BaseURL   string        `koanf:"base_url" validate:"required,url"`
	Timeout   time.Duration `koanf:"timeout" validate:"gt=0"`
	CallDelay time.Duration `koanf:"call_delay" validate:"gte=0"`
}

// EnrichmentConfig tunes the enrichment processors.
type EnrichmentConfig struct {
	// Batch sizes are rate-limit-safe per domain: the Spotify batch endpoints
	// accept 50 artists / 20 albums per request, MusicBrainz needs small
	// batches because each entity costs two sequential calls.
	ArtistBatchSize int `koanf:"artist_batch_size" validate:"gt=0,lte=50"`
	AlbumBatchSize  int `koanf:"album_batch_size" validate:"gt=0,lte=20"`
	MBZBatchSize    int `koanf:"mbz_batch_size" validate:"gt=0"`
	CityBatchSize   int `koanf:"city_batch_size" validate:"gt=0"`

	// Workers bounds concurrent detail lookups within one batch.
	Workers int `koanf:"workers" validate:"gt=0"`

	// RecencyWindow bounds rate-limited enrichment to entities referenced by
	// recent plays, so a cycle never re-scans the whole historical backlog.
	// Must be at least the ingestion interval or entities played during an
	// ingestion gap would be skipped forever.
	RecencyWindow time.Duration `koanf:"recency_window" validate:"gt=0"`

	// FailureTTL controls how long a recorded lookup failure suppresses the
	// entity from "missing" queries before it becomes eligible again.
	FailureTTL time.Duration `koanf:"failure_ttl" validate:"gt=0"`

	// RetryAttempts and RetryDelay define the failure-retry policy for
	// transient errors. The delay is deliberately coarser than the per-call
	// courtesy delay: it exists to ride out provider outages.
	RetryAttempts int           `koanf:"retry_attempts" validate:"gte=0"`
	RetryDelay    time.Duration `koanf:"retry_delay" validate:"gte=0"`
}

// IngestConfig tunes the recently-played ingestion task.
type IngestConfig struct {
	// Interval is how often the scheduler runs ingestion. Used only to
	// validate the enrichment recency window against it.
	Interval time.Duration `koanf:"interval" validate:"gt=0"`
	// CursorPath is the JSON file holding the provider pagination cursor.
	CursorPath string `koanf:"cursor_path" validate:"required"`
	// PageLimit is the page size for the recently-played endpoint (max 50).
	PageLimit int `koanf:"page_limit" validate:"gt=0,lte=50"`
	// Timezone is the IANA name used to localize played-at timestamps.
	Timezone string `koanf:"timezone" validate:"required"`
}

// MetricsConfig controls the optional Prometheus listener. Useful for the
// long-running geographic enrichment cycles; disabled by default because most
// tasks finish in seconds.
type MetricsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"`
}

// defaultConfig returns a Config struct with all sensible default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Store: StoreConfig{
			Path: "data/src",
		},
		Database: DatabaseConfig{
			Path:      "data/phonographus.duckdb",
			MaxMemory: "2GB",
			Threads:   0, // 0 = use runtime.NumCPU()
		},
		Spotify: SpotifyConfig{
			BaseURL:   "https://api.spotify.com/v1",
			TokenURL:  "https://accounts.spotify.com/api/token",
			Timeout:   30 * time.Second,
			CallDelay: time.Second,
		},
		MusicBrainz: MusicBrainzConfig{
			BaseURL:       "https://musicbrainz.org/ws/2",
			UserAgent:     "phonographus/1.0 (https://github.com/tomtom215/phonographus)",
			Timeout:       30 * time.Second,
			CallDelay:     time.Second,
			AreaCallDelay: 500 * time.Millisecond,
		},
		Geocoder: GeocoderConfig{
			// Host only: the client appends the /geo/1.0/direct path.
			BaseURL:   "https://api.openweathermap.org",
			Timeout:   15 * time.Second,
			CallDelay: 1100 * time.Millisecond,
		},
		Enrichment: EnrichmentConfig{
			ArtistBatchSize: 50,
			AlbumBatchSize:  20,
			MBZBatchSize:    10,
			CityBatchSize:   50,
			Workers:         5,
			RecencyWindow:   48 * time.Hour,
			FailureTTL:      7 * 24 * time.Hour,
			RetryAttempts:   3,
			RetryDelay:      60 * time.Second,
		},
		Ingest: IngestConfig{
			Interval:   6 * time.Hour,
			CursorPath: "data/cursor/spotify_recently_played.json",
			PageLimit:  50,
			Timezone:   "UTC",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    ":9102",
		},
	}
}
