// Phonographus - Music Listening History Enrichment and Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/phonographus

// Package main is the Phonographus task entry point.
//
// Phonographus enriches a personal music listening history: it ingests
// recently-played events from Spotify, enriches artists and albums through
// the Spotify catalog, resolves artist origins through MusicBrainz, derives
// geography and coordinates for those origins, and materializes an
// analytical model set in DuckDB.
//
// Each invocation runs exactly one task and exits; an external scheduler
// (cron, systemd timers) owns cadence. The task's result is a single JSON
// document on stdout ({status, message, data, errors}); logs go to stderr.
//
//	phonographus [flags] <task>
//
// Tasks:
//
//	ingest-spotify          Pull recently-played events into the store
//	enrich-spotify-artists  Fetch catalog metadata for unenriched artists
//	enrich-spotify-albums   Fetch catalog metadata for unenriched albums
//	enrich-mbz-artists      Resolve artists to MusicBrainz via ISRC
//	enrich-mbz-areas        Walk area hierarchies for resolved artists
//	enrich-geo-areas        Derive continent and place names (offline)
//	enrich-geo-coordinates  Geocode derived places to lat/long
//	transform               Rebuild the analytical model set
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins): environment variables (PHONO_ prefix), config.yaml, then
// built-in defaults. Credentials only ever come from the environment or the
// config file; no flags carry secrets.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/goccy/go-json"

	"github.com/tomtom215/phonographus/internal/config"
	"github.com/tomtom215/phonographus/internal/enrich"
	"github.com/tomtom215/phonographus/internal/geocode"
	"github.com/tomtom215/phonographus/internal/ingest"
	"github.com/tomtom215/phonographus/internal/logging"
	"github.com/tomtom215/phonographus/internal/metrics"
	"github.com/tomtom215/phonographus/internal/models"
	"github.com/tomtom215/phonographus/internal/musicbrainz"
	"github.com/tomtom215/phonographus/internal/query"
	"github.com/tomtom215/phonographus/internal/spotify"
	"github.com/tomtom215/phonographus/internal/store"
	"github.com/tomtom215/phonographus/internal/task"
	"github.com/tomtom215/phonographus/internal/transform"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath = flag.String("config", "", "path to config.yaml (overrides default search paths)")
		limit      = flag.Int("limit", 0, "cap on entities processed this run (0 = unbounded)")
		batchSize  = flag.Int("batch-size", 0, "override the task's configured batch size")
		workers    = flag.Int("workers", 0, "override the configured worker count for concurrent lookups")
	)
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() != 1 {
		usage()
		return 2
	}
	taskName := flag.Arg(0)

	if *configPath != "" {
		os.Setenv(config.ConfigPathEnvVar, *configPath)
	}

	cfg, err := config.Load()
	if err != nil {
		logging.Error().Err(err).Msg("Failed to load configuration")
		return emitWiringFailure("loading configuration", err)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.NewWriter(cfg.Store.Path)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to open store")
		return emitWiringFailure("opening store", err)
	}
	defer st.Close()

	if *batchSize > 0 {
		// Spotify batch endpoints have hard per-request caps.
		cfg.Enrichment.ArtistBatchSize = min(*batchSize, spotify.MaxArtistBatch)
		cfg.Enrichment.AlbumBatchSize = min(*batchSize, spotify.MaxAlbumBatch)
		cfg.Enrichment.MBZBatchSize = *batchSize
		cfg.Enrichment.CityBatchSize = *batchSize
	}
	if *workers > 0 {
		cfg.Enrichment.Workers = *workers
	}

	t, cleanup, err := buildTask(cfg, st, taskName, *limit)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to build task")
		usage()
		return emitWiringFailure("building task", err)
	}
	defer cleanup()

	if cfg.Metrics.Enabled {
		srv := metrics.NewServer(cfg.Metrics.Addr)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.Warn().Err(err).Msg("Metrics server stopped")
			}
		}()
		defer srv.Close()
	}

	logging.Info().
		Str("task", taskName).
		Str("store", cfg.Store.Path).
		Int("limit", *limit).
		Msg("Starting Phonographus task")

	runner := task.NewRunner(cfg.Enrichment.RetryAttempts, cfg.Enrichment.RetryDelay)
	return runner.Execute(ctx, t)
}

// buildTask wires the named task's dependency graph and returns a cleanup
// releasing the query engine. Clients are constructed lazily per task so one
// misconfigured provider cannot break the others.
func buildTask(cfg *config.Config, st *store.Writer, name string, limit int) (task.Task, func(), error) {
	eng, err := query.NewEngine(st, cfg.Enrichment.RecencyWindow, cfg.Enrichment.FailureTTL)
	if err != nil {
		return nil, nil, fmt.Errorf("query engine: %w", err)
	}
	cleanup := func() {
		if err := eng.Close(); err != nil {
			logging.Warn().Err(err).Msg("Error closing query engine")
		}
	}
	failures := enrich.NewFailureTracker(st)

	withLimit := func(p interface {
		Process(ctx context.Context, limit int) models.Result
	}) func(context.Context) models.Result {
		return func(ctx context.Context) models.Result { return p.Process(ctx, limit) }
	}

	var fn func(context.Context) models.Result
	switch name {
	case "ingest-spotify":
		ing, err := ingest.NewIngester(st, spotify.NewClient(cfg.Spotify), cfg.Ingest)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("ingester: %w", err)
		}
		fn = ing.Run
	case "enrich-spotify-artists":
		fn = withLimit(enrich.NewSpotifyArtistProcessor(st, eng, failures,
			spotify.NewClient(cfg.Spotify), cfg.Enrichment.ArtistBatchSize))
	case "enrich-spotify-albums":
		fn = withLimit(enrich.NewSpotifyAlbumProcessor(st, eng, failures,
			spotify.NewClient(cfg.Spotify), cfg.Enrichment.AlbumBatchSize))
	case "enrich-mbz-artists":
		fn = withLimit(enrich.NewMBZArtistProcessor(st, eng, failures,
			musicbrainz.NewClient(cfg.MusicBrainz), cfg.Enrichment.MBZBatchSize))
	case "enrich-mbz-areas":
		fn = withLimit(enrich.NewMBZAreaProcessor(st, eng, failures,
			musicbrainz.NewClient(cfg.MusicBrainz), cfg.Enrichment.MBZBatchSize))
	case "enrich-geo-areas":
		fn = withLimit(enrich.NewGeoAreaProcessor(st, eng))
	case "enrich-geo-coordinates":
		fn = withLimit(enrich.NewGeoCoordinateProcessor(st, eng, failures,
			geocode.NewClient(cfg.Geocoder), cfg.Enrichment.CityBatchSize, cfg.Enrichment.Workers))
	case "transform":
		fn = transform.NewMaterializer(cfg.Database.Path, st).Run
	default:
		cleanup()
		return nil, nil, fmt.Errorf("no task named %q", name)
	}
	return task.Func{TaskName: name, Fn: fn}, cleanup, nil
}

// emitWiringFailure keeps the stdout contract intact when the process dies
// before the runner exists: exactly one error-result document, exit 1.
func emitWiringFailure(what string, err error) int {
	return emitWiringFailureTo(os.Stdout, what, err)
}

func emitWiringFailureTo(w io.Writer, what string, err error) int {
	result := models.ErrorResult(fmt.Sprintf("%s failed", what), err.Error())
	if encErr := json.NewEncoder(w).Encode(result); encErr != nil {
		logging.Error().Err(encErr).Msg("Failed to emit result")
	}
	return result.ExitCode()
}

var taskHelp = map[string]string{
	"ingest-spotify":         "pull recently-played events into the store",
	"enrich-spotify-artists": "fetch catalog metadata for unenriched artists",
	"enrich-spotify-albums":  "fetch catalog metadata for unenriched albums",
	"enrich-mbz-artists":     "resolve artists to MusicBrainz via ISRC",
	"enrich-mbz-areas":       "walk area hierarchies for resolved artists",
	"enrich-geo-areas":       "derive continent and place names (offline)",
	"enrich-geo-coordinates": "geocode derived places to lat/long",
	"transform":              "rebuild the analytical model set",
}

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <task>\n\nTasks:\n", os.Args[0])
	names := make([]string, 0, len(taskHelp))
	for n := range taskHelp {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Fprintf(flag.CommandLine.Output(), "  %-24s%s\n", n, taskHelp[n])
	}
	fmt.Fprintf(flag.CommandLine.Output(), "\nFlags:\n")
	flag.PrintDefaults()
}
