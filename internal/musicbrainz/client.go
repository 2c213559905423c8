// Phonographus - Music Listening History Enrichment and Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/phonographus

// Package musicbrainz implements the secondary metadata provider client:
// ISRC-based artist resolution, artist detail lookup, and the area hierarchy
// walk that turns an area id into a named place chain.
//
// MusicBrainz enforces a strict one-request-per-second policy for regular
// lookups and requires a descriptive User-Agent. Area lookups are lighter and
// run on a separate, faster limiter. Both delays come from configuration so a
// self-hosted mirror can run unthrottled.
package musicbrainz

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

const serviceName = "musicbrainz"

// maxHierarchyDepth bounds the parent walk. Real hierarchies top out around
// six levels; the cap guards against relation cycles the visited set misses
// across renamed ids.
const maxHierarchyDepth = 10

// Client is the MusicBrainz WS/2 client. Safe for concurrent use.
type Client struct {
	baseURL     string
	userAgent   string
	httpClient  *http.Client
	limiter     *rate.Limiter
	areaLimiter *rate.Limiter
}

// NewClient creates a MusicBrainz client from configuration.
func NewClient(cfg config.MusicBrainzConfig) *Client {
	lookup := rate.Inf
	if cfg.CallDelay > 0 {
		lookup = rate.Every(cfg.CallDelay)
	}
	area := rate.Inf
	if cfg.AreaCallDelay > 0 {
		area = rate.Every(cfg.AreaCallDelay)
	}
	return &Client{
		baseURL:     cfg.BaseURL,
		userAgent:   cfg.UserAgent,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		limiter:     rate.NewLimiter(lookup, 1),
		areaLimiter: rate.NewLimiter(area, 1),
	}
}

func classifyStatus(status int) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return models.ErrAuth
	case status == http.StatusNotFound:
		return models.ErrNotFound
	case status == http.StatusTooManyRequests || status >= 500:
		return models.ErrTransient
	default:
		return nil
	}
}

// get performs a rate-limited JSON lookup against a WS/2 path.
func (c *Client) get(ctx context.Context, limiter *rate.Limiter, operation, path string, params url.Values, result any) error {
	if err := limiter.Wait(ctx); err != nil {
		return err
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set("fmt", "json")
	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.APICallDuration.WithLabelValues(serviceName, operation).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.APICallsTotal.WithLabelValues(serviceName, operation, "transient").Inc()
		return fmt.Errorf("%w: GET %s: %v", models.ErrTransient, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if cerr := classifyStatus(resp.StatusCode); cerr != nil {
			outcome := "error"
			switch cerr {
			case models.ErrNotFound:
				outcome = "not_found"
			case models.ErrAuth:
				outcome = "auth"
			case models.ErrTransient:
				outcome = "transient"
			}
			metrics.APICallsTotal.WithLabelValues(serviceName, operation, outcome).Inc()
			return fmt.Errorf("%w: GET %s returned status %d", cerr, path, resp.StatusCode)
		}
		metrics.APICallsTotal.WithLabelValues(serviceName, operation, "error").Inc()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("GET %s returned status %d: %s", path, resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		metrics.APICallsTotal.WithLabelValues(serviceName, operation, "error").Inc()
		return fmt.Errorf("decoding %s response: %w", operation, err)
	}
	metrics.APICallsTotal.WithLabelValues(serviceName, operation, "success").Inc()
	return nil
}

type isrcResponse struct {
	Recordings []struct {
		ArtistCredit []struct {
			Artist struct {
				ID string `json:"id"`
			} `json:"artist"`
		} `json:"artist-credit"`
	} `json:"recordings"`
}

// ArtistMBIDByISRC resolves an ISRC to the MBID of the recording's primary
// credited artist. Returns models.ErrNotFound when the ISRC is unknown or
// carries no artist credit.
func (c *Client) ArtistMBIDByISRC(ctx context.Context, isrc string) (string, error) {
	params := url.Values{}
	params.Set("inc", "artist-credits")

	var resp isrcResponse
	err := c.get(ctx, c.limiter, "isrc_lookup", "/ws/2/isrc/"+url.PathEscape(isrc), params, &resp)
	if err != nil {
		return "", err
	}

	for _, rec := range resp.Recordings {
		if len(rec.ArtistCredit) > 0 && rec.ArtistCredit[0].Artist.ID != "" {
			return rec.ArtistCredit[0].Artist.ID, nil
		}
	}
	return "", fmt.Errorf("%w: isrc %s has no artist credit", models.ErrNotFound, isrc)
}

type artistResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	SortName string `json:"sort-name"`
	Type     string `json:"type"`
	Country  string `json:"country"`
	Area     *struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"area"`
	BeginArea *struct {
		ID string `json:"id"`
	} `json:"begin-area"`
	LifeSpan struct {
		Begin string `json:"begin"`
		End   string `json:"end"`
	} `json:"life-span"`
	Tags []struct {
		Count int    `json:"count"`
		Name  string `json:"name"`
	} `json:"tags"`
}

// ArtistByID fetches an artist record by MBID, including its highest-voted
// tag.
func (c *Client) ArtistByID(ctx context.Context, mbid string) (models.MBZArtistRecord, error) {
	params := url.Values{}
	params.Set("inc", "tags")

	var resp artistResponse
	err := c.get(ctx, c.limiter, "artist_lookup", "/ws/2/artist/"+url.PathEscape(mbid), params, &resp)
	if err != nil {
		return models.MBZArtistRecord{}, err
	}

	rec := models.MBZArtistRecord{
		MBID:      resp.ID,
		Name:      resp.Name,
		SortName:  resp.SortName,
		Type:      resp.Type,
		Country:   resp.Country,
		BeginDate: resp.LifeSpan.Begin,
		EndDate:   resp.LifeSpan.End,
	}
	if resp.Area != nil {
		rec.AreaID = resp.Area.ID
		rec.AreaName = resp.Area.Name
	}
	if resp.BeginArea != nil {
		rec.BeginAreaID = resp.BeginArea.ID
	}

	best := -1
	for _, tag := range resp.Tags {
		if tag.Count > best {
			best = tag.Count
			rec.TopTag = tag.Name
		}
	}
	return rec, nil
}
