// Phonographus - Music Listening History Enrichment and Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/phonographus

// Package spotify implements the primary metadata provider client: artist and
// album batch lookups plus the recently-played feed that drives ingestion.
//
// Resilience mechanisms:
//   - Rate limiting: one request per configured call delay (token bucket)
//   - Circuit breaker: opens after repeated failures so a provider outage
//     fails the task fast instead of burning the rate budget
//   - Token refresh: the short-lived access token is refreshed lazily and
//     once more on an unexpected 401
//
// Error classification is part of the client contract: callers branch on
// models.ErrNotFound (record the entity as failed, keep going),
// models.ErrAuth (abort, not retryable) and models.ErrTransient (abort,
// retryable by the task runner).
package spotify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/phonographus/internal/config"
	"github.com/tomtom215/phonographus/internal/logging"
	"github.com/tomtom215/phonographus/internal/metrics"
	"github.com/tomtom215/phonographus/internal/models"
)

// maxErrorBodySize limits how much of an error response body is read for
// diagnostics.
const maxErrorBodySize = 64 * 1024

const serviceName = "spotify"

// Client is the Spotify Web API client. Safe for concurrent use.
type Client struct {
	cfg        config.SpotifyConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[[]byte]

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewClient creates a Spotify client from configuration. The call delay
// becomes the rate limiter interval; a zero delay disables throttling.
func NewClient(cfg config.SpotifyConfig) *Client {
	limit := rate.Inf
	if cfg.CallDelay > 0 {
		limit = rate.Every(cfg.CallDelay)
	}

	cbName := "spotify-api"
	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0)

	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			// Per-entity misses are data outcomes, not provider health.
			return err == nil || errors.Is(err, models.ErrNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(limit, 1),
		breaker:    cb,
	}
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// classifyStatus maps an HTTP status to the client error contract.
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

func readBodyForError(r io.Reader) []byte {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return []byte("(failed to read response body)")
	}
	return body
}

// ensureToken returns a valid access token, refreshing it when absent or
// within a minute of expiry.
func (c *Client) ensureToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Until(c.tokenExpiry) > time.Minute {
		return c.accessToken, nil
	}
	return c.refreshTokenLocked(ctx)
}

// invalidateToken drops the cached token so the next request refreshes.
func (c *Client) invalidateToken() {
	c.mu.Lock()
	c.accessToken = ""
	c.mu.Unlock()
}

func (c *Client) refreshTokenLocked(ctx context.Context) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", c.cfg.RefreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("creating token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: token refresh: %v", models.ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized {
			return "", fmt.Errorf("%w: token refresh rejected with status %d: %s",
				models.ErrAuth, resp.StatusCode, readBodyForError(resp.Body))
		}
		if err := classifyStatus(resp.StatusCode); err != nil {
			return "", fmt.Errorf("%w: token refresh failed with status %d", err, resp.StatusCode)
		}
		return "", fmt.Errorf("token refresh failed with status %d", resp.StatusCode)
	}

	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("decoding token response: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("%w: token response without access_token", models.ErrAuth)
	}

	c.accessToken = tok.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	logging.Debug().Time("expires", c.tokenExpiry).Msg("Spotify access token refreshed")
	return c.accessToken, nil
}

// get performs a rate-limited, breaker-protected GET of an API path and
// decodes the JSON body into result. A single retry handles the token
// expiring between ensureToken and the request.
func (c *Client) get(ctx context.Context, operation, path string, params url.Values, result any) error {
	start := time.Now()
	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.doGet(ctx, path, params)
	})
	metrics.APICallDuration.WithLabelValues(serviceName, operation).Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		metrics.APICallsTotal.WithLabelValues(serviceName, operation, "success").Inc()
	case errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.CircuitBreakerRequests.WithLabelValues(c.breaker.Name(), "rejected").Inc()
		return fmt.Errorf("%w: spotify circuit open: %v", models.ErrTransient, err)
	case errors.Is(err, models.ErrNotFound):
		metrics.APICallsTotal.WithLabelValues(serviceName, operation, "not_found").Inc()
		return err
	case errors.Is(err, models.ErrAuth):
		metrics.APICallsTotal.WithLabelValues(serviceName, operation, "auth").Inc()
		return err
	case errors.Is(err, models.ErrTransient):
		metrics.APICallsTotal.WithLabelValues(serviceName, operation, "transient").Inc()
		return err
	default:
		metrics.APICallsTotal.WithLabelValues(serviceName, operation, "error").Inc()
		return err
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("decoding %s response: %w", operation, err)
	}
	return nil
}

func (c *Client) doGet(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, status, err := c.requestOnce(ctx, path, params)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized {
		// Token expired mid-flight: refresh once and retry.
		c.invalidateToken()
		body, status, err = c.requestOnce(ctx, path, params)
		if err != nil {
			return nil, err
		}
	}

	if status != http.StatusOK {
		if cerr := classifyStatus(status); cerr != nil {
			return nil, fmt.Errorf("%w: GET %s returned status %d", cerr, path, status)
		}
		return nil, fmt.Errorf("GET %s returned status %d: %s", path, status, body)
	}
	return body, nil
}

func (c *Client) requestOnce(ctx context.Context, path string, params url.Values) ([]byte, int, error) {
	token, err := c.ensureToken(ctx)
	if err != nil {
		return nil, 0, err
	}

	reqURL := c.cfg.BaseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, 0, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: GET %s: %v", models.ErrTransient, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return readBodyForError(resp.Body), resp.StatusCode, nil
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: reading response body: %v", models.ErrTransient, err)
	}
	return body, resp.StatusCode, nil
}
