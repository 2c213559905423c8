// Phonographus - Music Listening History Enrichment and Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/phonographus

// Package task runs one named task to completion and emits its result as a
// single JSON document on stdout. Logs go to stderr, so the scheduler can
// parse stdout without filtering.
package task

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/phonographus/internal/logging"
	"github.com/tomtom215/phonographus/internal/metrics"
	"github.com/tomtom215/phonographus/internal/models"
)

// Task is one schedulable unit of work. Run must not panic the process: the
// runner converts panics into error results, but a task should still return
// errors through its Result.
type Task interface {
	Name() string
	Run(ctx context.Context) models.Result
}

// Runner executes a task with the transient-failure retry policy and writes
// the final result to out.
type Runner struct {
	out io.Writer

	// retryAttempts counts re-runs after the first attempt. Zero disables
	// retry entirely.
	retryAttempts int
	retryDelay    time.Duration
}

// NewRunner creates a runner emitting results to stdout.
func NewRunner(retryAttempts int, retryDelay time.Duration) *Runner {
	return &Runner{out: os.Stdout, retryAttempts: retryAttempts, retryDelay: retryDelay}
}

// Execute runs the task, retrying on retryable error results, emits the
// final result JSON, and returns the process exit code.
func (r *Runner) Execute(ctx context.Context, t Task) int {
	result := r.runWithRetry(ctx, t)

	metrics.TaskRunsTotal.WithLabelValues(t.Name(), string(result.Status)).Inc()
	switch result.Status {
	case models.StatusError:
		logging.Error().
			Str("task", t.Name()).
			Strs("errors", result.Errors).
			Msg("Task failed")
	default:
		logging.Info().
			Str("task", t.Name()).
			Str("status", string(result.Status)).
			Msg("Task finished")
	}

	if err := r.emit(result); err != nil {
		logging.Error().Err(err).Msg("Failed to emit task result")
		return 1
	}
	return result.ExitCode()
}

// runWithRetry re-runs the whole task cycle on retryable errors. The retry
// unit is the full cycle, not an individual call: batches merged before the
// failure are already persisted, so a re-run resumes from the shrunken
// missing set rather than redoing finished work.
func (r *Runner) runWithRetry(ctx context.Context, t Task) models.Result {
	var result models.Result

	attempt := 0
	operation := func() error {
		attempt++
		result = r.runOnce(ctx, t)
		if result.Status == models.StatusError && result.Retryable {
			logging.Warn().
				Str("task", t.Name()).
				Int("attempt", attempt).
				Strs("errors", result.Errors).
				Msg("Task hit a transient failure")
			return fmt.Errorf("attempt %d: %s", attempt, result.Message)
		}
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(r.retryDelay), uint64(r.retryAttempts)),
		ctx)
	// The error is already captured in result; backoff's own return adds
	// nothing once retries are exhausted.
	_ = backoff.Retry(operation, policy)
	return result
}

// runOnce executes a single attempt, converting a panic into a non-retryable
// error result. A panicking task has corrupted assumptions somewhere;
// retrying it blind would at best repeat the panic.
func (r *Runner) runOnce(ctx context.Context, t Task) (result models.Result) {
	defer func() {
		if rec := recover(); rec != nil {
			logging.Error().
				Str("task", t.Name()).
				Str("panic", fmt.Sprint(rec)).
				Str("stack", string(debug.Stack())).
				Msg("Task panicked")
			result = models.ErrorResult(fmt.Sprintf("task %s panicked", t.Name()),
				fmt.Sprint(rec))
		}
	}()
	return t.Run(ctx)
}

func (r *Runner) emit(result models.Result) error {
	enc := json.NewEncoder(r.out)
	return enc.Encode(result)
}

// Func adapts a plain function into a Task.
type Func struct {
	TaskName string
	Fn       func(ctx context.Context) models.Result
}

func (f Func) Name() string                          { return f.TaskName }
func (f Func) Run(ctx context.Context) models.Result { return f.Fn(ctx) }
