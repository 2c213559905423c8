// Phonographus - Music Listening History Enrichment and Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/phonographus

package models

// Status classifies the outcome of one task cycle.
type Status string

// Task cycle outcomes. The external scheduler maps these to exit codes:
// success, no_updates and partial_success exit 0; error exits 1.
const (
	// StatusSuccess means the cycle completed with zero failures.
	StatusSuccess Status = "success"

	// StatusPartialSuccess means at least one entity succeeded and at least
	// one failed. Successful results were persisted; failures were recorded.
	StatusPartialSuccess Status = "partial_success"

	// StatusNoUpdates means there was no work to do. This is the normal
	// outcome for most schedule ticks and is not an error.
	StatusNoUpdates Status = "no_updates"

	// StatusError means zero entities succeeded, or the cycle hit an
	// unrecoverable condition (bad credentials, unreachable store).
	StatusError Status = "error"
)

// Result is the single JSON document a task emits on stdout for the external
// scheduler. The shape is a fixed contract: {status, message, data, errors}.
type Result struct {
	Status  Status         `json:"status"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data"`
	Errors  []string       `json:"errors"`

	// Retryable marks an error result as transient (network, 5xx): the task
	// runner may re-run the cycle after the failure-retry delay. Not part of
	// the wire contract.
	Retryable bool `json:"-"`
}

// SuccessResult creates a success result.
func SuccessResult(message string, data map[string]any) Result {
	return Result{Status: StatusSuccess, Message: message, Data: data}
}

// PartialSuccessResult creates a partial-success result carrying the
// per-entity error strings.
func PartialSuccessResult(message string, data map[string]any, errs []string) Result {
	return Result{Status: StatusPartialSuccess, Message: message, Data: data, Errors: errs}
}

// NoUpdatesResult creates a no-updates result.
func NoUpdatesResult(message string) Result {
	return Result{Status: StatusNoUpdates, Message: message}
}

// ErrorResult creates an error result.
func ErrorResult(message string, errs ...string) Result {
	return Result{Status: StatusError, Message: message, Errors: errs}
}

// TransientErrorResult creates an error result the runner is allowed to
// retry after the failure-retry delay.
func TransientErrorResult(message string, errs ...string) Result {
	r := ErrorResult(message, errs...)
	r.Retryable = true
	return r
}

// ExitCode maps a result status to the process exit code expected by the
// scheduler. Partial success is acceptable: persisted rows stay persisted and
// the failures are visible in Errors and the failure table.
func (r Result) ExitCode() int {
	if r.Status == StatusError {
		return 1
	}
	return 0
}
