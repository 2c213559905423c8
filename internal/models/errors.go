// Phonographus - Music Listening History Enrichment and Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/phonographus

package models

import "errors"

// Error taxonomy for external lookups and storage access. Clients classify
// every failure into exactly one of these so processors can apply a uniform
// policy: record NotFound and continue, retry Transient with a bounded fixed
// delay, abort the whole cycle on Auth or storage errors.
var (
	// ErrNotFound means the provider has no record for the key. Expected,
	// terminal for that entity, recorded in the failure table, never retried
	// within the failure TTL.
	ErrNotFound = errors.New("not found")

	// ErrTransient wraps network errors and provider 5xx responses.
	// Retryable at the processor level.
	ErrTransient = errors.New("transient error")

	// ErrAuth means credentials were rejected. Fatal for the cycle: retrying
	// will not fix bad credentials.
	ErrAuth = errors.New("authentication failed")

	// ErrStoreUnreachable means the columnar store could not be read or
	// written. Fatal for the cycle.
	ErrStoreUnreachable = errors.New("store unreachable")
)

// IsNotFound reports whether err is a terminal per-entity lookup miss.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsTransient reports whether err is retryable.
func IsTransient(err error) bool { return errors.Is(err, ErrTransient) }

// IsAuth reports whether err is a fatal credential failure.
func IsAuth(err error) bool { return errors.Is(err, ErrAuth) }
