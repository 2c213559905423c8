// Phonographus - Music Listening History Enrichment and Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/phonographus

// Package transform materializes the analytical model set: staging views
// over the raw parquet tables, conformed dimensions, and the play fact
// table, all inside a DuckDB database file.
//
// Models are declarative: a name, a materialization, and a SELECT. The
// materializer owns how a model becomes a relation; models never contain
// DDL. Running the whole set twice against unchanged inputs produces
// identical tables - every surrogate key is a deterministic hash of natural
// keys, and table refresh replaces contents wholesale.
package transform

import (
	"fmt"
	"strings"
)

// Materialization selects how a model manifests in the database.
type Materialization string

const (
	// MaterializeView recreates the model as a view on every run.
	MaterializeView Materialization = "view"

	// MaterializeTable persists the model's rows: refreshed in place when
	// the schema still matches, rebuilt from scratch when it drifted.
	MaterializeTable Materialization = "table"
)

// Model is one declarative relation in the dependency-ordered model set.
type Model struct {
	Name            string
	Materialization Materialization
	SQL             string
}

// SurrogateKey renders the deterministic key expression: an MD5 over the
// natural-key columns joined with a separator that cannot appear in ids.
//
// Values are hashed exactly as stored - no trimming, no case folding. Two
// tuples differing by a trailing space are two keys; cleaning source data is
// the enrichment layer's job, not the hash's.
func SurrogateKey(cols ...string) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = fmt.Sprintf("coalesce(cast(%s AS VARCHAR), '')", c)
	}
	return fmt.Sprintf("md5(concat_ws('||', %s))", strings.Join(parts, ", "))
}
