// Phonographus - Music Listening History Enrichment and Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/phonographus

package transform

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/tomtom215/phonographus/internal/logging"
	"github.com/tomtom215/phonographus/internal/models"
	"github.com/tomtom215/phonographus/internal/store"
)

// Materializer builds the analytical model set inside a persistent DuckDB
// database. The raw parquet tables stay the source of truth; the database
// file is disposable output and can always be rebuilt from them.
type Materializer struct {
	dbPath string
	store  *store.Writer
	models []Model
}

// NewMaterializer wires the default model set against the given store.
// dbPath is the DuckDB database file; it is created on first run.
func NewMaterializer(dbPath string, st *store.Writer) *Materializer {
	return &Materializer{dbPath: dbPath, store: st, models: ModelSet()}
}

// Run materializes every model in order and reports how many relations were
// created, refreshed, or rebuilt. Any model failure aborts the run: a half
// built model set is worse than a stale one, and the next run starts clean
// because refresh is wholesale.
func (m *Materializer) Run(ctx context.Context) models.Result {
	db, err := sql.Open("duckdb", m.dbPath)
	if err != nil {
		return models.ErrorResult("transform failed", fmt.Sprintf("open database: %v", err))
	}
	defer db.Close()

	if err := m.createSourceViews(ctx, db); err != nil {
		return models.ErrorResult("transform failed", err.Error())
	}

	counts := map[string]int{}
	for _, model := range m.models {
		action, err := m.materialize(ctx, db, model)
		if err != nil {
			return models.ErrorResult("transform failed",
				fmt.Sprintf("model %s: %v", model.Name, err))
		}
		counts[action]++
		logging.Debug().
			Str("model", model.Name).
			Str("materialization", string(model.Materialization)).
			Str("action", action).
			Msg("Materialized model")
	}

	logging.Info().
		Int("models", len(m.models)).
		Int("refreshed", counts["refreshed"]).
		Int("rebuilt", counts["rebuilt"]).
		Int("created", counts["created"]).
		Msg("Transform complete")
	return models.SuccessResult("transform complete", map[string]any{
		"models":    len(m.models),
		"views":     counts["view"],
		"created":   counts["created"],
		"refreshed": counts["refreshed"],
		"rebuilt":   counts["rebuilt"],
	})
}

// createSourceViews exposes each raw table as src_<name>. Tables that have
// not been written yet become views over an empty relation with the full
// column set, so staging models always resolve.
func (m *Materializer) createSourceViews(ctx context.Context, db *sql.DB) error {
	for _, src := range sourceTables {
		body := src.emptySQL
		if m.store.TableExists(src.name) {
			body = fmt.Sprintf("SELECT * FROM read_parquet(%s, union_by_name=true)",
				sqlString(m.store.TableGlob(src.name)))
		}
		stmt := fmt.Sprintf("CREATE OR REPLACE VIEW %s AS %s", quote("src_"+src.name), body)
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("source view src_%s: %w", src.name, err)
		}
	}
	return nil
}

// materialize turns one model into a relation and names what it did:
// "view" for view models, and "created", "refreshed", or "rebuilt" for
// table models depending on what it found in the database.
func (m *Materializer) materialize(ctx context.Context, db *sql.DB, model Model) (string, error) {
	switch model.Materialization {
	case MaterializeView:
		stmt := fmt.Sprintf("CREATE OR REPLACE VIEW %s AS %s", quote(model.Name), model.SQL)
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return "", err
		}
		return "view", nil
	case MaterializeTable:
		return m.materializeTable(ctx, db, model)
	default:
		return "", fmt.Errorf("unknown materialization %q", model.Materialization)
	}
}

// materializeTable refreshes a persisted model. Absent tables are created
// from the SELECT. Existing tables whose columns still match are emptied
// and reloaded, keeping the relation's identity stable for anything that
// references it. A column drift drops and recreates the table, since an
// in-place reload cannot change shape.
func (m *Materializer) materializeTable(ctx context.Context, db *sql.DB, model Model) (string, error) {
	exists, err := tableExists(ctx, db, model.Name)
	if err != nil {
		return "", err
	}
	if !exists {
		stmt := fmt.Sprintf("CREATE TABLE %s AS %s", quote(model.Name), model.SQL)
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return "", err
		}
		return "created", nil
	}

	match, err := m.schemaMatches(ctx, db, model)
	if err != nil {
		return "", err
	}
	if !match {
		logging.Warn().Str("model", model.Name).Msg("Model schema changed, rebuilding table")
		if _, err := db.ExecContext(ctx, fmt.Sprintf("DROP TABLE %s", quote(model.Name))); err != nil {
			return "", err
		}
		stmt := fmt.Sprintf("CREATE TABLE %s AS %s", quote(model.Name), model.SQL)
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return "", err
		}
		return "rebuilt", nil
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf("TRUNCATE %s", quote(model.Name))); err != nil {
		return "", err
	}
	stmt := fmt.Sprintf("INSERT INTO %s %s", quote(model.Name), model.SQL)
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		return "", err
	}
	return "refreshed", nil
}

// schemaMatches probes the model's SELECT through a temporary view and
// compares its column names and types against the stored table. Names
// compare case-insensitively, matching how DuckDB resolves identifiers.
func (m *Materializer) schemaMatches(ctx context.Context, db *sql.DB, model Model) (bool, error) {
	probe := fmt.Sprintf("CREATE OR REPLACE TEMP VIEW __schema_probe AS %s", model.SQL)
	if _, err := db.ExecContext(ctx, probe); err != nil {
		return false, fmt.Errorf("probe view: %w", err)
	}
	defer db.ExecContext(ctx, "DROP VIEW IF EXISTS __schema_probe")

	want, err := describeColumns(ctx, db, "__schema_probe")
	if err != nil {
		return false, err
	}
	have, err := describeColumns(ctx, db, model.Name)
	if err != nil {
		return false, err
	}
	if len(want) != len(have) {
		return false, nil
	}
	for i := range want {
		if want[i] != have[i] {
			return false, nil
		}
	}
	return true, nil
}

func describeColumns(ctx context.Context, db *sql.DB, relation string) ([]string, error) {
	rows, err := db.QueryContext(ctx,
		fmt.Sprintf("SELECT column_name, column_type FROM (DESCRIBE %s)", quote(relation)))
	if err != nil {
		return nil, fmt.Errorf("describe %s: %w", relation, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var name, typ string
		if err := rows.Scan(&name, &typ); err != nil {
			return nil, err
		}
		cols = append(cols, strings.ToLower(name)+" "+typ)
	}
	return cols, rows.Err()
}

func tableExists(ctx context.Context, db *sql.DB, name string) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx,
		"SELECT count(*) FROM information_schema.tables WHERE table_name = ? AND table_type = 'BASE TABLE'",
		name).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("lookup table %s: %w", name, err)
	}
	return n > 0, nil
}

func quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func sqlString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
