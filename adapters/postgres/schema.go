package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schemaStatements create the result tables. Payload columns are JSONB; the
// domain types marshal non-finite floats as string sentinels so the payloads
// stay valid JSON.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS analysis_runs (
		id VARCHAR(50) PRIMARY KEY,
		started_at TIMESTAMP WITH TIME ZONE NOT NULL,
		finished_at TIMESTAMP WITH TIME ZONE,
		plates INTEGER NOT NULL DEFAULT 0,
		curves INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS phase_grids (
		run_id VARCHAR(50) NOT NULL REFERENCES analysis_runs(id) ON DELETE CASCADE,
		plate INTEGER NOT NULL,
		payload JSONB NOT NULL,
		PRIMARY KEY (run_id, plate)
	)`,
	`CREATE TABLE IF NOT EXISTS meta_phenotypes (
		run_id VARCHAR(50) NOT NULL REFERENCES analysis_runs(id) ON DELETE CASCADE,
		plate INTEGER NOT NULL,
		kind VARCHAR(100) NOT NULL,
		payload JSONB NOT NULL,
		PRIMARY KEY (run_id, plate, kind)
	)`,
	`CREATE TABLE IF NOT EXISTS aligned_tensors (
		run_id VARCHAR(50) NOT NULL REFERENCES analysis_runs(id) ON DELETE CASCADE,
		plate INTEGER NOT NULL,
		payload JSONB NOT NULL,
		PRIMARY KEY (run_id, plate)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON analysis_runs(started_at DESC)`,
}

// Bootstrap creates the schema when it does not exist yet
func Bootstrap(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to bootstrap schema: %w", err)
		}
	}
	return nil
}
