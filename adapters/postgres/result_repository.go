package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"phasegrid/domain/core"
	"phasegrid/domain/phases"
	"phasegrid/domain/plates"
	"phasegrid/ports"
)

// resultRepository implements the ResultRepository interface
type resultRepository struct {
	db *sqlx.DB
}

// NewResultRepository creates a new result repository
func NewResultRepository(db *sqlx.DB) ports.ResultRepository {
	return &resultRepository{db: db}
}

// Connect opens a postgres connection pool from a database URL and ensures
// the result schema exists
func Connect(url string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := Bootstrap(context.Background(), db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// CreateRun inserts a new analysis run
func (r *resultRepository) CreateRun(ctx context.Context, run *ports.AnalysisRun) error {
	query := `INSERT INTO analysis_runs (id, started_at, plates, curves)
		VALUES ($1, $2, $3, $4)`

	_, err := r.db.ExecContext(ctx, query, run.ID, run.StartedAt.Time(), run.Plates, run.Curves)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// FinishRun stamps the run complete and records its final curve count
func (r *resultRepository) FinishRun(ctx context.Context, run *ports.AnalysisRun) error {
	query := `UPDATE analysis_runs SET finished_at = $2, curves = $3 WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, run.ID, run.FinishedAt.Time(), run.Curves)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return core.ErrRunNotFound
	}
	return nil
}

// GetRun retrieves an analysis run by its ID
func (r *resultRepository) GetRun(ctx context.Context, id core.RunID) (*ports.AnalysisRun, error) {
	query := `SELECT id, started_at, COALESCE(finished_at, started_at) AS finished_at, plates, curves
		FROM analysis_runs WHERE id = $1`

	var row struct {
		ID         string `db:"id"`
		StartedAt  sql.NullTime `db:"started_at"`
		FinishedAt sql.NullTime `db:"finished_at"`
		Plates     int    `db:"plates"`
		Curves     int    `db:"curves"`
	}
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, core.ErrRunNotFound
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	run := &ports.AnalysisRun{
		ID:     core.RunID(row.ID),
		Plates: row.Plates,
		Curves: row.Curves,
	}
	if row.StartedAt.Valid {
		run.StartedAt = core.Timestamp(row.StartedAt.Time)
	}
	if row.FinishedAt.Valid {
		run.FinishedAt = core.Timestamp(row.FinishedAt.Time)
	}
	return run, nil
}

// ListRuns retrieves runs ordered newest first
func (r *resultRepository) ListRuns(ctx context.Context, limit, offset int) ([]*ports.AnalysisRun, error) {
	query := `SELECT id, started_at, COALESCE(finished_at, started_at) AS finished_at, plates, curves
		FROM analysis_runs ORDER BY started_at DESC LIMIT $1 OFFSET $2`

	rows, err := r.db.QueryxContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*ports.AnalysisRun
	for rows.Next() {
		var row struct {
			ID         string       `db:"id"`
			StartedAt  sql.NullTime `db:"started_at"`
			FinishedAt sql.NullTime `db:"finished_at"`
			Plates     int          `db:"plates"`
			Curves     int          `db:"curves"`
		}
		if err := rows.StructScan(&row); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run := &ports.AnalysisRun{ID: core.RunID(row.ID), Plates: row.Plates, Curves: row.Curves}
		if row.StartedAt.Valid {
			run.StartedAt = core.Timestamp(row.StartedAt.Time)
		}
		if row.FinishedAt.Valid {
			run.FinishedAt = core.Timestamp(row.FinishedAt.Time)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// SavePhaseGrid upserts one plate's phase grid as a JSONB payload
func (r *resultRepository) SavePhaseGrid(ctx context.Context, runID core.RunID, plate int, grid *plates.PhaseGrid) error {
	payload, err := json.Marshal(grid)
	if err != nil {
		return fmt.Errorf("failed to marshal phase grid: %w", err)
	}

	query := `INSERT INTO phase_grids (run_id, plate, payload)
		VALUES ($1, $2, $3)
		ON CONFLICT (run_id, plate) DO UPDATE SET payload = EXCLUDED.payload`

	if _, err := r.db.ExecContext(ctx, query, runID, plate, payload); err != nil {
		return fmt.Errorf("failed to save phase grid: %w", err)
	}
	return nil
}

// GetPhaseGrid retrieves one plate's phase grid
func (r *resultRepository) GetPhaseGrid(ctx context.Context, runID core.RunID, plate int) (*plates.PhaseGrid, error) {
	query := `SELECT payload FROM phase_grids WHERE run_id = $1 AND plate = $2`

	var payload []byte
	if err := r.db.GetContext(ctx, &payload, query, runID, plate); err != nil {
		if err == sql.ErrNoRows {
			return nil, core.ErrPlateNotFound
		}
		return nil, fmt.Errorf("failed to get phase grid: %w", err)
	}

	var grid plates.PhaseGrid
	if err := json.Unmarshal(payload, &grid); err != nil {
		return nil, fmt.Errorf("failed to unmarshal phase grid: %w", err)
	}
	return &grid, nil
}

// SaveMetaPhenotype upserts one meta-phenotype plate array. Non-finite cells
// survive the round trip via the string encoding the grid marshals with.
func (r *resultRepository) SaveMetaPhenotype(ctx context.Context, runID core.RunID, plate int, kind phases.MetaPhenotype, grid *plates.FloatGrid) error {
	payload, err := json.Marshal(grid)
	if err != nil {
		return fmt.Errorf("failed to marshal %s array: %w", kind, err)
	}

	query := `INSERT INTO meta_phenotypes (run_id, plate, kind, payload)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (run_id, plate, kind) DO UPDATE SET payload = EXCLUDED.payload`

	if _, err := r.db.ExecContext(ctx, query, runID, plate, kind, payload); err != nil {
		return fmt.Errorf("failed to save %s array: %w", kind, err)
	}
	return nil
}

// GetMetaPhenotype retrieves one meta-phenotype plate array
func (r *resultRepository) GetMetaPhenotype(ctx context.Context, runID core.RunID, plate int, kind phases.MetaPhenotype) (*plates.FloatGrid, error) {
	query := `SELECT payload FROM meta_phenotypes WHERE run_id = $1 AND plate = $2 AND kind = $3`

	var payload []byte
	if err := r.db.GetContext(ctx, &payload, query, runID, plate, kind); err != nil {
		if err == sql.ErrNoRows {
			return nil, core.NewNotFoundError("meta phenotype", string(kind))
		}
		return nil, fmt.Errorf("failed to get %s array: %w", kind, err)
	}

	var grid plates.FloatGrid
	if err := json.Unmarshal(payload, &grid); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s array: %w", kind, err)
	}
	return &grid, nil
}

// ListMetaPhenotypes lists the kinds stored for one plate
func (r *resultRepository) ListMetaPhenotypes(ctx context.Context, runID core.RunID, plate int) ([]phases.MetaPhenotype, error) {
	query := `SELECT kind FROM meta_phenotypes WHERE run_id = $1 AND plate = $2 ORDER BY kind`

	var kinds []string
	if err := r.db.SelectContext(ctx, &kinds, query, runID, plate); err != nil {
		return nil, fmt.Errorf("failed to list meta phenotypes: %w", err)
	}

	out := make([]phases.MetaPhenotype, len(kinds))
	for i, k := range kinds {
		out[i] = phases.MetaPhenotype(k)
	}
	return out, nil
}

// SaveTensor upserts one plate's aligned phenotype tensor
func (r *resultRepository) SaveTensor(ctx context.Context, runID core.RunID, plate int, tensor *plates.AlignedTensor) error {
	payload, err := json.Marshal(tensor)
	if err != nil {
		return fmt.Errorf("failed to marshal tensor: %w", err)
	}

	query := `INSERT INTO aligned_tensors (run_id, plate, payload)
		VALUES ($1, $2, $3)
		ON CONFLICT (run_id, plate) DO UPDATE SET payload = EXCLUDED.payload`

	if _, err := r.db.ExecContext(ctx, query, runID, plate, payload); err != nil {
		return fmt.Errorf("failed to save tensor: %w", err)
	}
	return nil
}

// GetTensor retrieves one plate's aligned phenotype tensor
func (r *resultRepository) GetTensor(ctx context.Context, runID core.RunID, plate int) (*plates.AlignedTensor, error) {
	query := `SELECT payload FROM aligned_tensors WHERE run_id = $1 AND plate = $2`

	var payload []byte
	if err := r.db.GetContext(ctx, &payload, query, runID, plate); err != nil {
		if err == sql.ErrNoRows {
			return nil, core.ErrTensorNotFound
		}
		return nil, fmt.Errorf("failed to get tensor: %w", err)
	}

	var tensor plates.AlignedTensor
	if err := json.Unmarshal(payload, &tensor); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tensor: %w", err)
	}
	return &tensor, nil
}
