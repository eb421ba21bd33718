package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rockladyeagles/polarmodel/internal/engine"
)

// Run summarizes one stored simulation.
type Run struct {
	ID              string          `json:"id"`
	CreatedAt       time.Time       `json:"created_at"`
	Params          engine.Params   `json:"params"`
	Steps           int             `json:"steps"`
	Edges           int             `json:"edges"`
	GraphAttempts   int             `json:"graph_attempts"`
	MeanDegree      float64         `json:"mean_degree"`
	FinalDispersion float64         `json:"final_dispersion"`
	Stats           engine.SimStats `json:"stats"`
	Duration        time.Duration   `json:"duration"`
	Columns         []string        `json:"columns"`
}

// NewRun describes a finished simulation under a fresh ID.
func NewRun(sim *engine.Simulation, elapsed time.Duration) Run {
	final := 0.0
	if rec, ok := sim.Collector().Last(); ok {
		final = rec[engine.DispersionName]
	}
	return Run{
		ID:              uuid.NewString(),
		CreatedAt:       time.Now().UTC(),
		Params:          sim.Params,
		Steps:           sim.Steps(),
		Edges:           sim.Graph.Edges(),
		GraphAttempts:   sim.Graph.Attempts(),
		MeanDegree:      sim.Graph.MeanDegree(),
		FinalDispersion: final,
		Stats:           sim.Stats(),
		Duration:        elapsed,
		Columns:         sim.Collector().Columns(),
	}
}

type runRow struct {
	ID              string  `db:"id"`
	CreatedAt       int64   `db:"created_at"`
	MaxSteps        int     `db:"max_steps"`
	Agents          int     `db:"agents"`
	Issues          int     `db:"issues"`
	Cthresh         float64 `db:"cthresh"`
	EdgeProb        float64 `db:"edge_prob"`
	Seed            int64   `db:"seed"`
	Steps           int     `db:"steps"`
	Edges           int     `db:"edges"`
	GraphAttempts   int     `db:"graph_attempts"`
	MeanDegree      float64 `db:"mean_degree"`
	FinalDispersion float64 `db:"final_dispersion"`
	Persuaded       int     `db:"persuaded"`
	Rejected        int     `db:"rejected"`
	Isolated        int     `db:"isolated"`
	DurationMS      int64   `db:"duration_ms"`
	ColumnsJSON     string  `db:"columns_json"`
}

func (r runRow) run() (Run, error) {
	var cols []string
	if err := json.Unmarshal([]byte(r.ColumnsJSON), &cols); err != nil {
		return Run{}, fmt.Errorf("run %s columns: %w", r.ID, err)
	}
	return Run{
		ID:        r.ID,
		CreatedAt: time.UnixMilli(r.CreatedAt).UTC(),
		Params: engine.Params{
			MaxSteps: r.MaxSteps,
			Agents:   r.Agents,
			Issues:   r.Issues,
			Cthresh:  r.Cthresh,
			EdgeProb: r.EdgeProb,
			Seed:     r.Seed,
		},
		Steps:           r.Steps,
		Edges:           r.Edges,
		GraphAttempts:   r.GraphAttempts,
		MeanDegree:      r.MeanDegree,
		FinalDispersion: r.FinalDispersion,
		Stats:           engine.SimStats{Persuaded: r.Persuaded, Rejected: r.Rejected, Isolated: r.Isolated},
		Duration:        time.Duration(r.DurationMS) * time.Millisecond,
		Columns:         cols,
	}, nil
}

const runColumns = `id, created_at, max_steps, agents, issues, cthresh, edge_prob, seed,
	steps, edges, graph_attempts, mean_degree, final_dispersion,
	persuaded, rejected, isolated, duration_ms, columns_json`

// SaveRun writes a run and its full table in one transaction.
func (db *DB) SaveRun(run Run, t engine.Table) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if len(run.Columns) == 0 {
		run.Columns = t.Columns
	}
	colsJSON, err := json.Marshal(run.Columns)
	if err != nil {
		return fmt.Errorf("marshal columns: %w", err)
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	p := run.Params
	_, err = tx.Exec(`INSERT INTO runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.CreatedAt.UnixMilli(), p.MaxSteps, p.Agents, p.Issues, p.Cthresh, p.EdgeProb, p.Seed,
		run.Steps, run.Edges, run.GraphAttempts, run.MeanDegree, run.FinalDispersion,
		run.Stats.Persuaded, run.Stats.Rejected, run.Stats.Isolated,
		run.Duration.Milliseconds(), string(colsJSON),
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}

	stmt, err := tx.Preparex("INSERT INTO samples (run_id, step, name, value) VALUES (?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for step, row := range t.Rows {
		for j, v := range row {
			if _, err := stmt.Exec(run.ID, step, t.Columns[j], v); err != nil {
				return fmt.Errorf("insert sample %s step %d: %w", run.ID, step, err)
			}
		}
	}

	if _, err := tx.Exec("INSERT OR REPLACE INTO meta (key, value) VALUES ('last_run', ?)", run.ID); err != nil {
		return fmt.Errorf("save meta: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	slog.Info("run saved", "id", run.ID, "steps", t.Len(), "samples", t.Len()*len(t.Columns))
	return nil
}

// LoadRun returns the stored run with the given ID.
func (db *DB) LoadRun(id string) (Run, error) {
	var row runRow
	err := db.conn.Get(&row, "SELECT "+runColumns+" FROM runs WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("load run %s: %w", id, err)
	}
	return row.run()
}

// ListRuns returns the most recent runs, newest first.
func (db *DB) ListRuns(limit int) ([]Run, error) {
	var rows []runRow
	err := db.conn.Select(&rows,
		"SELECT "+runColumns+" FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?",
		clampLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	runs := make([]Run, 0, len(rows))
	for _, r := range rows {
		run, err := r.run()
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, nil
}

// LoadTable rebuilds the table saved with a run.
func (db *DB) LoadTable(id string) (engine.Table, error) {
	run, err := db.LoadRun(id)
	if err != nil {
		return engine.Table{}, err
	}

	col := make(map[string]int, len(run.Columns))
	for i, c := range run.Columns {
		col[c] = i
	}

	var samples []struct {
		Step  int     `db:"step"`
		Name  string  `db:"name"`
		Value float64 `db:"value"`
	}
	err = db.conn.Select(&samples,
		"SELECT step, name, value FROM samples WHERE run_id = ? ORDER BY step",
		id,
	)
	if err != nil {
		return engine.Table{}, fmt.Errorf("load samples %s: %w", id, err)
	}

	var rows [][]float64
	for _, s := range samples {
		for len(rows) <= s.Step {
			rows = append(rows, make([]float64, len(run.Columns)))
		}
		if j, ok := col[s.Name]; ok {
			rows[s.Step][j] = s.Value
		}
	}
	return engine.Table{Columns: run.Columns, Rows: rows}, nil
}

// DeleteRun removes a run and its samples.
func (db *DB) DeleteRun(id string) error {
	res, err := db.conn.Exec("DELETE FROM runs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete run %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return nil
}
