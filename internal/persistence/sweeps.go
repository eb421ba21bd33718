package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rockladyeagles/polarmodel/internal/sweep"
)

// Sweep summarizes one stored parameter sweep.
type Sweep struct {
	ID        string        `json:"id"`
	CreatedAt time.Time     `json:"created_at"`
	Plan      sweep.Plan    `json:"plan"`
	Runs      int           `json:"runs"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"duration"`
}

// NewSweep describes a finished sweep under a fresh ID.
func NewSweep(plan sweep.Plan, results []sweep.Result, elapsed time.Duration) Sweep {
	failed := 0
	for _, r := range results {
		if r.Failed() {
			failed++
		}
	}
	return Sweep{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Plan:      plan,
		Runs:      len(results),
		Failed:    failed,
		Duration:  elapsed,
	}
}

type sweepRow struct {
	ID         string `db:"id"`
	CreatedAt  int64  `db:"created_at"`
	Variable   string `db:"variable"`
	Runs       int    `db:"runs"`
	Failed     int    `db:"failed"`
	DurationMS int64  `db:"duration_ms"`
	PlanJSON   string `db:"plan_json"`
}

func (r sweepRow) sweep() (Sweep, error) {
	var plan sweep.Plan
	if err := json.Unmarshal([]byte(r.PlanJSON), &plan); err != nil {
		return Sweep{}, fmt.Errorf("sweep %s plan: %w", r.ID, err)
	}
	return Sweep{
		ID:        r.ID,
		CreatedAt: time.UnixMilli(r.CreatedAt).UTC(),
		Plan:      plan,
		Runs:      r.Runs,
		Failed:    r.Failed,
		Duration:  time.Duration(r.DurationMS) * time.Millisecond,
	}, nil
}

type sweepResultRow struct {
	Index           int     `db:"idx"`
	Value           float64 `db:"value"`
	Replicate       int     `db:"replicate"`
	Seed            int64   `db:"seed"`
	Lambda          float64 `db:"lambda"`
	FinalDispersion float64 `db:"final_dispersion"`
	ConvergenceStep int     `db:"convergence_step"`
	GraphAttempts   int     `db:"graph_attempts"`
	Steps           int     `db:"steps"`
	DurationMS      int64   `db:"duration_ms"`
	Error           string  `db:"error"`
}

// SaveSweep writes a sweep and every run result in one transaction.
func (db *DB) SaveSweep(sw Sweep, results []sweep.Result) error {
	if sw.ID == "" {
		sw.ID = uuid.NewString()
	}
	planJSON, err := json.Marshal(sw.Plan)
	if err != nil {
		return fmt.Errorf("marshal plan: %w", err)
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT INTO sweeps (id, created_at, variable, runs, failed, duration_ms, plan_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sw.ID, sw.CreatedAt.UnixMilli(), string(sw.Plan.Variable), sw.Runs, sw.Failed,
		sw.Duration.Milliseconds(), string(planJSON),
	)
	if err != nil {
		return fmt.Errorf("insert sweep %s: %w", sw.ID, err)
	}

	stmt, err := tx.Preparex(`INSERT INTO sweep_results
		(sweep_id, idx, value, replicate, seed, lambda, final_dispersion,
		 convergence_step, graph_attempts, steps, duration_ms, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range results {
		errText := ""
		if r.Err != nil {
			errText = r.Err.Error()
		}
		_, err := stmt.Exec(
			sw.ID, r.Index, r.Value, r.Replicate, r.Seed, r.Lambda, r.FinalDispersion,
			r.ConvergenceStep, r.GraphAttempts, r.Steps, r.Duration.Milliseconds(), errText,
		)
		if err != nil {
			return fmt.Errorf("insert sweep result %d: %w", r.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	slog.Info("sweep saved", "id", sw.ID, "runs", len(results))
	return nil
}

// LoadSweep returns the stored sweep with the given ID.
func (db *DB) LoadSweep(id string) (Sweep, error) {
	var row sweepRow
	err := db.conn.Get(&row,
		"SELECT id, created_at, variable, runs, failed, duration_ms, plan_json FROM sweeps WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return Sweep{}, fmt.Errorf("sweep %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Sweep{}, fmt.Errorf("load sweep %s: %w", id, err)
	}
	return row.sweep()
}

// ListSweeps returns the most recent sweeps, newest first.
func (db *DB) ListSweeps(limit int) ([]Sweep, error) {
	var rows []sweepRow
	err := db.conn.Select(&rows,
		`SELECT id, created_at, variable, runs, failed, duration_ms, plan_json
		 FROM sweeps ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		clampLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("list sweeps: %w", err)
	}

	out := make([]Sweep, 0, len(rows))
	for _, r := range rows {
		sw, err := r.sweep()
		if err != nil {
			return nil, err
		}
		out = append(out, sw)
	}
	return out, nil
}

// LoadSweepResults returns a sweep's run results in grid order. Stored
// failures come back with Err set to the recorded message.
func (db *DB) LoadSweepResults(id string) ([]sweep.Result, error) {
	if _, err := db.LoadSweep(id); err != nil {
		return nil, err
	}

	var rows []sweepResultRow
	err := db.conn.Select(&rows,
		`SELECT idx, value, replicate, seed, lambda, final_dispersion,
		        convergence_step, graph_attempts, steps, duration_ms, error
		 FROM sweep_results WHERE sweep_id = ? ORDER BY idx`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("load sweep results %s: %w", id, err)
	}

	results := make([]sweep.Result, len(rows))
	for i, r := range rows {
		results[i] = sweep.Result{
			Index:           r.Index,
			Value:           r.Value,
			Replicate:       r.Replicate,
			Seed:            r.Seed,
			Lambda:          r.Lambda,
			FinalDispersion: r.FinalDispersion,
			ConvergenceStep: r.ConvergenceStep,
			GraphAttempts:   r.GraphAttempts,
			Steps:           r.Steps,
			Duration:        time.Duration(r.DurationMS) * time.Millisecond,
		}
		if r.Error != "" {
			results[i].Err = errors.New(r.Error)
		}
	}
	return results, nil
}
