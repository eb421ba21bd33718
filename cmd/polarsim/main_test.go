package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rockladyeagles/polarmodel/internal/persistence"
)

func execute(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	rootCmd := newRootCmd()
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(ctx)
	return out.String(), err
}

func TestRootPrintsUsage(t *testing.T) {
	out, err := execute(t, context.Background())
	require.NoError(t, err)
	assert.Contains(t, out, "single")
	assert.Contains(t, out, "batch")
	assert.Contains(t, out, "serve")
}

func TestSingleWritesOutputs(t *testing.T) {
	dir := t.TempDir()
	plot := filepath.Join(dir, "disp.png")
	csvPath := filepath.Join(dir, "run.csv")
	dbPath := filepath.Join(dir, "data", "runs.db")
	metricsPath := filepath.Join(dir, "polarsim.prom")

	out, err := execute(t, context.Background(),
		"single",
		"--seed", "7",
		"--db", dbPath,
		"--metrics-out", metricsPath,
		"-T", "20", "-N", "10", "-I", "3",
		"--cthresh", "0.2", "-p", "0.5",
		"--plot", plot, "--csv", csvPath,
	)
	require.NoError(t, err)
	assert.Contains(t, out, "Seed:        7")
	assert.Contains(t, out, "Run ID:")

	for _, p := range []string{plot, csvPath, metricsPath} {
		info, err := os.Stat(p)
		require.NoError(t, err, p)
		assert.NotZero(t, info.Size(), p)
	}

	db, err := persistence.Open(dbPath)
	require.NoError(t, err)
	defer db.Close()
	runs, err := db.ListRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, int64(7), runs[0].Params.Seed)
	assert.Equal(t, 10, runs[0].Params.Agents)
	assert.Equal(t, 20, runs[0].Steps)

	table, err := db.LoadTable(runs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 20, table.Len())
}

func TestSingleWithoutDB(t *testing.T) {
	dir := t.TempDir()
	out, err := execute(t, context.Background(),
		"single", "--no-db", "--seed", "3",
		"-T", "5", "-N", "8", "-p", "0.6",
		"--plot", filepath.Join(dir, "disp.png"),
	)
	require.NoError(t, err)
	assert.NotContains(t, out, "Run ID:")
}

func TestSingleRejectsInvalidParams(t *testing.T) {
	_, err := execute(t, context.Background(),
		"single", "--no-db", "-N", "1",
		"--plot", filepath.Join(t.TempDir(), "disp.png"),
	)
	assert.Error(t, err)
}

func TestSingleCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := execute(t, ctx,
		"single", "--no-db", "--seed", "1",
		"-T", "50", "-N", "8", "-p", "0.6",
		"--plot", filepath.Join(t.TempDir(), "disp.png"),
	)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestBatchWritesOutputs(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "polarsim.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
simulation:
  seed: 11
  edge_prob: 0.6
  issues: 3
`), 0o644))
	plot := filepath.Join(dir, "sweep.png")
	csvPath := filepath.Join(dir, "sweep.csv")
	dbPath := filepath.Join(dir, "runs.db")

	out, err := execute(t, context.Background(),
		"batch",
		"--config", cfgPath,
		"--db", dbPath,
		"--variable", "agents",
		"--from", "6", "--to", "10", "--step", "2",
		"--replicates", "2", "--workers", "2",
		"-T", "30",
		"--plot", plot, "--csv", csvPath,
	)
	require.NoError(t, err)
	assert.Contains(t, out, "Swept agents over 2 values")
	assert.Contains(t, out, "Sweep ID:")

	for _, p := range []string{plot, csvPath} {
		_, err := os.Stat(p)
		require.NoError(t, err, p)
	}

	db, err := persistence.Open(dbPath)
	require.NoError(t, err)
	defer db.Close()
	sweeps, err := db.ListSweeps(10)
	require.NoError(t, err)
	require.Len(t, sweeps, 1)
	assert.Equal(t, 4, sweeps[0].Runs)
	assert.Equal(t, int64(11), sweeps[0].Plan.Base.Seed)
	assert.Equal(t, 30, sweeps[0].Plan.Base.MaxSteps)

	results, err := db.LoadSweepResults(sweeps[0].ID)
	require.NoError(t, err)
	require.Len(t, results, 4)
	for i, r := range results {
		assert.Equal(t, int64(11+i), r.Seed)
	}
}

func TestBatchRejectsBadVariable(t *testing.T) {
	_, err := execute(t, context.Background(),
		"batch", "--no-db", "--variable", "mood",
		"--plot", filepath.Join(t.TempDir(), "sweep.png"),
	)
	assert.Error(t, err)
}

func TestServeNeedsDB(t *testing.T) {
	_, err := execute(t, context.Background(), "serve", "--no-db")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database")
}
