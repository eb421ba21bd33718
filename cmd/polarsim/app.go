package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rockladyeagles/polarmodel/internal/config"
	"github.com/rockladyeagles/polarmodel/internal/metrics"
	"github.com/rockladyeagles/polarmodel/internal/persistence"
)

// app carries global flag values and the state every subcommand shares.
type app struct {
	configPath string
	seed       int64
	logLevel   string
	dbPath     string
	noDB       bool
	metricsOut string

	cfg     *config.Config
	metrics *metrics.Registry
}

// prepare loads the config and applies global flags on top of it.
func (a *app) prepare(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("seed") {
		cfg.Simulation.Seed = a.seed
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = a.logLevel
	}
	if flags.Changed("db") {
		cfg.Storage.Path = a.dbPath
		cfg.Storage.Enabled = true
	}
	if a.noDB {
		cfg.Storage.Enabled = false
	}
	if flags.Changed("metrics-out") {
		cfg.Output.MetricsFile = a.metricsOut
	}

	setupLogging(cmd.ErrOrStderr(), cfg.Logging)
	a.cfg = cfg
	a.metrics = metrics.NewRegistry()
	return nil
}

func setupLogging(w io.Writer, lc config.LoggingConfig) {
	opts := &slog.HandlerOptions{Level: lc.SlogLevel()}
	var handler slog.Handler
	if lc.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// openDB opens the result store, or returns nil when storage is disabled.
func (a *app) openDB() (*persistence.DB, error) {
	if !a.cfg.Storage.Enabled {
		return nil, nil
	}
	if dir := filepath.Dir(a.cfg.Storage.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := persistence.Open(a.cfg.Storage.Path)
	if err != nil {
		return nil, err
	}
	slog.Info("database opened", "path", a.cfg.Storage.Path)
	return db, nil
}

// flushMetrics writes the metrics textfile if one was requested.
func (a *app) flushMetrics() {
	path := a.cfg.Output.MetricsFile
	if path == "" {
		return
	}
	if err := a.metrics.WriteTextfile(path); err != nil {
		slog.Error("failed to write metrics", "error", err)
		return
	}
	slog.Info("metrics written", "path", path)
}
