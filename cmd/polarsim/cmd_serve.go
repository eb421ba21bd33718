package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/rockladyeagles/polarmodel/internal/api"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve stored runs and sweeps over HTTP",
		Long: `Start a read-only JSON API over the result database, with Prometheus
metrics at /metrics. Stops on SIGINT or SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.prepare(cmd); err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				a.cfg.API.Port, _ = cmd.Flags().GetInt("port")
			}
			return runServe(cmd, a)
		},
	}
	cmd.Flags().Int("port", 0, "Listen port (default 8080)")
	return cmd
}

func runServe(cmd *cobra.Command, a *app) error {
	cfg := a.cfg
	if !cfg.Storage.Enabled {
		return errors.New("serve needs the result database; drop --no-db")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	db, err := a.openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	srv := &api.Server{
		DB:              db,
		Metrics:         a.metrics,
		Port:            cfg.API.Port,
		CORSOrigins:     cfg.API.CORSOrigins,
		SeriesRateLimit: cfg.API.SeriesRateLimit,
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Serving on http://localhost:%d/api/v1/status\n", cfg.API.Port)
	if err := srv.Serve(cmd.Context()); err != nil {
		return err
	}
	slog.Info("server stopped")
	return nil
}
