// Command polarsim runs the opinion-polarization simulation: a single run,
// a parameter sweep, or an HTTP API over stored results.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var version = "0.1.0-dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "polarsim",
		Short: "Opinion polarization on a random social network",
		Long: `polarsim simulates citizens holding opinions on several issues.

Each step every citizen picks a random neighbor on a connected
Erdos-Renyi graph. If the two are close on one issue, the citizen moves
halfway toward the neighbor on another.

Usage: polarsim single|batch|serve`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	// Global flags
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "Config file (default ./polarsim.yaml if present)")
	pf.Int64Var(&a.seed, "seed", 0, "Random seed (0 = draw from the OS)")
	pf.StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&a.dbPath, "db", "", "SQLite result store path")
	pf.BoolVar(&a.noDB, "no-db", false, "Do not store results")
	pf.StringVar(&a.metricsOut, "metrics-out", "", "Write Prometheus metrics to this file on exit")

	rootCmd.AddCommand(
		newSingleCmd(a),
		newBatchCmd(a),
		newServeCmd(a),
	)
	return rootCmd
}
