// Package api provides the read-only HTTP API over stored run results.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/rockladyeagles/polarmodel/internal/metrics"
	"github.com/rockladyeagles/polarmodel/internal/persistence"
	"github.com/rockladyeagles/polarmodel/internal/sweep"
)

const (
	defaultListLimit = 50
	shutdownTimeout  = 5 * time.Second
)

// Server serves stored runs and sweeps over HTTP.
type Server struct {
	DB      *persistence.DB
	Metrics *metrics.Registry // nil disables /metrics and request counting
	Port    int

	// Browser origins allowed by CORS, in addition to localhost dev servers.
	CORSOrigins []string

	// Requests per minute per client on the series endpoint; 0 = unlimited.
	SeriesRateLimit int

	started time.Time
}

// Handler builds the routed, instrumented handler. ctx bounds background
// work such as rate-limit cleanup.
func (s *Server) Handler(ctx context.Context) http.Handler {
	if s.started.IsZero() {
		s.started = time.Now()
	}

	var seriesLimiter *RateLimiter
	if s.SeriesRateLimit > 0 {
		seriesLimiter = NewRateLimiter(ctx, s.SeriesRateLimit, time.Minute)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/status", s.handleStatus)
	mux.HandleFunc("GET /api/v1/runs", s.handleRuns)
	mux.HandleFunc("GET /api/v1/runs/{id}", s.handleRunDetail)
	mux.HandleFunc("GET /api/v1/runs/{id}/series", RateLimitMiddleware(seriesLimiter, s.handleRunSeries))
	mux.HandleFunc("GET /api/v1/sweeps", s.handleSweeps)
	mux.HandleFunc("GET /api/v1/sweeps/{id}", s.handleSweepDetail)
	if s.Metrics != nil {
		mux.Handle("GET /metrics", s.Metrics.Handler())
	}

	return s.instrument(corsMiddleware(s.CORSOrigins, mux))
}

// Serve listens on Port until ctx ends, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.Port))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener serves on ln until ctx ends.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(ctx),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", ln.Addr().String(), "metrics", s.Metrics != nil)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("HTTP server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	slog.Info("HTTP API shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Localhost dev servers are always allowed.
func corsMiddleware(origins []string, next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:4173": true,
		"http://localhost:3000": true,
	}
	for _, origin := range origins {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			allowedOrigins[origin] = true
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

// instrument counts requests by matched route pattern and status.
func (s *Server) instrument(next http.Handler) http.Handler {
	if s.Metrics == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		s.Metrics.RecordHTTPRequest(route, rec.status)
	})
}

func (s *Server) requireDB(w http.ResponseWriter) bool {
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return false
	}
	return true
}

func listLimit(r *http.Request) int {
	limit := defaultListLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 1000 {
			limit = v
		}
	}
	return limit
}

// notFoundOr writes 404 for persistence.ErrNotFound and 500 otherwise.
func notFoundOr(w http.ResponseWriter, err error, what string) {
	if errors.Is(err, persistence.ErrNotFound) {
		http.Error(w, what+" not found", http.StatusNotFound)
		return
	}
	slog.Error("query failed", "what", what, "error", err)
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"name":    "polarsim",
		"uptime":  time.Since(s.started).Round(time.Second).String(),
		"started": humanize.Time(s.started),
		"db":      s.DB != nil,
		"metrics": s.Metrics != nil,
	}
	if s.DB != nil {
		if v, err := s.DB.GetMeta("schema_version"); err == nil {
			status["schema_version"] = v
		}
		if id, err := s.DB.GetMeta("last_run"); err == nil {
			status["last_run"] = id
			if run, err := s.DB.LoadRun(id); err == nil {
				status["last_run_age"] = humanize.Time(run.CreatedAt)
			}
		}
	}
	writeJSON(w, status)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if !s.requireDB(w) {
		return
	}
	runs, err := s.DB.ListRuns(listLimit(r))
	if err != nil {
		notFoundOr(w, err, "runs")
		return
	}
	writeJSON(w, runs)
}

func (s *Server) handleRunDetail(w http.ResponseWriter, r *http.Request) {
	if !s.requireDB(w) {
		return
	}
	run, err := s.DB.LoadRun(r.PathValue("id"))
	if err != nil {
		notFoundOr(w, err, "run")
		return
	}
	writeJSON(w, run)
}

// handleRunSeries returns the whole table, or one column with ?name=.
func (s *Server) handleRunSeries(w http.ResponseWriter, r *http.Request) {
	if !s.requireDB(w) {
		return
	}
	id := r.PathValue("id")
	table, err := s.DB.LoadTable(id)
	if err != nil {
		notFoundOr(w, err, "run")
		return
	}

	name := r.URL.Query().Get("name")
	if name == "" {
		writeJSON(w, table)
		return
	}
	values := table.Column(name)
	if values == nil {
		http.Error(w, fmt.Sprintf("series %q not found", name), http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]any{
		"run":    id,
		"name":   name,
		"values": values,
	})
}

func (s *Server) handleSweeps(w http.ResponseWriter, r *http.Request) {
	if !s.requireDB(w) {
		return
	}
	sweeps, err := s.DB.ListSweeps(listLimit(r))
	if err != nil {
		notFoundOr(w, err, "sweeps")
		return
	}
	writeJSON(w, sweeps)
}

type resultView struct {
	sweep.Result
	Error string `json:"error,omitempty"`
}

func (s *Server) handleSweepDetail(w http.ResponseWriter, r *http.Request) {
	if !s.requireDB(w) {
		return
	}
	id := r.PathValue("id")
	sw, err := s.DB.LoadSweep(id)
	if err != nil {
		notFoundOr(w, err, "sweep")
		return
	}
	results, err := s.DB.LoadSweepResults(id)
	if err != nil {
		notFoundOr(w, err, "sweep")
		return
	}

	views := make([]resultView, len(results))
	for i, res := range results {
		views[i] = resultView{Result: res}
		if res.Err != nil {
			views[i].Error = res.Err.Error()
		}
	}
	writeJSON(w, map[string]any{
		"sweep":   sw,
		"results": views,
		"summary": sweep.Summarize(results),
	})
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		slog.Warn("encode response", "error", err)
	}
}
