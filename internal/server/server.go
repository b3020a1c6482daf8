package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/psantana5/callstats/pkg/callstats"
	"github.com/psantana5/callstats/pkg/logging"
	"github.com/psantana5/callstats/pkg/report"
	"github.com/psantana5/callstats/pkg/store"
	"github.com/psantana5/callstats/pkg/tracing"
)

// HTTPSource is the aggregator source fed by request handling itself.
const HTTPSource = "http"

// Requests are measured with their own counters.
var (
	Registry = callstats.NewRegistry("Request", "Aggregate", "Render", "Store")

	idRequest   = Registry.MustLookup("Request")
	idAggregate = Registry.MustLookup("Aggregate")
	idRender    = Registry.MustLookup("Render")
	idStore     = Registry.MustLookup("Store")
)

// Config wires a Server
type Config struct {
	Aggregator *report.Aggregator
	Switch     *callstats.Switch
	// Store is optional; /runs answers 404 without it.
	Store     store.Store
	Tracing   *tracing.Provider
	Logger    *logging.Logger
	RateRPS   float64
	RateBurst int
	// TrustProxy keys rate limiting by X-Forwarded-For instead of the
	// connection address.
	TrustProxy bool
}

// Server exposes the aggregated counters over HTTP
type Server struct {
	agg      *report.Aggregator
	sw       *callstats.Switch
	store    store.Store
	tracing  *tracing.Provider
	logger   *logging.Logger
	limiter  *Limiter
	keyFunc  func(*http.Request) string
	registry *prometheus.Registry
	started  time.Time
}

// New creates a server. It registers the counter collector on a private
// Prometheus registry.
func New(cfg Config) (*Server, error) {
	if cfg.Aggregator == nil {
		return nil, errors.New("aggregator is required")
	}
	if cfg.Switch == nil {
		cfg.Switch = callstats.NewSwitch(callstats.Enabled)
	}

	reg := prometheus.NewRegistry()
	if err := reg.Register(report.NewCollector(cfg.Aggregator)); err != nil {
		return nil, fmt.Errorf("failed to register collector: %w", err)
	}

	s := &Server{
		agg:      cfg.Aggregator,
		sw:       cfg.Switch,
		store:    cfg.Store,
		tracing:  cfg.Tracing,
		logger:   cfg.Logger,
		keyFunc:  RemoteKeyFunc,
		registry: reg,
		started:  time.Now(),
	}
	if cfg.TrustProxy {
		s.keyFunc = IPKeyFunc
	}
	if cfg.RateRPS > 0 {
		burst := cfg.RateBurst
		if burst < 1 {
			burst = 1
		}
		s.limiter = NewLimiter(cfg.RateRPS, burst)
	}
	return s, nil
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})).Methods("GET")
	r.HandleFunc("/health", s.Health).Methods("GET")

	api := r.NewRoute().Subrouter()
	api.Use(s.instrument)
	if s.limiter != nil {
		api.Use(s.limiter.Middleware(s.keyFunc))
	}
	api.HandleFunc("/report", s.Report).Methods("GET")
	api.HandleFunc("/sources", s.Sources).Methods("GET")
	api.HandleFunc("/reset", s.Reset).Methods("POST")
	api.HandleFunc("/mode", s.GetMode).Methods("GET")
	api.HandleFunc("/mode", s.SetMode).Methods("PUT")
	api.HandleFunc("/runs", s.ListRuns).Methods("GET")
	api.HandleFunc("/runs/{id}", s.GetRun).Methods("GET")

	var h http.Handler = r
	if s.tracing != nil {
		h = tracing.HTTPMiddleware(s.tracing)(h)
	}
	return h
}

// ListenAndServe serves on addr until ctx is cancelled or Shutdown is
// called on the returned server.
func (s *Server) ListenAndServe(ctx context.Context, addr string) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	go func() {
		s.logger.Info("HTTP server listening", logging.Fields{"addr": addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server failed", logging.Fields{"error": err.Error()})
		}
	}()
	return srv
}

// instrument gives every request its own Stats and folds its counters into
// the http source when the request completes.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stats := Registry.NewStats(callstats.WithSwitch(callstats.NewSwitch(s.sw.Mode())))
		func() {
			defer callstats.NewScope(stats, idRequest).Close()
			next.ServeHTTP(w, r.WithContext(callstats.WithStats(r.Context(), stats)))
		}()
		s.agg.Accumulate(HTTPSource, stats.Snapshot())
	})
}

// Health reports liveness
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"mode":    s.sw.Mode().String(),
		"uptime":  time.Since(s.started).Round(time.Second).String(),
		"sources": len(s.agg.Sources()),
	})
}

// Report renders the aggregated counters. Query parameters: source picks
// one source instead of the total, format is json (default), yaml, table
// or prometheus, top limits the rows.
func (s *Server) Report(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	format := q.Get("format")
	if format == "" {
		format = report.FormatJSON
	}

	name, snap, ok := s.snapshot(r.Context(), q.Get("source"))
	if !ok {
		http.Error(w, fmt.Sprintf("unknown source %q", name), http.StatusNotFound)
		return
	}

	defer callstats.Start(r.Context(), idRender).Close()

	if format == report.FormatPrometheus {
		agg := s.agg
		if src := q.Get("source"); src != "" {
			agg = report.NewAggregator()
			agg.Publish(src, snap)
		}
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		if err := report.WritePrometheus(w, agg); err != nil {
			s.logger.Error("Failed to render metrics", logging.Fields{"error": err.Error()})
		}
		return
	}

	rep := report.FromSnapshot(name, snap)
	rep.Mode = s.sw.Mode().String()
	if top := q.Get("top"); top != "" {
		n, err := strconv.Atoi(top)
		if err != nil || n < 0 {
			http.Error(w, "top must be a non-negative integer", http.StatusBadRequest)
			return
		}
		rep.Rows = rep.Top(n)
	}

	switch format {
	case report.FormatJSON:
		w.Header().Set("Content-Type", "application/json")
	case report.FormatYAML:
		w.Header().Set("Content-Type", "application/yaml")
	case report.FormatTable:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	default:
		http.Error(w, fmt.Sprintf("unsupported format %q", format), http.StatusBadRequest)
		return
	}
	if err := report.Write(w, rep, format); err != nil {
		s.logger.Error("Failed to render report", logging.Fields{"error": err.Error()})
	}
}

func (s *Server) snapshot(ctx context.Context, source string) (string, callstats.Snapshot, bool) {
	defer callstats.Start(ctx, idAggregate).Close()
	if source == "" {
		return "total", s.agg.Total(), true
	}
	snap, ok := s.agg.Source(source)
	return source, snap, ok
}

// Sources lists the aggregator sources
func (s *Server) Sources(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sources": s.agg.Sources(),
	})
}

// Reset drops every published snapshot
func (s *Server) Reset(w http.ResponseWriter, r *http.Request) {
	s.agg.Reset()
	s.logger.Info("Aggregated counters reset")
	w.WriteHeader(http.StatusNoContent)
}

// GetMode returns the instrumentation mode
func (s *Server) GetMode(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"mode": s.sw.Mode().String()})
}

// SetMode switches the instrumentation mode. Running activations finish
// under the mode they started with.
func (s *Server) SetMode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode string `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	mode, err := callstats.ParseMode(req.Mode)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	prev := s.sw.Mode()
	s.sw.Set(mode)
	s.logger.Info("Instrumentation mode changed", logging.Fields{"from": prev.String(), "to": mode.String()})
	writeJSON(w, http.StatusOK, map[string]string{"mode": mode.String()})
}

// ListRuns returns stored runs, newest first
func (s *Server) ListRuns(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		http.Error(w, "no store configured", http.StatusNotFound)
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			http.Error(w, "limit must be an integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	defer callstats.Start(r.Context(), idStore).Close()
	runs, err := s.store.ListRuns(r.Context(), limit)
	if err != nil {
		s.logger.Error("Failed to list runs", logging.Fields{"error": err.Error()})
		http.Error(w, "failed to list runs", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

// GetRun returns one stored run
func (s *Server) GetRun(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		http.Error(w, "no store configured", http.StatusNotFound)
		return
	}
	id := mux.Vars(r)["id"]

	defer callstats.Start(r.Context(), idStore).Close()
	run, err := s.store.GetRun(r.Context(), id)
	if errors.Is(err, store.ErrRunNotFound) {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
