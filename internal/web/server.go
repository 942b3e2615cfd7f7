package web

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lumenvault/svm/internal/logger"
	"github.com/lumenvault/svm/internal/state"
	"github.com/lumenvault/svm/internal/supervisor"
	"github.com/lumenvault/svm/internal/types"
)

var webLogger = logger.GetForComponent("web_server")

// Rebalancer runs a cycle on demand. Satisfied by the scheduler.
type Rebalancer interface {
	TriggerManual(ctx context.Context) (types.CycleSnapshot, error)
}

// WebServer serves controller status over HTTP: health, metrics, cycle
// history and the manual rebalance trigger.
type WebServer struct {
	router     *mux.Router
	addr       string
	sup        *supervisor.Supervisor
	rebalancer Rebalancer
}

// NewWebServer creates a new web server instance. sup may be nil; health
// then only reflects database reachability. rebalancer may be nil when the
// rebalance loop is disabled.
func NewWebServer(addr string, sup *supervisor.Supervisor, rebalancer Rebalancer) *WebServer {
	if addr == "" {
		addr = ":8080"
	}

	server := &WebServer{
		router:     mux.NewRouter(),
		addr:       addr,
		sup:        sup,
		rebalancer: rebalancer,
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures all HTTP routes
func (ws *WebServer) setupRoutes() {
	ws.router.HandleFunc("/health", ws.handleHealth).Methods("GET")
	ws.router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	api := ws.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/cycles", ws.handleGetCycles).Methods("GET")
	api.HandleFunc("/cycles/latest", ws.handleGetLatestCycle).Methods("GET")
	api.HandleFunc("/summary", ws.handleGetSummary).Methods("GET")
	api.HandleFunc("/rebalance", ws.handleTriggerRebalance).Methods("POST")

	ws.router.Use(ws.corsMiddleware)
	ws.router.Use(ws.loggingMiddleware)
}

// Start blocks serving HTTP until the listener fails.
func (ws *WebServer) Start() error {
	webLogger.Info().Str("addr", ws.addr).Msg("Starting web server")

	server := &http.Server{
		Addr:         ws.addr,
		Handler:      ws.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server.ListenAndServe()
}

func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	code := http.StatusOK
	if ws.sup != nil && !ws.sup.Healthy() {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	payload := map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC(),
	}
	if latest, err := state.GetLatestSnapshot(); err == nil {
		payload["last_cycle"] = map[string]any{
			"cycle_number": latest.CycleNumber,
			"timestamp":    latest.Timestamp,
			"outcome":      latest.Outcome,
		}
	}

	ws.writeJSON(w, code, payload)
}

// handleGetCycles returns recent cycle snapshots, newest first. The limit
// query parameter caps the result, default 50.
func (ws *WebServer) handleGetCycles(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 500 {
			ws.writeError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = parsed
	}

	snapshots, err := state.GetRecentSnapshots(limit)
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to load cycle snapshots")
		ws.writeError(w, http.StatusInternalServerError, "failed to load cycles")
		return
	}
	if snapshots == nil {
		snapshots = []types.CycleSnapshot{}
	}

	ws.writeJSON(w, http.StatusOK, map[string]any{
		"cycles": snapshots,
		"count":  len(snapshots),
	})
}

func (ws *WebServer) handleGetLatestCycle(w http.ResponseWriter, r *http.Request) {
	latest, err := state.GetLatestSnapshot()
	if errors.Is(err, sql.ErrNoRows) {
		ws.writeError(w, http.StatusNotFound, "no cycles recorded yet")
		return
	}
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to load latest snapshot")
		ws.writeError(w, http.StatusInternalServerError, "failed to load latest cycle")
		return
	}
	ws.writeJSON(w, http.StatusOK, latest)
}

// handleGetSummary condenses the latest snapshot into the dashboard figures.
func (ws *WebServer) handleGetSummary(w http.ResponseWriter, r *http.Request) {
	latest, err := state.GetLatestSnapshot()
	if errors.Is(err, sql.ErrNoRows) {
		ws.writeError(w, http.StatusNotFound, "no cycles recorded yet")
		return
	}
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to load latest snapshot")
		ws.writeError(w, http.StatusInternalServerError, "failed to load summary")
		return
	}

	deployed := latest.FinalTotal - latest.FinalIdle
	ws.writeJSON(w, http.StatusOK, map[string]any{
		"cycle_number":    latest.CycleNumber,
		"timestamp":       latest.Timestamp,
		"policy":          latest.Policy,
		"winner":          latest.Winner,
		"fallback":        latest.Fallback,
		"total_native":    latest.FinalTotal,
		"idle_native":     latest.FinalIdle,
		"deployed_native": deployed,
		"outcome":         latest.Outcome,
		"operations":      len(latest.Operations),
	})
}

// handleTriggerRebalance runs a cycle immediately, bypassing the cooldown,
// and returns its snapshot. Blocks for the duration of the cycle.
func (ws *WebServer) handleTriggerRebalance(w http.ResponseWriter, r *http.Request) {
	if ws.rebalancer == nil {
		ws.writeError(w, http.StatusServiceUnavailable, "rebalancing is disabled")
		return
	}

	snap, err := ws.rebalancer.TriggerManual(r.Context())
	if err != nil {
		webLogger.Error().Err(err).Msg("Manual rebalance failed")
		ws.writeError(w, http.StatusServiceUnavailable, "rebalance did not complete")
		return
	}
	ws.writeJSON(w, http.StatusOK, snap)
}

func (ws *WebServer) writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		webLogger.Error().Err(err).Msg("Failed to encode response")
	}
}

func (ws *WebServer) writeError(w http.ResponseWriter, code int, message string) {
	ws.writeJSON(w, code, map[string]string{"error": message})
}

func (ws *WebServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (ws *WebServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		webLogger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("Request handled")
	})
}
