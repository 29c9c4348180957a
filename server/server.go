// Package server exposes the bot's operational HTTP surface: liveness and
// readiness probes, a small status document, and Prometheus metrics. It has
// no command or chat functionality; the bot itself lives on the gateway.
package server

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handlers carries the dependencies for the HTTP endpoints.
type Handlers struct {
	db      *sql.DB
	started time.Time
	ready   atomic.Bool
}

// NewHandlers returns Handlers over the audit store handle.
func NewHandlers(db *sql.DB) *Handlers {
	return &Handlers{db: db, started: time.Now().UTC()}
}

// SetReady flips the readiness state, typically once the gateway session is
// established.
func (h *Handlers) SetReady(ready bool) { h.ready.Store(ready) }

// NewMux returns the HTTP handler with all routes.
func NewMux(h *Handlers) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", h.HandleHealthz)
	mux.HandleFunc("/readyz", h.HandleReadyz)
	mux.HandleFunc("/status", h.HandleStatus)
	return mux
}

// HandleHealthz responds to liveness probes by checking the audit store.
func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := h.db.PingContext(r.Context()); err != nil {
		http.Error(w, "unhealthy", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// HandleReadyz reports ready once the gateway session is up and the audit
// store answers.
func (h *Handlers) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if !h.ready.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "not_ready", "failed_check": "gateway"})
		return
	}
	if err := h.db.PingContext(r.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "not_ready", "failed_check": "database", "error": err.Error()})
		return
	}
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
}

// HandleStatus returns a small status document for humans and dashboards.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"started":        h.started.Format(time.RFC3339),
		"uptime_seconds": int(time.Since(h.started).Seconds()),
		"gateway_ready":  h.ready.Load(),
	})
}
