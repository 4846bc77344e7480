// Package telemetry exposes link diagnostics over HTTP for the bridge tool.
package telemetry

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/rjboer/esp8266/at"
	"github.com/rjboer/esp8266/internal/link"
	"github.com/rjboer/esp8266/internal/logging"
)

// Snapshot is what a diagnostics request reports.
type Snapshot struct {
	Link         link.Status        `json:"link"`
	Driver       at.MetricsSnapshot `json:"driver"`
	UptimeSec    float64            `json:"uptimeSec"`
	NumGoroutine int                `json:"numGoroutine"`
	LastError    string             `json:"lastError,omitempty"`
}

// Hub collects the pieces of a Snapshot. The single bridge goroutine feeds
// it while HTTP readers snapshot it, hence the RWMutex.
type Hub struct {
	mu        sync.RWMutex
	started   time.Time
	linkState link.Status
	metrics   at.MetricsSnapshot
	lastError string

	log logging.Logger
}

// NewHub builds an empty hub.
func NewHub(log logging.Logger) *Hub {
	if log == nil {
		log = logging.Default()
	}
	return &Hub{
		started: time.Now(),
		log:     log.With(logging.Field{Key: "subsystem", Value: "telemetry"}),
	}
}

// Update replaces the link and driver views.
func (h *Hub) Update(st link.Status, m at.MetricsSnapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.linkState = st
	h.metrics = m
}

// RecordError notes the most recent bridge error.
func (h *Hub) RecordError(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err != nil {
		h.lastError = err.Error()
	}
}

// Snapshot returns a point-in-time copy.
func (h *Hub) Snapshot() Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return Snapshot{
		Link:         h.linkState,
		Driver:       h.metrics,
		UptimeSec:    time.Since(h.started).Seconds(),
		NumGoroutine: runtime.NumGoroutine(),
		LastError:    h.lastError,
	}
}

func (h *Hub) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.Snapshot()); err != nil {
		h.log.Error("encode diagnostics", logging.Field{Key: "err", Value: err})
	}
}

func (h *Hub) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	snap := h.Snapshot()
	status := "degraded"
	if snap.Link.State == link.StateJoined || snap.Link.State == link.StateConnected {
		status = "ok"
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": status, "link": snap.Link.State.String()})
}

// Server serves the hub's endpoints.
type Server struct {
	srv *http.Server
	log logging.Logger
}

// NewServer builds an HTTP server for the hub on addr.
func NewServer(addr string, hub *Hub, log logging.Logger) *Server {
	if log == nil {
		log = logging.Default()
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/diagnostics", hub.handleDiagnostics)
	mux.HandleFunc("/api/health", hub.handleHealth)
	return &Server{
		srv: &http.Server{Addr: addr, Handler: mux},
		log: log.With(logging.Field{Key: "subsystem", Value: "telemetry"}),
	}
}

// Start serves until Shutdown, reporting fatal listener errors on the
// returned channel.
func (s *Server) Start() <-chan error {
	errc := make(chan error, 1)
	go func() {
		s.log.Info("telemetry listening", logging.Field{Key: "addr", Value: s.srv.Addr})
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
		close(errc)
	}()
	return errc
}

// Shutdown stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
