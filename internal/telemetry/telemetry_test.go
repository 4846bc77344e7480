package telemetry

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rjboer/esp8266/at"
	"github.com/rjboer/esp8266/internal/link"
)

func TestHandleDiagnostics(t *testing.T) {
	hub := NewHub(nil)
	hub.Update(link.Status{State: link.StateJoined, IP: "192.168.1.5"}, at.MetricsSnapshot{CommandsSent: 7})

	req := httptest.NewRequest(http.MethodGet, "/api/diagnostics", nil)
	rr := httptest.NewRecorder()
	hub.handleDiagnostics(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var snap Snapshot
	if err := json.NewDecoder(rr.Body).Decode(&snap); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if snap.Link.IP != "192.168.1.5" {
		t.Fatalf("link ip = %q", snap.Link.IP)
	}
	if snap.Driver.CommandsSent != 7 {
		t.Fatalf("commands sent = %d, want 7", snap.Driver.CommandsSent)
	}
	if snap.NumGoroutine == 0 {
		t.Fatal("expected goroutine count to be reported")
	}
}

func TestHandleDiagnosticsMethodNotAllowed(t *testing.T) {
	hub := NewHub(nil)
	req := httptest.NewRequest(http.MethodPost, "/api/diagnostics", nil)
	rr := httptest.NewRecorder()
	hub.handleDiagnostics(rr, req)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rr.Code)
	}
}

func TestHandleHealth(t *testing.T) {
	hub := NewHub(nil)

	rr := httptest.NewRecorder()
	hub.handleHealth(rr, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	var body map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["status"] != "degraded" {
		t.Fatalf("status = %q, want degraded before join", body["status"])
	}

	hub.Update(link.Status{State: link.StateConnected, IP: "192.168.1.5"}, at.MetricsSnapshot{})
	rr = httptest.NewRecorder()
	hub.handleHealth(rr, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("status = %q, want ok when connected", body["status"])
	}
}

func TestRecordError(t *testing.T) {
	hub := NewHub(nil)
	hub.RecordError(nil)
	if got := hub.Snapshot().LastError; got != "" {
		t.Fatalf("LastError = %q, want empty", got)
	}
	hub.RecordError(at.ErrTimeout)
	if got := hub.Snapshot().LastError; got == "" {
		t.Fatal("LastError empty after RecordError")
	}
}
