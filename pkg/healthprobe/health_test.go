package healthprobe

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealth_AlwaysOK(t *testing.T) {
	checker := New()

	rec := httptest.NewRecorder()
	checker.Health()(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "healthy" {
		t.Errorf("unexpected status %s", resp.Status)
	}
}

func TestReady_TracksReadiness(t *testing.T) {
	checker := New()

	rec := httptest.NewRecorder()
	checker.Ready()(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 before ready, got %d", rec.Code)
	}

	checker.SetReady(true)
	rec = httptest.NewRecorder()
	checker.Ready()(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 after ready, got %d", rec.Code)
	}

	checker.SetReady(false)
	rec = httptest.NewRecorder()
	checker.Ready()(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 after draining, got %d", rec.Code)
	}
}
