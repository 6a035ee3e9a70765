package healthprobe

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	hc := New()

	if hc == nil {
		t.Fatal("New() returned nil")
	}

	if time.Since(hc.startTime) > 1*time.Second {
		t.Errorf("Start time is too old: %v", hc.startTime)
	}

	if hc.ready.Load() {
		t.Error("HealthChecker should not be ready by default")
	}
	if hc.feedConnected.Load() {
		t.Error("Feed should not be connected by default")
	}
}

func TestHealth_AlwaysReturnsOK(t *testing.T) {
	// Health endpoint should always return 200, regardless of ready state
	hc := New()

	tests := []struct {
		name     string
		setReady bool
	}{
		{name: "not_ready", setReady: false},
		{name: "ready", setReady: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hc.SetReady(tt.setReady)

			handler := hc.Health()
			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			w := httptest.NewRecorder()

			handler(w, req)

			resp := w.Result()
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				t.Errorf("Health handler status = %d, want %d (ready=%v)", resp.StatusCode, http.StatusOK, tt.setReady)
			}

			var healthResp HealthResponse
			if err := json.NewDecoder(resp.Body).Decode(&healthResp); err != nil {
				t.Fatalf("Failed to decode health response: %v", err)
			}
			if healthResp.Status != "healthy" {
				t.Errorf("Status = %s, want healthy", healthResp.Status)
			}
			if healthResp.Uptime == "" {
				t.Error("Uptime is empty")
			}
		})
	}
}

func TestHealth_ReportsFeedConnectivity(t *testing.T) {
	hc := New()
	handler := hc.Health()

	for _, connected := range []bool{false, true} {
		hc.SetFeedConnected(connected)

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		w := httptest.NewRecorder()
		handler(w, req)

		var healthResp HealthResponse
		if err := json.NewDecoder(w.Body).Decode(&healthResp); err != nil {
			t.Fatalf("Failed to decode health response: %v", err)
		}
		if healthResp.FeedConnected != connected {
			t.Errorf("FeedConnected = %v, want %v", healthResp.FeedConnected, connected)
		}
	}
}

func TestReady_StateChanges(t *testing.T) {
	// Ready endpoint responds to state changes; feed flapping does not
	// affect the status code.
	hc := New()
	handler := hc.Ready()

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	w := httptest.NewRecorder()
	handler(w, req)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Initial ready status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}

	var notReady HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&notReady); err != nil {
		t.Fatalf("Failed to decode ready response: %v", err)
	}
	if notReady.Status != "not_ready" {
		t.Errorf("Status = %s, want not_ready", notReady.Status)
	}
	if notReady.Message == "" {
		t.Error("Message is empty for not_ready state")
	}

	hc.SetReady(true)
	hc.SetFeedConnected(false)
	req = httptest.NewRequest(http.MethodGet, "/ready", nil)
	w = httptest.NewRecorder()
	handler(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("Ready status after SetReady(true) = %d, want %d", w.Code, http.StatusOK)
	}

	hc.SetReady(false)
	req = httptest.NewRequest(http.MethodGet, "/ready", nil)
	w = httptest.NewRecorder()
	handler(w, req)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Ready status after SetReady(false) = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}

func TestHealthChecker_ConcurrentAccess(t *testing.T) {
	// Concurrent access must not cause data races
	hc := New()
	handler := hc.Ready()

	done := make(chan bool)

	go func() {
		for i := 0; i < 100; i++ {
			hc.SetReady(i%2 == 0)
			hc.SetFeedConnected(i%3 == 0)
		}
		done <- true
	}()

	go func() {
		for i := 0; i < 100; i++ {
			req := httptest.NewRequest(http.MethodGet, "/ready", nil)
			w := httptest.NewRecorder()
			handler(w, req)
		}
		done <- true
	}()

	<-done
	<-done
}
