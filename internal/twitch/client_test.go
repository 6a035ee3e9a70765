package twitch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jaedolph/scct-predictions/pkg/types"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, apiURL, authURL string) *Client {
	t.Helper()

	client, err := New(&Config{
		APIURL:           apiURL,
		AuthURL:          authURL,
		ClientID:         "client-id",
		ClientSecret:     "client-secret",
		BroadcasterLogin: "some_streamer",
		AuthToken:        "token-1",
		RefreshToken:     "refresh-1",
		CallTimeout:      2 * time.Second,
		MaxAttempts:      3,
		RetryBaseDelay:   1 * time.Millisecond,
		RetryMaxDelay:    5 * time.Millisecond,
		MaxRateWait:      50 * time.Millisecond,
		Logger:           zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	return client
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

const usersBody = `{"data":[{"id":"141981764","login":"some_streamer","display_name":"SomeStreamer"}]}`

func predictionBody(status, winningOutcomeID string) string {
	return fmt.Sprintf(`{"data":[{
		"id":"pred-1",
		"broadcaster_id":"141981764",
		"title":"Maru vs Serral (BO5)",
		"status":"%s",
		"winning_outcome_id":"%s",
		"outcomes":[{"id":"out-a","title":"Maru"},{"id":"out-b","title":"Serral"}],
		"prediction_window":120,
		"created_at":"2025-06-01T12:00:00Z"
	}]}`, status, winningOutcomeID)
}

func TestCreate_SendsHeadersAndReturnsID(t *testing.T) {
	var idemKey, auth, clientID string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/users":
			writeJSON(w, http.StatusOK, usersBody)
		case r.URL.Path == "/predictions" && r.Method == http.MethodPost:
			idemKey = r.Header.Get("Idempotency-Key")
			auth = r.Header.Get("Authorization")
			clientID = r.Header.Get("Client-Id")
			writeJSON(w, http.StatusOK, predictionBody("ACTIVE", ""))
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, server.URL+"/oauth2/token")

	id, err := client.Create(context.Background(), "Maru vs Serral (BO5)", []string{"Maru", "Serral"}, 120)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if id != "pred-1" {
		t.Errorf("id = %q, want %q", id, "pred-1")
	}
	if auth != "Bearer token-1" {
		t.Errorf("Authorization = %q, want %q", auth, "Bearer token-1")
	}
	if clientID != "client-id" {
		t.Errorf("Client-Id = %q, want %q", clientID, "client-id")
	}
	if idemKey == "" {
		t.Error("Idempotency-Key header not set on create")
	}
}

func TestCreate_RejectsWrongOutcomeCount(t *testing.T) {
	client := newTestClient(t, "http://unused", "http://unused")

	_, err := client.Create(context.Background(), "title", []string{"only-one"}, 120)
	if err == nil {
		t.Fatal("expected error for one outcome")
	}
}

func TestWithRetry_TransientThenSuccess(t *testing.T) {
	var mu sync.Mutex
	attempts := 0

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/users" {
			writeJSON(w, http.StatusOK, usersBody)
			return
		}
		mu.Lock()
		attempts++
		n := attempts
		mu.Unlock()
		if n == 1 {
			writeJSON(w, http.StatusInternalServerError, `{"error":"Internal Server Error","status":500,"message":"boom"}`)
			return
		}
		writeJSON(w, http.StatusOK, predictionBody("LOCKED", ""))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, server.URL+"/oauth2/token")

	err := client.Lock(context.Background(), "pred-1")
	if err != nil {
		t.Fatalf("Lock failed: %v", err)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
}

func TestWithRetry_AttemptsExhausted(t *testing.T) {
	calls := 0

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/users" {
			writeJSON(w, http.StatusOK, usersBody)
			return
		}
		calls++
		writeJSON(w, http.StatusBadGateway, `{"error":"Bad Gateway","status":502,"message":"down"}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, server.URL+"/oauth2/token")

	err := client.Lock(context.Background(), "pred-1")
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3 (MaxAttempts)", calls)
	}
}

func TestAuthExpiry_RefreshAndRetryOnce(t *testing.T) {
	var patchTokens []string
	refreshes := 0

	mux := http.NewServeMux()
	mux.HandleFunc("/users", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, usersBody)
	})
	mux.HandleFunc("/predictions", func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		patchTokens = append(patchTokens, token)
		if token != "token-2" {
			writeJSON(w, http.StatusUnauthorized, `{"error":"Unauthorized","status":401,"message":"Invalid OAuth token"}`)
			return
		}
		writeJSON(w, http.StatusOK, predictionBody("LOCKED", ""))
	})
	mux.HandleFunc("/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		refreshes++
		writeJSON(w, http.StatusOK, `{"access_token":"token-2","refresh_token":"refresh-2"}`)
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	client := newTestClient(t, server.URL, server.URL+"/oauth2/token")

	err := client.Lock(context.Background(), "pred-1")
	if err != nil {
		t.Fatalf("Lock failed: %v", err)
	}
	if refreshes != 1 {
		t.Errorf("refreshes = %d, want 1", refreshes)
	}
	if len(patchTokens) != 2 || patchTokens[0] != "token-1" || patchTokens[1] != "token-2" {
		t.Errorf("patch tokens = %v, want [token-1 token-2]", patchTokens)
	}
}

func TestAuthExpiry_SecondRejectionIsTerminal(t *testing.T) {
	patches := 0

	mux := http.NewServeMux()
	mux.HandleFunc("/users", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, usersBody)
	})
	mux.HandleFunc("/predictions", func(w http.ResponseWriter, r *http.Request) {
		patches++
		writeJSON(w, http.StatusUnauthorized, `{"error":"Unauthorized","status":401,"message":"Invalid OAuth token"}`)
	})
	mux.HandleFunc("/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"access_token":"token-2"}`)
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	client := newTestClient(t, server.URL, server.URL+"/oauth2/token")

	err := client.Lock(context.Background(), "pred-1")
	if err == nil {
		t.Fatal("expected terminal error after second auth rejection")
	}
	if !types.IsAuthExpired(err) {
		t.Errorf("error not classified as auth expiry: %v", err)
	}
	if patches != 2 {
		t.Errorf("patches = %d, want 2 (original + one retry)", patches)
	}
}

func TestRateLimit_WaitBeyondBoundFails(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/users", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, usersBody)
	})
	mux.HandleFunc("/predictions", func(w http.ResponseWriter, r *http.Request) {
		// Reset far beyond the client's bounded wait.
		w.Header().Set("Ratelimit-Reset", fmt.Sprintf("%d", time.Now().Add(1*time.Hour).Unix()))
		writeJSON(w, http.StatusTooManyRequests, `{"error":"Too Many Requests","status":429,"message":"slow down"}`)
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	client := newTestClient(t, server.URL, server.URL+"/oauth2/token")

	start := time.Now()
	err := client.Lock(context.Background(), "pred-1")
	if err == nil {
		t.Fatal("expected rate limit error")
	}
	if elapsed := time.Since(start); elapsed > 1*time.Second {
		t.Errorf("call blocked %v, should fail fast when reset exceeds bound", elapsed)
	}
}

func TestLock_ReconcilesAlreadyLocked(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/users", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, usersBody)
	})
	mux.HandleFunc("/predictions", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPatch {
			writeJSON(w, http.StatusBadRequest, `{"error":"Bad Request","status":400,"message":"prediction is not ACTIVE"}`)
			return
		}
		// GET during reconciliation: remote already locked.
		writeJSON(w, http.StatusOK, predictionBody("LOCKED", ""))
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	client := newTestClient(t, server.URL, server.URL+"/oauth2/token")

	err := client.Lock(context.Background(), "pred-1")
	if err != nil {
		t.Fatalf("Lock should reconcile to success, got: %v", err)
	}
}

func TestResolve_ReconcileRejectsDifferentOutcome(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/users", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, usersBody)
	})
	mux.HandleFunc("/predictions", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPatch {
			writeJSON(w, http.StatusBadRequest, `{"error":"Bad Request","status":400,"message":"prediction already resolved"}`)
			return
		}
		// Remote resolved with the other outcome.
		writeJSON(w, http.StatusOK, predictionBody("RESOLVED", "out-b"))
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	client := newTestClient(t, server.URL, server.URL+"/oauth2/token")

	err := client.Resolve(context.Background(), "pred-1", "Maru")
	if err == nil {
		t.Fatal("expected error when remote resolved with a different outcome")
	}
}

func TestResolve_SendsWinningOutcomeID(t *testing.T) {
	var patchBody string

	mux := http.NewServeMux()
	mux.HandleFunc("/users", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, usersBody)
	})
	mux.HandleFunc("/predictions", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPatch {
			buf, _ := io.ReadAll(r.Body)
			patchBody = string(buf)
			writeJSON(w, http.StatusOK, predictionBody("RESOLVED", "out-b"))
			return
		}
		writeJSON(w, http.StatusOK, predictionBody("LOCKED", ""))
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	client := newTestClient(t, server.URL, server.URL+"/oauth2/token")

	err := client.Resolve(context.Background(), "pred-1", "Serral")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !strings.Contains(patchBody, `"winning_outcome_id":"out-b"`) {
		t.Errorf("patch body %q missing winning outcome id", patchBody)
	}
	if !strings.Contains(patchBody, `"status":"RESOLVED"`) {
		t.Errorf("patch body %q missing RESOLVED status", patchBody)
	}
}

func TestCurrent_ReturnsNilWhenNoPredictions(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/users", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, usersBody)
	})
	mux.HandleFunc("/predictions", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"data":[]}`)
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	client := newTestClient(t, server.URL, server.URL+"/oauth2/token")

	remote, err := client.Current(context.Background())
	if err != nil {
		t.Fatalf("Current failed: %v", err)
	}
	if remote != nil {
		t.Errorf("remote = %+v, want nil", remote)
	}
}

func TestCurrent_MapsWinningOutcome(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/users", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, usersBody)
	})
	mux.HandleFunc("/predictions", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, predictionBody("RESOLVED", "out-a"))
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	client := newTestClient(t, server.URL, server.URL+"/oauth2/token")

	remote, err := client.Current(context.Background())
	if err != nil {
		t.Fatalf("Current failed: %v", err)
	}
	if remote == nil {
		t.Fatal("remote = nil, want prediction")
	}
	if remote.Status != StatusResolved {
		t.Errorf("status = %q, want %q", remote.Status, StatusResolved)
	}
	if remote.WinningOutcome != "Maru" {
		t.Errorf("winning outcome = %q, want %q", remote.WinningOutcome, "Maru")
	}
	if remote.WindowSeconds != 120 {
		t.Errorf("window seconds = %d, want 120", remote.WindowSeconds)
	}
	if want := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC); !remote.CreatedAt.Equal(want) {
		t.Errorf("created at = %v, want %v", remote.CreatedAt, want)
	}
}

func TestIdempotencyKey_StablePerTransition(t *testing.T) {
	a := idempotencyKey("pred-1", StatusLocked)
	b := idempotencyKey("pred-1", StatusLocked)
	c := idempotencyKey("pred-1", StatusResolved)

	if a != b {
		t.Errorf("same transition produced different keys: %q vs %q", a, b)
	}
	if a == c {
		t.Error("different transitions must produce different keys")
	}
}
