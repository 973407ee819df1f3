package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	apperrors "github.com/offerboard/backend/internal/errors"
	"github.com/offerboard/backend/internal/logger"
)

func TestRequestID(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logger.RequestID(r.Context())
	}))

	t.Run("generated", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		if seen == "" {
			t.Fatal("expected a generated request id on the context")
		}
		if w.Header().Get(apperrors.RequestIDHeader) != seen {
			t.Errorf("expected header %q, got %q", seen, w.Header().Get(apperrors.RequestIDHeader))
		}
	})

	t.Run("propagated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(apperrors.RequestIDHeader, "req-42")
		handler.ServeHTTP(httptest.NewRecorder(), req)
		if seen != "req-42" {
			t.Errorf("expected req-42, got %q", seen)
		}
	})
}

func TestLogging_LevelByStatus(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{http.StatusOK, "info"},
		{http.StatusNotFound, "warn"},
		{http.StatusInternalServerError, "error"},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		log := logger.New(&logger.Config{Output: &buf, Level: logger.LevelInfo})
		handler := Logging(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		}))

		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/offer", nil))

		var entry map[string]interface{}
		if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
			t.Fatalf("status %d: failed to parse log line %q: %v", tt.status, buf.String(), err)
		}
		if entry["level"] != tt.level {
			t.Errorf("status %d: expected level %s, got %v", tt.status, tt.level, entry["level"])
		}
	}
}

func TestCORS(t *testing.T) {
	called := false
	handler := CORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	t.Run("preflight", func(t *testing.T) {
		called = false
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/offer", nil))

		if w.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", w.Code)
		}
		if strings.TrimSpace(w.Body.String()) != "{}" {
			t.Errorf("expected empty object body, got %q", w.Body.String())
		}
		if w.Header().Get("Access-Control-Allow-Methods") == "" {
			t.Error("expected allowed methods on preflight")
		}
		if called {
			t.Error("preflight must not reach the handler")
		}
	})

	t.Run("simple request", func(t *testing.T) {
		called = false
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/offer", nil))

		if w.Header().Get("Access-Control-Allow-Origin") != "*" {
			t.Errorf("expected wildcard origin, got %q", w.Header().Get("Access-Control-Allow-Origin"))
		}
		if !called {
			t.Error("expected the handler to run")
		}
	})
}

func TestRecoverer(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(&logger.Config{Output: &buf})
	handler := Recoverer(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/offer", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	var resp apperrors.ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if resp.Error.Code != http.StatusInternalServerError {
		t.Errorf("expected code 500 in envelope, got %d", resp.Error.Code)
	}
	if !strings.Contains(buf.String(), "panic recovered") {
		t.Error("expected the panic to be logged")
	}
}

func TestChainOrder(t *testing.T) {
	var order []string
	mw := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}), mw("a"), mw("b"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if strings.Join(order, ",") != "a,b" {
		t.Errorf("expected a,b got %v", order)
	}
}

func TestSecurityHeaders(t *testing.T) {
	w := httptest.NewRecorder()
	SecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})).
		ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("expected nosniff header")
	}
}
