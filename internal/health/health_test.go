package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/offerboard/backend/internal/mail"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

var healthyStore = pingFunc(func(ctx context.Context) error { return nil })

func TestChecker_BasicHealth(t *testing.T) {
	checker := NewChecker(&CheckerConfig{
		Version: "1.0.0",
		Timeout: 5 * time.Second,
	})

	response := checker.Check(context.Background())

	if response.Status != StatusHealthy {
		t.Errorf("expected status healthy, got %s", response.Status)
	}
	if response.Version != "1.0.0" {
		t.Errorf("expected version 1.0.0, got %s", response.Version)
	}
}

func TestChecker_DeepCheck_StoreOnly(t *testing.T) {
	checker := NewChecker(&CheckerConfig{Store: healthyStore, StoreDriver: "memory"})

	response := checker.DeepCheck(context.Background())

	if response.Status != StatusHealthy {
		t.Errorf("expected healthy, got %s", response.Status)
	}
	if _, ok := response.Components["mail_outbox"]; ok {
		t.Error("unconfigured redis must not be checked")
	}
	if response.Components["store"].Status != StatusHealthy {
		t.Errorf("expected store healthy, got %s", response.Components["store"].Status)
	}
}

func TestChecker_DeepCheck_StoreUnhealthy(t *testing.T) {
	checker := NewChecker(&CheckerConfig{
		Store: pingFunc(func(ctx context.Context) error { return errors.New("connection refused") }),
	})

	response := checker.DeepCheck(context.Background())

	if response.Status != StatusUnhealthy {
		t.Errorf("expected unhealthy, got %s", response.Status)
	}
}

func TestChecker_DeepCheck_NoStore(t *testing.T) {
	response := NewChecker(&CheckerConfig{}).DeepCheck(context.Background())
	if response.Status != StatusUnhealthy {
		t.Errorf("expected unhealthy without a store, got %s", response.Status)
	}
}

func TestChecker_DeepCheck_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { client.Close() })

	checker := NewChecker(&CheckerConfig{Store: healthyStore, Redis: client, Timeout: time.Second})

	response := checker.DeepCheck(context.Background())
	if response.Components["mail_outbox"].Status != StatusHealthy {
		t.Errorf("expected outbox healthy, got %s", response.Components["mail_outbox"].Status)
	}

	mr.Close()
	response = checker.DeepCheck(context.Background())
	if response.Status != StatusDegraded {
		t.Errorf("expected degraded with redis down, got %s", response.Status)
	}
}

func TestChecker_DeepCheck_OutboxDepth(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { client.Close() })

	outbox := mail.NewRedisOutbox(client, "")
	for i := 0; i < 3; i++ {
		if err := outbox.SendCode(context.Background(), "a.a@igs-buchholz.de", 123456); err != nil {
			t.Fatalf("SendCode error: %v", err)
		}
	}

	checker := NewChecker(&CheckerConfig{Store: healthyStore, Redis: client, Outbox: outbox, Timeout: time.Second})
	component := checker.DeepCheck(context.Background()).Components["mail_outbox"]

	if component.Status != StatusHealthy {
		t.Fatalf("expected healthy outbox, got %s", component.Status)
	}
	if component.Pending == nil || *component.Pending != 3 {
		t.Errorf("expected 3 pending messages, got %v", component.Pending)
	}
}

func TestChecker_DeepCheck_OutboxDepthUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { client.Close() })

	failing := depthFunc(func(ctx context.Context) (int64, error) { return 0, errors.New("WRONGTYPE") })
	checker := NewChecker(&CheckerConfig{Store: healthyStore, Redis: client, Outbox: failing, Timeout: time.Second})
	response := checker.DeepCheck(context.Background())

	if response.Status != StatusDegraded {
		t.Errorf("expected degraded, got %s", response.Status)
	}
	if response.Components["mail_outbox"].Pending != nil {
		t.Error("expected no queue depth")
	}
}

type depthFunc func(ctx context.Context) (int64, error)

func (f depthFunc) Pending(ctx context.Context) (int64, error) { return f(ctx) }

func TestHandler_HealthHandler(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		store      Pinger
		wantStatus int
		wantDeep   bool
	}{
		{"liveness", "", nil, http.StatusOK, false},
		{"readiness healthy", "?deep=true", healthyStore, http.StatusOK, true},
		{"readiness unhealthy", "?deep=true", pingFunc(func(ctx context.Context) error { return errors.New("down") }), http.StatusServiceUnavailable, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHandler(NewChecker(&CheckerConfig{Store: tt.store}))
			req := httptest.NewRequest(http.MethodGet, "/health"+tt.query, nil)
			w := httptest.NewRecorder()

			handler.HealthHandler(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, w.Code)
			}
			var resp HealthResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if tt.wantDeep && len(resp.Components) == 0 {
				t.Error("expected components in deep check")
			}
			if !tt.wantDeep && len(resp.Components) != 0 {
				t.Error("liveness must not include components")
			}
		})
	}
}
