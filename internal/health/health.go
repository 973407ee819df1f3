package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Status represents the health status of a component
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

// ComponentHealth represents the health of a single component
type ComponentHealth struct {
	Status   Status `json:"status"`
	Message  string `json:"message,omitempty"`
	Duration string `json:"duration,omitempty"`
	// Pending is the mail outbox queue depth, when known.
	Pending *int64 `json:"pending,omitempty"`
}

// HealthResponse represents the full health check response
type HealthResponse struct {
	Status     Status                     `json:"status"`
	Timestamp  string                     `json:"timestamp"`
	Version    string                     `json:"version,omitempty"`
	Components map[string]ComponentHealth `json:"components,omitempty"`
}

// Pinger is anything that can report whether its backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// QueueDepth reports how many messages wait in a queue.
type QueueDepth interface {
	Pending(ctx context.Context) (int64, error)
}

// Checker performs health checks on the store and, when configured, the
// Redis mail outbox.
type Checker struct {
	store        Pinger
	storeDriver  string
	redis        *redis.Client
	outbox       QueueDepth
	version      string
	checkTimeout time.Duration
}

type CheckerConfig struct {
	Store       Pinger
	StoreDriver string
	// Redis is optional. A nil client is left out of readiness.
	Redis *redis.Client
	// Outbox adds the queue depth to the mail_outbox component.
	Outbox  QueueDepth
	Version string
	Timeout time.Duration
}

func NewChecker(cfg *CheckerConfig) *Checker {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &Checker{
		store:        cfg.Store,
		storeDriver:  cfg.StoreDriver,
		redis:        cfg.Redis,
		outbox:       cfg.Outbox,
		version:      cfg.Version,
		checkTimeout: timeout,
	}
}

// CheckStore checks store connectivity
func (c *Checker) CheckStore(ctx context.Context) ComponentHealth {
	start := time.Now()

	if c.store == nil {
		return ComponentHealth{
			Status:  StatusUnhealthy,
			Message: "store not configured",
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.checkTimeout)
	defer cancel()

	if err := c.store.Ping(ctx); err != nil {
		return ComponentHealth{
			Status:   StatusUnhealthy,
			Message:  c.storeDriver + " ping failed",
			Duration: time.Since(start).String(),
		}
	}

	return ComponentHealth{
		Status:   StatusHealthy,
		Message:  c.storeDriver,
		Duration: time.Since(start).String(),
	}
}

// CheckRedis checks Redis connectivity. An unreachable outbox degrades the
// service since logins still work without it.
func (c *Checker) CheckRedis(ctx context.Context) ComponentHealth {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, c.checkTimeout)
	defer cancel()

	if err := c.redis.Ping(ctx).Err(); err != nil {
		return ComponentHealth{
			Status:   StatusDegraded,
			Message:  "redis ping failed",
			Duration: time.Since(start).String(),
		}
	}

	result := ComponentHealth{Status: StatusHealthy}
	if c.outbox != nil {
		n, err := c.outbox.Pending(ctx)
		if err != nil {
			result.Status = StatusDegraded
			result.Message = "outbox length unavailable"
		} else {
			result.Pending = &n
		}
	}
	result.Duration = time.Since(start).String()
	return result
}

// Check performs a basic health check (liveness)
func (c *Checker) Check(ctx context.Context) *HealthResponse {
	return &HealthResponse{
		Status:    StatusHealthy,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   c.version,
	}
}

// DeepCheck performs a comprehensive health check (readiness)
func (c *Checker) DeepCheck(ctx context.Context) *HealthResponse {
	response := &HealthResponse{
		Status:     StatusHealthy,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Version:    c.version,
		Components: make(map[string]ComponentHealth),
	}

	checks := map[string]func(context.Context) ComponentHealth{
		"store": c.CheckStore,
	}
	if c.redis != nil {
		checks["mail_outbox"] = c.CheckRedis
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	for name, check := range checks {
		wg.Add(1)
		go func(n string, ch func(context.Context) ComponentHealth) {
			defer wg.Done()
			result := ch(ctx)
			mu.Lock()
			response.Components[n] = result
			mu.Unlock()
		}(name, check)
	}
	wg.Wait()

	for _, comp := range response.Components {
		if comp.Status == StatusUnhealthy {
			response.Status = StatusUnhealthy
			break
		} else if comp.Status == StatusDegraded && response.Status == StatusHealthy {
			response.Status = StatusDegraded
		}
	}

	return response
}

// Handler provides HTTP handlers for health endpoints
type Handler struct {
	checker *Checker
}

func NewHandler(checker *Checker) *Handler {
	return &Handler{checker: checker}
}

func writeResponse(w http.ResponseWriter, response *HealthResponse) {
	w.Header().Set("Content-Type", "application/json")
	if response.Status == StatusUnhealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	json.NewEncoder(w).Encode(response)
}

// LivenessHandler reports that the process is serving requests.
func (h *Handler) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	writeResponse(w, h.checker.Check(r.Context()))
}

// ReadinessHandler reports whether the backends are reachable. Degraded
// still answers 200.
func (h *Handler) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	writeResponse(w, h.checker.DeepCheck(r.Context()))
}

// HealthHandler serves liveness, or readiness with ?deep=true.
func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("deep") == "true" {
		h.ReadinessHandler(w, r)
		return
	}
	h.LivenessHandler(w, r)
}
