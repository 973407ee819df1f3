package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const namespace = "offerboard"

// Metrics holds all application metrics
type Metrics struct {
	mu sync.RWMutex

	// Request metrics
	requestCount    map[string]*uint64    // endpoint:method -> count
	requestDuration map[string]*Histogram // endpoint:method -> duration histogram
	requestErrors   map[string]*uint64    // endpoint:method:status_class -> count

	loginOutcomes map[string]*uint64
	codesSent     uint64
	codesFailed   uint64

	counters map[string]*uint64

	startTime time.Time
}

// Histogram tracks value distributions
type Histogram struct {
	mu    sync.Mutex
	count uint64
	sum   float64
	// Buckets: 5ms, 10ms, 25ms, 50ms, 100ms, 250ms, 500ms, 1s, 2.5s, 5s, 10s
	buckets    []float64
	bucketVals []uint64
}

func NewHistogram() *Histogram {
	return &Histogram{
		buckets:    []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		bucketVals: make([]uint64, 11),
	}
}

// Observe records a value
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += v
	for i, b := range h.buckets {
		if v <= b {
			h.bucketVals[i]++
		}
	}
}

func New() *Metrics {
	return &Metrics{
		requestCount:    make(map[string]*uint64),
		requestDuration: make(map[string]*Histogram),
		requestErrors:   make(map[string]*uint64),
		loginOutcomes:   make(map[string]*uint64),
		counters:        make(map[string]*uint64),
		startTime:       time.Now(),
	}
}

var defaultMetrics = New()

func Default() *Metrics {
	return defaultMetrics
}

// counter returns the counter for key in set, creating it on first use.
func (m *Metrics) counter(set map[string]*uint64, key string) *uint64 {
	m.mu.RLock()
	c := set[key]
	m.mu.RUnlock()
	if c != nil {
		return c
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if set[key] == nil {
		var zero uint64
		set[key] = &zero
	}
	return set[key]
}

// RecordRequest records a request
func (m *Metrics) RecordRequest(method, path string, statusCode int, duration time.Duration) {
	key := fmt.Sprintf("%s:%s", normalizeEndpoint(path), method)

	atomic.AddUint64(m.counter(m.requestCount, key), 1)

	m.mu.Lock()
	h := m.requestDuration[key]
	if h == nil {
		h = NewHistogram()
		m.requestDuration[key] = h
	}
	m.mu.Unlock()
	h.Observe(duration.Seconds())

	if statusCode >= 400 {
		errorKey := fmt.Sprintf("%s:%d", key, statusCode/100*100)
		atomic.AddUint64(m.counter(m.requestErrors, errorKey), 1)
	}
}

// RecordLogin counts a login attempt by outcome.
func (m *Metrics) RecordLogin(outcome string) {
	atomic.AddUint64(m.counter(m.loginOutcomes, outcome), 1)
}

// RecordCodeDispatch counts handed-off and failed login code deliveries.
func (m *Metrics) RecordCodeDispatch(ok bool) {
	if ok {
		atomic.AddUint64(&m.codesSent, 1)
		return
	}
	atomic.AddUint64(&m.codesFailed, 1)
}

// IncCounter increments a counter
func (m *Metrics) IncCounter(name string) {
	atomic.AddUint64(m.counter(m.counters, name), 1)
}

// normalizeEndpoint replaces store ids with a placeholder so paths group.
func normalizeEndpoint(path string) string {
	parts := strings.Split(path, "/")
	for i, part := range parts {
		if len(part) == 24 && isHex(part) {
			parts[i] = "{id}"
		} else if len(part) > 0 && isNumeric(part) {
			parts[i] = "{id}"
		}
	}
	return strings.Join(parts, "/")
}

func isHex(s string) bool {
	for _, c := range s {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F') {
			return false
		}
	}
	return true
}

func isNumeric(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func sortedKeys[V any](set map[string]V) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Handler returns an HTTP handler for the metrics endpoint
func (m *Metrics) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

		var sb strings.Builder

		uptime := time.Since(m.startTime).Seconds()
		sb.WriteString("# HELP " + namespace + "_uptime_seconds Time since the server started\n")
		sb.WriteString("# TYPE " + namespace + "_uptime_seconds gauge\n")
		sb.WriteString(fmt.Sprintf("%s_uptime_seconds %f\n\n", namespace, uptime))

		sb.WriteString("# HELP " + namespace + "_login_codes_total Login codes handed to the mail sender\n")
		sb.WriteString("# TYPE " + namespace + "_login_codes_total counter\n")
		sb.WriteString(fmt.Sprintf("%s_login_codes_total{result=\"sent\"} %d\n", namespace, atomic.LoadUint64(&m.codesSent)))
		sb.WriteString(fmt.Sprintf("%s_login_codes_total{result=\"failed\"} %d\n\n", namespace, atomic.LoadUint64(&m.codesFailed)))

		m.mu.RLock()
		defer m.mu.RUnlock()

		if len(m.loginOutcomes) > 0 {
			sb.WriteString("# HELP " + namespace + "_logins_total Login attempts by outcome\n")
			sb.WriteString("# TYPE " + namespace + "_logins_total counter\n")
			for _, outcome := range sortedKeys(m.loginOutcomes) {
				sb.WriteString(fmt.Sprintf("%s_logins_total{outcome=\"%s\"} %d\n", namespace, outcome, atomic.LoadUint64(m.loginOutcomes[outcome])))
			}
			sb.WriteString("\n")
		}

		if len(m.requestCount) > 0 {
			sb.WriteString("# HELP " + namespace + "_http_requests_total Total HTTP requests\n")
			sb.WriteString("# TYPE " + namespace + "_http_requests_total counter\n")
			for _, key := range sortedKeys(m.requestCount) {
				parts := strings.SplitN(key, ":", 2)
				if len(parts) == 2 {
					count := atomic.LoadUint64(m.requestCount[key])
					sb.WriteString(fmt.Sprintf("%s_http_requests_total{endpoint=\"%s\",method=\"%s\"} %d\n", namespace, parts[0], parts[1], count))
				}
			}
			sb.WriteString("\n")
		}

		if len(m.requestDuration) > 0 {
			sb.WriteString("# HELP " + namespace + "_http_request_duration_seconds HTTP request latency\n")
			sb.WriteString("# TYPE " + namespace + "_http_request_duration_seconds histogram\n")
			for _, key := range sortedKeys(m.requestDuration) {
				parts := strings.SplitN(key, ":", 2)
				if len(parts) != 2 {
					continue
				}
				h := m.requestDuration[key]
				h.mu.Lock()
				for i, bucket := range h.buckets {
					sb.WriteString(fmt.Sprintf("%s_http_request_duration_seconds_bucket{endpoint=\"%s\",method=\"%s\",le=\"%g\"} %d\n", namespace, parts[0], parts[1], bucket, h.bucketVals[i]))
				}
				sb.WriteString(fmt.Sprintf("%s_http_request_duration_seconds_bucket{endpoint=\"%s\",method=\"%s\",le=\"+Inf\"} %d\n", namespace, parts[0], parts[1], h.count))
				sb.WriteString(fmt.Sprintf("%s_http_request_duration_seconds_sum{endpoint=\"%s\",method=\"%s\"} %f\n", namespace, parts[0], parts[1], h.sum))
				sb.WriteString(fmt.Sprintf("%s_http_request_duration_seconds_count{endpoint=\"%s\",method=\"%s\"} %d\n", namespace, parts[0], parts[1], h.count))
				h.mu.Unlock()
			}
			sb.WriteString("\n")
		}

		if len(m.requestErrors) > 0 {
			sb.WriteString("# HELP " + namespace + "_http_errors_total Total HTTP errors by status class\n")
			sb.WriteString("# TYPE " + namespace + "_http_errors_total counter\n")
			for _, key := range sortedKeys(m.requestErrors) {
				// key format: endpoint:method:statusClass
				parts := strings.Split(key, ":")
				if len(parts) >= 3 {
					count := atomic.LoadUint64(m.requestErrors[key])
					sb.WriteString(fmt.Sprintf("%s_http_errors_total{endpoint=\"%s\",method=\"%s\",status_class=\"%sxx\"} %d\n", namespace, parts[0], parts[1], parts[2][:1], count))
				}
			}
			sb.WriteString("\n")
		}

		if len(m.counters) > 0 {
			sb.WriteString("# HELP " + namespace + "_counter Custom counter metrics\n")
			sb.WriteString("# TYPE " + namespace + "_counter counter\n")
			for _, name := range sortedKeys(m.counters) {
				sb.WriteString(fmt.Sprintf("%s_counter{name=\"%s\"} %d\n", namespace, name, atomic.LoadUint64(m.counters[name])))
			}
		}

		w.Write([]byte(sb.String()))
	}
}

// Middleware records request metrics
func Middleware(m *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := &statusResponseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(wrapped, r)

			m.RecordRequest(r.Method, r.URL.Path, wrapped.statusCode, time.Since(start))
		})
	}
}

type statusResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusResponseWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}
