package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	m.Handler()(w, req)
	return w.Body.String()
}

func TestMetrics_RecordRequest(t *testing.T) {
	m := New()

	m.RecordRequest("GET", "/offer", 200, 100*time.Millisecond)
	m.RecordRequest("GET", "/offer", 200, 150*time.Millisecond)
	m.RecordRequest("GET", "/offer", 500, 50*time.Millisecond)

	body := scrape(t, m)

	if !strings.Contains(body, `offerboard_http_requests_total{endpoint="/offer",method="GET"} 3`) {
		t.Errorf("expected request count 3, got:\n%s", body)
	}
	if !strings.Contains(body, "offerboard_http_request_duration_seconds") {
		t.Error("expected offerboard_http_request_duration_seconds metric")
	}
	if !strings.Contains(body, `offerboard_http_errors_total{endpoint="/offer",method="GET",status_class="5xx"} 1`) {
		t.Errorf("expected one 5xx error, got:\n%s", body)
	}
}

func TestMetrics_Uptime(t *testing.T) {
	body := scrape(t, New())
	if !strings.Contains(body, "offerboard_uptime_seconds") {
		t.Error("expected offerboard_uptime_seconds metric")
	}
}

func TestMetrics_EndpointNormalization(t *testing.T) {
	m := New()

	m.RecordRequest("POST", "/user/login/507f1f77bcf86cd799439011", 200, 10*time.Millisecond)
	m.RecordRequest("POST", "/user/login/65a1b2c3d4e5f60718293a4b", 409, 10*time.Millisecond)

	body := scrape(t, m)

	if !strings.Contains(body, `offerboard_http_requests_total{endpoint="/user/login/{id}",method="POST"} 2`) {
		t.Errorf("expected normalized endpoint /user/login/{id}, got:\n%s", body)
	}
}

func TestMetrics_LoginOutcomes(t *testing.T) {
	m := New()

	m.RecordLogin("accepted")
	m.RecordLogin("rejected")
	m.RecordLogin("rejected")
	m.RecordCodeDispatch(true)
	m.RecordCodeDispatch(false)
	m.RecordCodeDispatch(true)

	body := scrape(t, m)

	for _, want := range []string{
		`offerboard_logins_total{outcome="accepted"} 1`,
		`offerboard_logins_total{outcome="rejected"} 2`,
		`offerboard_login_codes_total{result="sent"} 2`,
		`offerboard_login_codes_total{result="failed"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q, got:\n%s", want, body)
		}
	}
}

func TestMiddleware(t *testing.T) {
	m := New()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	req := httptest.NewRequest(http.MethodGet, "/offer/507f1f77bcf86cd799439011", nil)
	w := httptest.NewRecorder()
	Middleware(m)(handler).ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", w.Code)
	}

	body := scrape(t, m)
	if !strings.Contains(body, `status_class="4xx"`) {
		t.Errorf("expected a 4xx error entry, got:\n%s", body)
	}
	if !strings.Contains(body, "/offer/{id}") {
		t.Errorf("expected endpoint /offer/{id} in metrics, got:\n%s", body)
	}
}

func TestMetrics_CustomCounter(t *testing.T) {
	m := New()

	m.IncCounter("signups")
	m.IncCounter("signups")

	body := scrape(t, m)
	if !strings.Contains(body, `offerboard_counter{name="signups"} 2`) {
		t.Errorf("expected signups counter = 2, got:\n%s", body)
	}
}
