package obs

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                            "/",
		"/metrics":                    "/metrics",
		"/v1/areas/dashboard":         "/v1/areas/:route",
		"/v1/areas/dashboard-accueil": "/v1/areas/:route",
		"/v1/auth/login":              "/v1/auth/login",
		"/v1/session?x=1":             "/v1/session",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}

func TestInstrumentCountsRequests(t *testing.T) {
	m := NewMetrics()
	handler := m.Instrument(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	for i := 0; i < 2; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/areas/dashboard", nil))
	}

	got := testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues(http.MethodGet, "/v1/areas/:route", "418"))
	if got != 2 {
		t.Fatalf("expected 2 requests counted, got %v", got)
	}
	if v := testutil.ToFloat64(m.httpInFlight); v != 0 {
		t.Fatalf("in-flight gauge not released: %v", v)
	}
}

func TestMetricsHandlerExposesBuildInfo(t *testing.T) {
	m := NewMetrics()
	m.SetBuildInfo("1.2.3")

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `build_info{version="1.2.3"} 1`) {
		t.Fatalf("build_info missing from exposition")
	}
}

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	if _, err := NewLogger("prod", "loud", "test"); err == nil {
		t.Fatal("expected error")
	}
	logger, err := NewLogger("dev", "debug", "test")
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	_ = logger.Sync()
}
