package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

func testRouter(reg prometheus.Registerer) chi.Router {
	r := chi.NewRouter()
	r.Use(Metrics(WithRegistry(reg)))
	r.Get("/things/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/broken", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	return r
}

func TestMetricsRecordsRequests(t *testing.T) {
	reg := prometheus.NewRegistry()
	router := testRouter(reg)

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/things/42", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}

	byName := map[string]bool{}
	for _, f := range families {
		byName[f.GetName()] = true
		if f.GetName() == "codesync_http_requests_total" {
			m := f.GetMetric()
			if len(m) != 1 {
				t.Fatalf("series = %d, want 1", len(m))
			}
			if got := m[0].GetCounter().GetValue(); got != 3 {
				t.Errorf("requests_total = %v, want 3", got)
			}
			for _, l := range m[0].GetLabel() {
				if l.GetName() == "route" && l.GetValue() != "/things/{id}" {
					t.Errorf("route label = %q, want the chi pattern", l.GetValue())
				}
			}
		}
	}
	if !byName["codesync_http_requests_total"] || !byName["codesync_http_request_duration_seconds"] {
		t.Errorf("expected request metrics to be registered, got %v", byName)
	}
}

func TestMetricsRecordsStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	router := testRouter(reg)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/broken", nil))

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	for _, f := range families {
		if f.GetName() != "codesync_http_requests_total" {
			continue
		}
		for _, l := range f.GetMetric()[0].GetLabel() {
			if l.GetName() == "status" && l.GetValue() != "500" {
				t.Errorf("status label = %q, want 500", l.GetValue())
			}
		}
		return
	}
	t.Error("codesync_http_requests_total not found")
}

func TestMetricsCustomNamespace(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := chi.NewRouter()
	r.Use(Metrics(WithRegistry(reg), WithNamespace("myapp"), WithSubsystem("api")))
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == "myapp_api_requests_total" {
			found = true
		}
	}
	if !found {
		t.Error("custom namespace/subsystem not applied")
	}
}
