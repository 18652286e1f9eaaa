package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	if metrics == nil {
		t.Fatal("NewMetrics returned nil")
	}
	if metrics.HTTPRequestsTotal == nil {
		t.Error("HTTPRequestsTotal is nil")
	}
	if metrics.AuthzDecisionsTotal == nil {
		t.Error("AuthzDecisionsTotal is nil")
	}
	if metrics.CacheHitsTotal == nil {
		t.Error("CacheHitsTotal is nil")
	}
}

func TestMetrics_RecordDecision(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())

	metrics.RecordDecision("planner", "manageGuests", true)
	metrics.RecordDecision("assistant", "manageGuests", false)
	metrics.RecordDecision("", "viewGuests", false)

	allowed := testutil.ToFloat64(metrics.AuthzDecisionsTotal.WithLabelValues("planner", "manageGuests", "true"))
	if allowed != 1 {
		t.Errorf("Expected 1 allowed planner decision, got %v", allowed)
	}

	denied := testutil.ToFloat64(metrics.AuthzDeniedTotal.WithLabelValues("manageGuests"))
	if denied != 1 {
		t.Errorf("Expected 1 denied manageGuests decision, got %v", denied)
	}

	// Empty role is recorded under "none"
	none := testutil.ToFloat64(metrics.AuthzDecisionsTotal.WithLabelValues("none", "viewGuests", "false"))
	if none != 1 {
		t.Errorf("Expected 1 decision for non-member, got %v", none)
	}
}

func TestMetrics_HTTPMiddleware(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())

	handler := metrics.HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/weddings", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	count := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("GET", "/weddings", "418"))
	if count != 1 {
		t.Errorf("Expected 1 request recorded, got %v", count)
	}
}

func TestMetrics_Handler(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())
	metrics.RecordDecision("owner", "manageFinance", true)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 from metrics handler, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "veil_authz_decisions_total") {
		t.Error("Metrics output missing veil_authz_decisions_total")
	}
}
