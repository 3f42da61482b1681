package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findFamily(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() == name {
			return f
		}
	}
	return nil
}

func labelValue(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

func TestMiddlewareLabelsByRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/products/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"a", "b", "c"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/products/"+id, nil))
	}

	family := findFamily(t, reg, "http_requests_total")
	require.NotNil(t, family)
	require.Len(t, family.GetMetric(), 1)

	metric := family.GetMetric()[0]
	assert.Equal(t, "/api/products/{id}", labelValue(metric, "route"))
	assert.Equal(t, "404", labelValue(metric, "status"))
	assert.Equal(t, float64(3), metric.GetCounter().GetValue())
}

func TestDomainCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.LedgerEntry("stock_adjusted")
	m.LedgerEntry("stock_adjusted")
	m.LedgerEntry("created")
	m.AdjustmentRejected()
	m.RateLimited("adjust_stock")

	ledger := findFamily(t, reg, "ledger_entries_total")
	require.NotNil(t, ledger)
	counts := map[string]float64{}
	for _, metric := range ledger.GetMetric() {
		counts[labelValue(metric, "change_type")] = metric.GetCounter().GetValue()
	}
	assert.Equal(t, map[string]float64{"stock_adjusted": 2, "created": 1}, counts)

	rejected := findFamily(t, reg, "stock_adjustments_rejected_total")
	require.NotNil(t, rejected)
	assert.Equal(t, float64(1), rejected.GetMetric()[0].GetCounter().GetValue())

	limited := findFamily(t, reg, "rate_limited_total")
	require.NotNil(t, limited)
	assert.Equal(t, "adjust_stock", labelValue(limited.GetMetric()[0], "scope"))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.Nil(t, New(nil))

	m.LedgerEntry("created")
	m.AdjustmentRejected()
	m.RateLimited("x")

	called := false
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, called)
}

func TestHandlerServesTextFormat(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.LedgerEntry("deleted")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `ledger_entries_total{change_type="deleted"} 1`))
}
