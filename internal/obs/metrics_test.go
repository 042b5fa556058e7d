package obs

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// counterValue gathers reg and returns the value of the counter series with
// the given name and labels, or 0 when absent.
func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)

	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	series:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue series
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func TestInit_RegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NotPanics(t, func() { Init(reg) })

	ObserveRemoteCall("/complaints/list", "ok", 10*time.Millisecond)
	assert.GreaterOrEqual(t,
		counterValue(t, reg, "complaintdesk_remote_calls_total", map[string]string{"op": "/complaints/list", "outcome": "ok"}),
		1.0)
}

func TestInstrument_UsesRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	Init(reg)

	r := chi.NewRouter()
	r.Use(Instrument)
	r.Get("/api/complaints/{id}/actions", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	labels := map[string]string{"method": "GET", "route": "/api/complaints/{id}/actions", "status": "418"}
	before := counterValue(t, reg, "complaintdesk_http_requests_total", labels)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/complaints/42/actions", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, before+1, counterValue(t, reg, "complaintdesk_http_requests_total", labels))
}

func TestObserveDecision(t *testing.T) {
	reg := prometheus.NewRegistry()
	Init(reg)

	labels := map[string]string{"kind": "redirect"}
	before := counterValue(t, reg, "complaintdesk_navigation_decisions_total", labels)
	ObserveDecision("redirect")
	assert.Equal(t, before+1, counterValue(t, reg, "complaintdesk_navigation_decisions_total", labels))
}
