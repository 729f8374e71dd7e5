package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics_IndependentRegistries(t *testing.T) {
	a := NewMetrics(prometheus.NewRegistry())
	b := NewMetrics(prometheus.NewRegistry())

	a.TradesTotal.Add(3)
	if got := testutil.ToFloat64(b.TradesTotal); got != 0 {
		t.Errorf("registries should not share collectors, got %v", got)
	}
}

func TestSetChannelMetrics(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.SetChannelMetrics("persist", 256, 1024)

	if got := testutil.ToFloat64(m.ChannelUtilization.WithLabelValues("persist")); got != 0.25 {
		t.Errorf("utilization: got %v, want 0.25", got)
	}
}

func TestReadiness(t *testing.T) {
	h := NewHealthChecker()

	tests := []struct {
		name  string
		setup func()
		want  int
	}{
		{"starting", func() {}, http.StatusServiceUnavailable},
		{"ready", func() { h.SetReady(true) }, http.StatusOK},
		{"halted", h.SetHalted, http.StatusServiceUnavailable},
		{"ready after halt", func() { h.SetReady(true) }, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup()
			rec := httptest.NewRecorder()
			h.ReadinessHandler(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
			if rec.Code != tt.want {
				t.Errorf("got %d, want %d", rec.Code, tt.want)
			}
		})
	}

	if h.IsReady() {
		t.Error("a halted service is never ready")
	}
}
