package metrics

import (
	"io"
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func gatherValues(t *testing.T, reg *prometheus.Registry) map[string]float64 {
	t.Helper()

	families, err := reg.Gather()
	require.NoError(t, err)

	values := make(map[string]float64)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				values[mf.GetName()] += m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				values[mf.GetName()] += m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				values[mf.GetName()] += float64(m.GetHistogram().GetSampleCount())
			}
		}
	}

	return values
}

func TestPrometheusCollector_LazyRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_ = NewPrometheus(reg, "")

	families, err := reg.Gather()
	require.NoError(t, err)
	require.Empty(t, families)
}

func TestPrometheusCollector_Records(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPrometheus(reg, "test")

	p.RecordRowsComputed(0, 25, 0.2)
	p.RecordRowsComputed(1, 25, 0.3)
	p.RecordContribution(1, 2500, 0.01)
	p.RecordRowsEncoded(100)
	p.RecordTransfer("send", 10000, true)
	p.RecordTransfer("send", 10000, false)
	p.RecordRun(4, 1.5)

	values := gatherValues(t, reg)
	require.InDelta(t, 50, values["test_kernel_rows_computed_total"], 0)
	require.InDelta(t, 2, values["test_kernel_compute_seconds"], 0)
	require.InDelta(t, 2500, values["test_collector_contribution_elements_total"], 0)
	require.InDelta(t, 100, values["test_encoder_rows_encoded_total"], 0)
	require.InDelta(t, 10000, values["test_transport_bytes_total"], 0)
	require.InDelta(t, 2, values["test_transport_transfers_total"], 0)
	require.InDelta(t, 4, values["test_run_workers"], 0)
	require.InDelta(t, 1, values["test_run_duration_seconds"], 0)
}

func TestServer_MetricsAndHealth(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPrometheus(reg, "srv")
	p.RecordRowsEncoded(7)

	srv := NewServer("127.0.0.1:0", reg, nil)
	require.NoError(t, srv.Start(t.Context()))
	t.Cleanup(func() { _ = srv.Shutdown() })

	get := func(path string) string {
		req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, "http://"+srv.Addr()+path, nil)
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)

		return string(body)
	}

	require.Equal(t, "OK\n", get("/health"))
	require.Contains(t, get("/metrics"), "srv_encoder_rows_encoded_total 7")
}
