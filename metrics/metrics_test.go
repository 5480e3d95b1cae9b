package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterTwice(t *testing.T) {
	assert.NotPanics(t, func() {
		Register()
		Register()
	})
}

func TestMetricNames(t *testing.T) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(RequestsTotal, StreamDeltasTotal, InFlight)

	RequestsTotal.WithLabelValues("stream", "success").Inc()
	StreamDeltasTotal.Add(2)

	mfs, err := reg.Gather()
	require.NoError(t, err)

	names := map[string]float64{}
	for _, mf := range mfs {
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				names[mf.GetName()] += m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				names[mf.GetName()] += m.GetGauge().GetValue()
			}
		}
	}
	assert.GreaterOrEqual(t, names["analyze_requests_total"], 1.0)
	assert.GreaterOrEqual(t, names["analyze_stream_deltas_total"], 2.0)
	assert.Contains(t, names, "analyze_in_flight")
}
