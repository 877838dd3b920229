package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestNilRecorderMethodsAreNoops(t *testing.T) {
	var r *Recorder
	require.NotPanics(t, func() {
		r.ObserveStage("embed", time.Now())
		r.ObserveQuery("rag", "", 3, 0.01)
	})
}

func TestObserveQueryIncrementsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.ObserveQuery("rag", "", 2, 0.05)
	r.ObserveQuery("ambiguous", "InvalidRequest", 0, 0)

	families, err := reg.Gather()
	require.NoError(t, err)

	var queriesTotal *dto.MetricFamily
	for _, f := range families {
		if f.GetName() == "nobel_queries_total" {
			queriesTotal = f
		}
	}
	require.NotNil(t, queriesTotal)
	require.Len(t, queriesTotal.GetMetric(), 2)
}
