package metrics

import (
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestObserveUpdatesGauges(t *testing.T) {
	s := New()
	s.Observe(3, map[string]int{"Person": 2, "Note": 1})

	var m dto.Metric
	require.NoError(t, s.NodesTotal.Write(&m))
	require.Equal(t, 3.0, m.GetGauge().GetValue())
}

func TestObserveResetsStaleTypes(t *testing.T) {
	s := New()
	s.Observe(1, map[string]int{"Person": 1})
	s.Observe(1, map[string]int{"Note": 1})

	var m dto.Metric
	require.NoError(t, s.NodesByType.WithLabelValues("Person").Write(&m))
	require.Equal(t, 0.0, m.GetGauge().GetValue())
}
