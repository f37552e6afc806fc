package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRegistration(t *testing.T) {
	t.Run("PersistenceOperations", func(t *testing.T) {
		PersistenceOperations.WithLabelValues("save_room", "success").Inc()
		val := testutil.ToFloat64(PersistenceOperations.WithLabelValues("save_room", "success"))
		if val < 1 {
			t.Errorf("expected PersistenceOperations to be at least 1, got %v", val)
		}
	})

	t.Run("TickDuration", func(t *testing.T) {
		TickDuration.WithLabelValues("board").Observe(0.01)
	})

	t.Run("TicksTotal", func(t *testing.T) {
		TicksTotal.WithLabelValues("board").Inc()
		val := testutil.ToFloat64(TicksTotal.WithLabelValues("board"))
		if val < 1 {
			t.Errorf("expected TicksTotal to be at least 1, got %v", val)
		}
	})

	t.Run("ConnectionGauge", func(t *testing.T) {
		IncConnection()
		DecConnection()
	})
}
