package exec

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsNilRegistererWorks(t *testing.T) {
	m, err := NewMetrics(nil)
	require.NoError(t, err)
	require.NotNil(t, m.StatementsExecuted)
	m.StatementsExecuted.Inc()
	m.TxConflictRetries.Inc()
	m.TxCommitted.Inc()
	m.TxCancelled.Inc()
	m.PermissionDenials.Inc()
	m.LiveNotificationsSent.Inc()
}

func TestNewMetricsRegistersAllCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)
	require.NotNil(t, m)

	families, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, families, 6)
}

func TestNewMetricsDuplicateRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewMetrics(reg)
	require.NoError(t, err)
	_, err = NewMetrics(reg)
	require.Error(t, err)
}
