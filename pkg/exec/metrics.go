package exec

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the counters Executor updates as it runs scripts —
// the same NewCounter-then-Register-if-non-nil shape pkg/index/hnsw.New
// uses, so a caller that doesn't want metrics can pass a nil
// prometheus.Registerer and still get working (unregistered) counters.
type Metrics struct {
	StatementsExecuted   prometheus.Counter
	TxConflictRetries    prometheus.Counter
	TxCommitted          prometheus.Counter
	TxCancelled          prometheus.Counter
	PermissionDenials    prometheus.Counter
	LiveNotificationsSent prometheus.Counter
}

// NewMetrics builds Metrics and registers every counter against reg if
// reg is non-nil (spec §4.5 names "statements executed, transaction
// conflicts retried, and permission denials" as the minimum executor
// metrics surface).
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		StatementsExecuted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nexus_exec_statements_executed_total",
			Help: "Statements completed by the executor, across every script.",
		}),
		TxConflictRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nexus_exec_tx_conflict_retries_total",
			Help: "Times a script was replayed after losing an optimistic-concurrency race.",
		}),
		TxCommitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nexus_exec_tx_committed_total",
			Help: "Transactions committed successfully.",
		}),
		TxCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nexus_exec_tx_cancelled_total",
			Help: "Transactions cancelled, whether by error or explicit CANCEL.",
		}),
		PermissionDenials: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nexus_exec_permission_denials_total",
			Help: "Rows or fields dropped by the SELECT permission pipeline.",
		}),
		LiveNotificationsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nexus_exec_live_notifications_sent_total",
			Help: "Live-query notifications dispatched after a mutation.",
		}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Counter{
		m.StatementsExecuted, m.TxConflictRetries, m.TxCommitted,
		m.TxCancelled, m.PermissionDenials, m.LiveNotificationsSent,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}
