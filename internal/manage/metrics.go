package manage

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	batchOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "account_batch_operations_total",
			Help: "Total number of account management calls by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	viewTargetsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "account_view_targets_total",
			Help: "Total number of view targets by result code",
		},
		[]string{"result"},
	)
)

func observeOperation(op string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	batchOperationsTotal.WithLabelValues(op, outcome).Inc()
}
