package audit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	pathTransactional = "transactional"
	pathBestEffort    = "best_effort"
)

var (
	recordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_writes_total",
			Help: "Ledger entries written, by write path and action.",
		},
		[]string{"path", "action"},
	)

	recordFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_write_failures_total",
			Help: "Failed ledger writes, by write path.",
		},
		[]string{"path"},
	)
)
