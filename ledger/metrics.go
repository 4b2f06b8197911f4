package ledger

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	CommandsTotal  *prometheus.CounterVec
	CommitDuration *prometheus.HistogramVec
	LockWait       *prometheus.HistogramVec
	ScanFallbacks  *prometheus.CounterVec
	OpenAccounts   prometheus.Gauge
}

func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		CommandsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_commands_total",
				Help: "Total ledger commands by operation and outcome.",
			},
			[]string{"op", "outcome"},
		),
		CommitDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ledger_commit_duration_seconds",
				Help:    "Time spent inside the account critical section.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op"},
		),
		LockWait: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ledger_lock_wait_seconds",
				Help:    "Time spent waiting for exclusive access to an account.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op"},
		),
		ScanFallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_scan_fallbacks_total",
				Help: "Unknown scan codes by fallback policy.",
			},
			[]string{"policy"},
		),
		OpenAccounts: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "ledger_open_accounts",
				Help: "Accounts with an open session.",
			},
		),
	}

	if registry != nil {
		registry.MustRegister(
			m.CommandsTotal,
			m.CommitDuration,
			m.LockWait,
			m.ScanFallbacks,
			m.OpenAccounts,
		)
	}

	return m
}

func (m *Metrics) observeCommand(op string, err error) {
	if m == nil {
		return
	}
	m.CommandsTotal.WithLabelValues(op, reason(err)).Inc()
}

func (m *Metrics) observeCommit(op string, d time.Duration) {
	if m == nil {
		return
	}
	m.CommitDuration.WithLabelValues(op).Observe(d.Seconds())
}

func (m *Metrics) observeLockWait(op string, d time.Duration) {
	if m == nil {
		return
	}
	m.LockWait.WithLabelValues(op).Observe(d.Seconds())
}

func (m *Metrics) observeFallback(policy FallbackPolicy) {
	if m == nil {
		return
	}
	m.ScanFallbacks.WithLabelValues(string(policy)).Inc()
}

func (m *Metrics) setOpenAccounts(n int) {
	if m == nil {
		return
	}
	m.OpenAccounts.Set(float64(n))
}
