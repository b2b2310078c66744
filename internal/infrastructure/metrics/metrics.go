package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the ledger and snapshot Prometheus metrics. All methods are
// nil-safe so tests can pass a nil *Metrics.
type Metrics struct {
	EntriesPosted       prometheus.Counter
	BatchesPosted       *prometheus.CounterVec
	DuplicateBatches    *prometheus.CounterVec
	ReversalsPosted     prometheus.Counter
	SnapshotsCaptured   *prometheus.CounterVec
	SnapshotWarnings    *prometheus.CounterVec
	AccountsProvisioned prometheus.Counter
}

// New creates and registers all metrics.
func New() *Metrics {
	return &Metrics{
		EntriesPosted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ledger_entries_posted_total",
			Help: "Total ledger entries persisted",
		}),
		BatchesPosted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_batches_total",
			Help: "Total journal batches by post status",
		}, []string{"status"}),
		DuplicateBatches: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_duplicate_batches_total",
			Help: "Duplicate batch submissions by kind (full or partial)",
		}, []string{"kind"}),
		ReversalsPosted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ledger_reversals_total",
			Help: "Total reversal batches posted",
		}),
		SnapshotsCaptured: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fx_snapshots_captured_total",
			Help: "Total FX snapshots persisted by snapshot type",
		}, []string{"type"}),
		SnapshotWarnings: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fx_snapshot_warnings_total",
			Help: "Advisory snapshot validation warnings by reason",
		}, []string{"reason"}),
		AccountsProvisioned: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ledger_accounts_provisioned_total",
			Help: "Total chart-of-accounts rows created by the provisioner",
		}),
	}
}

// IncBatch records a posted batch by status.
func (m *Metrics) IncBatch(status string, entries int) {
	if m == nil {
		return
	}

	m.BatchesPosted.WithLabelValues(status).Inc()
	m.EntriesPosted.Add(float64(entries))
}

// IncDuplicate records a duplicate batch submission.
func (m *Metrics) IncDuplicate(kind string) {
	if m == nil {
		return
	}

	m.DuplicateBatches.WithLabelValues(kind).Inc()
}

// IncReversal records a posted reversal batch.
func (m *Metrics) IncReversal() {
	if m == nil {
		return
	}

	m.ReversalsPosted.Inc()
}

// IncSnapshot records a persisted snapshot.
func (m *Metrics) IncSnapshot(snapshotType string) {
	if m == nil {
		return
	}

	m.SnapshotsCaptured.WithLabelValues(snapshotType).Inc()
}

// IncSnapshotWarning records an advisory validation warning.
func (m *Metrics) IncSnapshotWarning(reason string) {
	if m == nil {
		return
	}

	m.SnapshotWarnings.WithLabelValues(reason).Inc()
}

// IncAccountProvisioned records a created account row.
func (m *Metrics) IncAccountProvisioned() {
	if m == nil {
		return
	}

	m.AccountsProvisioned.Inc()
}
