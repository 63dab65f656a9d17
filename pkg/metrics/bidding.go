package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// BiddingMetrics records bid throughput and proxy resolution depth.
// A nil *BiddingMetrics is valid and records nothing.
type BiddingMetrics struct {
	placed           *prometheus.CounterVec
	rejected         *prometheus.CounterVec
	resolutionRounds prometheus.Histogram
	jobs             *prometheus.CounterVec
}

// NewBiddingMetrics registers the bidding metrics on the provided registerer.
func NewBiddingMetrics(reg prometheus.Registerer) *BiddingMetrics {
	if reg == nil {
		return &BiddingMetrics{}
	}
	placed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bids_placed_total",
		Help: "Bids written to the ledger, by kind.",
	}, []string{"kind"})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bids_rejected_total",
		Help: "Bids rejected before any write, by reason.",
	}, []string{"reason"})
	rounds := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "proxy_resolution_rounds",
		Help:    "Auto-bids generated per proxy resolution.",
		Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100, 500},
	})
	jobs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduler_jobs_total",
		Help: "Scheduled auction jobs processed, by job type and result.",
	}, []string{"job", "result"})
	reg.MustRegister(placed, rejected, rounds, jobs)
	return &BiddingMetrics{
		placed:           placed,
		rejected:         rejected,
		resolutionRounds: rounds,
		jobs:             jobs,
	}
}

// IncPlaced counts a bid written to the ledger.
func (m *BiddingMetrics) IncPlaced(auto bool) {
	if m == nil || m.placed == nil {
		return
	}
	kind := "manual"
	if auto {
		kind = "auto"
	}
	m.placed.WithLabelValues(kind).Inc()
}

// IncRejected counts a rejected bid under its machine-readable reason.
func (m *BiddingMetrics) IncRejected(reason string) {
	if m == nil || m.rejected == nil {
		return
	}
	m.rejected.WithLabelValues(normalizeLabel(reason)).Inc()
}

// ObserveResolution records how many auto-bids one resolution produced.
func (m *BiddingMetrics) ObserveResolution(rounds int) {
	if m == nil || m.resolutionRounds == nil {
		return
	}
	m.resolutionRounds.Observe(float64(rounds))
}

// IncJob counts a processed scheduler job.
func (m *BiddingMetrics) IncJob(job string, ok bool) {
	if m == nil || m.jobs == nil {
		return
	}
	result := "success"
	if !ok {
		result = "failure"
	}
	m.jobs.WithLabelValues(normalizeLabel(job), result).Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
