package checkout

import "sync/atomic"

// Metrics counts workflow outcomes. One Metrics is usually shared by every
// workflow of a process.
type Metrics struct {
	QuotesRequested atomic.Uint64
	QuotesApplied   atomic.Uint64
	QuotesFailed    atomic.Uint64
	QuotesStale     atomic.Uint64
	OrdersRejected  atomic.Uint64
	OrdersSubmitted atomic.Uint64
	OrdersSucceeded atomic.Uint64
	OrdersFailed    atomic.Uint64
}

// Snapshot returns the counters keyed by their metric names.
func (m *Metrics) Snapshot() map[string]uint64 {
	return map[string]uint64{
		"quotes_requested": m.QuotesRequested.Load(),
		"quotes_applied":   m.QuotesApplied.Load(),
		"quotes_failed":    m.QuotesFailed.Load(),
		"quotes_stale":     m.QuotesStale.Load(),
		"orders_rejected":  m.OrdersRejected.Load(),
		"orders_submitted": m.OrdersSubmitted.Load(),
		"orders_succeeded": m.OrdersSucceeded.Load(),
		"orders_failed":    m.OrdersFailed.Load(),
	}
}
