// Package queue implements the stub order service's completion pipeline: a
// delay queue of order status events and an autoscaled pool of workers that
// apply them to the order store and publish the result.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/fairyhunter13/storefront-checkout/internal/config"
	"github.com/fairyhunter13/storefront-checkout/internal/events"
	"github.com/fairyhunter13/storefront-checkout/internal/model"
	"github.com/fairyhunter13/storefront-checkout/internal/obs"
	"github.com/fairyhunter13/storefront-checkout/internal/sequence"
	"github.com/fairyhunter13/storefront-checkout/internal/store"
)

// Manager coordinates workers processing queued events and scaling.
type Manager struct {
	cfg    config.Config
	q      *Queue
	st     *store.Orders
	pub    events.Publisher
	seq    sequence.Sequencer
	ctx    context.Context
	cancel context.CancelFunc

	mu            sync.Mutex
	workerCancels []context.CancelFunc
}

// NewManager constructs a Manager. A nil publisher logs events instead.
func NewManager(cfg config.Config, q *Queue, st *store.Orders, pub events.Publisher) *Manager {
	if pub == nil {
		pub = events.LogPublisher{Stream: cfg.OrderCompletedStream}
	}
	return &Manager{cfg: cfg, q: q, st: st, pub: pub}
}

// Start begins processing and autoscaling in the background.
func (m *Manager) Start(parent context.Context) {
	m.ctx, m.cancel = context.WithCancel(parent)
	m.q.Start(m.ctx, m.cfg.QueueHighWatermark)
	m.addWorkers(m.cfg.InitialWorkerCount)
	go m.scaler()
}

// Stop cancels background routines and stops workers.
func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.mu.Lock()
	for _, c := range m.workerCancels {
		c()
	}
	m.workerCancels = nil
	m.mu.Unlock()
}

// scalePolicy decides worker pool changes from the number of events that are
// already due. Events still waiting for their due time never count: a pool
// sized for them would sit idle until the delay elapses.
type scalePolicy struct {
	min, max       int
	perWorker      int
	downAfterTicks int
	idleTicks      int
}

// step returns +1, -1 or 0 for the observed due backlog and worker count.
func (p *scalePolicy) step(due, workers int) int {
	switch {
	case due > workers*p.perWorker && workers < p.max:
		p.idleTicks = 0
		return 1
	case due > 0:
		p.idleTicks = 0
		return 0
	}
	p.idleTicks++
	if p.idleTicks >= p.downAfterTicks && workers > p.min {
		p.idleTicks = 0
		return -1
	}
	return 0
}

func (m *Manager) scaler() {
	t := time.NewTicker(m.cfg.ScaleInterval)
	defer t.Stop()
	policy := scalePolicy{
		min:            m.cfg.WorkerMin,
		max:            m.cfg.WorkerMax,
		perWorker:      m.cfg.ScaleUpBacklogPerWorker,
		downAfterTicks: m.cfg.ScaleDownIdleTicks,
	}
	for {
		select {
		case <-m.ctx.Done():
			return
		case <-t.C:
			due := m.q.DueSize()
			switch policy.step(due, m.WorkerCount()) {
			case 1:
				m.addWorkers(1)
				obs.Logger.Info("workers_scaled", "direction", "up", "worker_count", m.WorkerCount(), "due_backlog", due)
			case -1:
				m.removeWorkers(1)
				obs.Logger.Info("workers_scaled", "direction", "down", "worker_count", m.WorkerCount())
			}
		}
	}
}

func (m *Manager) addWorkers(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := 0; i < n; i++ {
		wctx, cancel := context.WithCancel(m.ctx)
		m.workerCancels = append(m.workerCancels, cancel)
		go m.worker(wctx)
	}
}

// removeWorkers stops up to n of the most recently started workers.
func (m *Manager) removeWorkers(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n = min(n, len(m.workerCancels))
	for _, c := range m.workerCancels[len(m.workerCancels)-n:] {
		c()
	}
	m.workerCancels = m.workerCancels[:len(m.workerCancels)-n]
}

// worker applies due events to the store and publishes applied ones.
func (m *Manager) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-m.q.Out():
			m.process(ctx, ev)
			m.q.MarkProcessed()
		}
	}
}

func (m *Manager) process(ctx context.Context, ev model.OrderEvent) {
	o, ok := m.st.Apply(ev)
	if !ok {
		obs.Logger.Debug("order_event_skipped", "order_id", ev.OrderID, "sequence", ev.Sequence)
		return
	}
	obs.Logger.Info("order_status_changed", "order_id", o.ID, "status", string(o.Status), "sequence", ev.Sequence)
	if !o.Status.IsTerminal() {
		return
	}
	if err := m.pub.Publish(ctx, o); err != nil {
		obs.Logger.Error("order_event_publish_failed", "order_id", o.ID, "error", err)
	}
}

// Schedule queues a move of orderID to status at due. It returns false once
// intake is closed.
func (m *Manager) Schedule(orderID string, status model.OrderStatus, due time.Time) bool {
	return m.q.Enqueue(model.OrderEvent{
		OrderID:  orderID,
		Status:   status,
		DueAt:    due,
		Sequence: m.NextSequence(),
	})
}

// WorkerCount returns the current number of workers.
func (m *Manager) WorkerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.workerCancels)
}

// NextSequence returns the next sequence number.
func (m *Manager) NextSequence() uint64 { return m.seq.Next() }

// IsShuttingDown reports whether new enqueues are rejected.
func (m *Manager) IsShuttingDown() bool { return m.q.IsShuttingDown() }

// CloseIntake disallows future enqueues.
func (m *Manager) CloseIntake() { m.q.CloseIntake() }

// Stats is a point-in-time view of the completion pipeline.
type Stats struct {
	Workers   int    `json:"workers"`
	Due       int    `json:"due"`
	Waiting   int    `json:"waiting"`
	Enqueued  uint64 `json:"enqueued"`
	Processed uint64 `json:"processed"`
}

// Stats reports worker and queue counters.
func (m *Manager) Stats() Stats {
	enq, proc, backlog, _ := m.q.Metrics()
	due := m.q.DueSize()
	return Stats{
		Workers:   m.WorkerCount(),
		Due:       due,
		Waiting:   max(backlog-due, 0),
		Enqueued:  enq,
		Processed: proc,
	}
}

// DrainUntil blocks until the queue is fully drained or context is done.
func (m *Manager) DrainUntil(ctx context.Context) bool {
	for {
		enq, proc, backlog, depth := m.q.Metrics()
		if backlog == 0 && depth == 0 && enq == proc {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(50 * time.Millisecond):
		}
	}
}
