package queue

import (
	"container/heap"
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fairyhunter13/storefront-checkout/internal/model"
	"github.com/fairyhunter13/storefront-checkout/internal/obs"
)

// maxBrokerWait bounds how long the broker sleeps between flushes.
const maxBrokerWait = 50 * time.Millisecond

// dueHeap orders events by due time, then by sequence.
type dueHeap []model.OrderEvent

func (h dueHeap) Len() int { return len(h) }
func (h dueHeap) Less(i, j int) bool {
	if h[i].DueAt.Equal(h[j].DueAt) {
		return h[i].Sequence < h[j].Sequence
	}
	return h[i].DueAt.Before(h[j].DueAt)
}
func (h dueHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *dueHeap) Push(x any)   { *h = append(*h, x.(model.OrderEvent)) }
func (h *dueHeap) Pop() any {
	old := *h
	n := len(old)
	ev := old[n-1]
	*h = old[:n-1]
	return ev
}

// Queue is a delay queue: events sit in the backlog until their DueAt, then
// the broker hands them to workers through a bounded output channel.
type Queue struct {
	mu           sync.Mutex
	backlog      dueHeap
	notify       chan struct{}
	out          chan model.OrderEvent
	shuttingDown atomic.Bool
	now          func() time.Time

	enqueued  atomic.Uint64
	processed atomic.Uint64
}

// New creates a Queue with a buffered output channel.
func New(outBuffer int) *Queue {
	if outBuffer <= 0 {
		outBuffer = 64
	}
	return &Queue{
		notify: make(chan struct{}, 1),
		out:    make(chan model.OrderEvent, outBuffer),
		now:    time.Now,
	}
}

// Start runs the broker loop.
func (q *Queue) Start(ctx context.Context, highWatermark int) {
	go q.broker(ctx, highWatermark)
}

// broker releases due events to the output channel, waking on enqueue, on
// the next due time, or at least every maxBrokerWait.
func (q *Queue) broker(ctx context.Context, highWatermark int) {
	timer := time.NewTimer(maxBrokerWait)
	defer timer.Stop()
	for {
		wait := q.flushDue()
		if highWatermark > 0 {
			if sz := q.BacklogSize(); sz > highWatermark {
				obs.Logger.Warn("queue_backlog_high", "backlog_size", sz, "high_watermark", highWatermark)
			}
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)
		select {
		case <-ctx.Done():
			return
		case <-q.notify:
		case <-timer.C:
		}
	}
}

// flushDue moves due events into the output buffer and returns how long the
// broker may sleep before the next one comes due.
func (q *Queue) flushDue() time.Duration {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := q.now()
	for q.backlog.Len() > 0 && len(q.out) < cap(q.out) {
		if q.backlog[0].DueAt.After(now) {
			break
		}
		q.out <- heap.Pop(&q.backlog).(model.OrderEvent)
	}
	if q.backlog.Len() == 0 || len(q.out) == cap(q.out) {
		return maxBrokerWait
	}
	if d := q.backlog[0].DueAt.Sub(now); d < maxBrokerWait {
		if d <= 0 {
			return time.Millisecond
		}
		return d
	}
	return maxBrokerWait
}

// Enqueue adds an event to the backlog and notifies the broker. It never
// blocks and returns false once intake is closed.
func (q *Queue) Enqueue(ev model.OrderEvent) bool {
	if q.shuttingDown.Load() {
		return false
	}
	q.enqueued.Add(1)
	q.mu.Lock()
	heap.Push(&q.backlog, ev)
	q.mu.Unlock()
	select {
	case q.notify <- struct{}{}:
	default:
	}
	return true
}

// Out exposes the output channel of due events.
func (q *Queue) Out() <-chan model.OrderEvent { return q.out }

// BacklogSize returns the number of enqueued-but-not-yet-output events,
// due or not.
func (q *Queue) BacklogSize() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.backlog.Len()
}

// DueSize returns how many backlog events are already due.
func (q *Queue) DueSize() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := q.now()
	n := 0
	for _, ev := range q.backlog {
		if !ev.DueAt.After(now) {
			n++
		}
	}
	return n
}

// QueueDepth returns backlog plus buffered output items.
func (q *Queue) QueueDepth() int {
	q.mu.Lock()
	bl := q.backlog.Len()
	q.mu.Unlock()
	return bl + len(q.out)
}

// MarkProcessed increases the processed counter.
func (q *Queue) MarkProcessed() { q.processed.Add(1) }

// Metrics returns counters and sizes for observability.
func (q *Queue) Metrics() (enq, proc uint64, backlog, depth int) {
	enq = q.enqueued.Load()
	proc = q.processed.Load()
	backlog = q.BacklogSize()
	depth = q.QueueDepth()
	return enq, proc, backlog, depth
}

// CloseIntake disallows future enqueues.
func (q *Queue) CloseIntake() { q.shuttingDown.Store(true) }

// IsShuttingDown reports if intake has been closed.
func (q *Queue) IsShuttingDown() bool { return q.shuttingDown.Load() }
