// Package checkout implements the checkout form workflow: a live price
// preview that follows the product identifier, and a single-flight order
// submission.
//
// All state lives in one FormState owned by a Workflow. Every change goes
// through a named transition under the workflow mutex, so observers see
// transitions one at a time and in order. Quote and order requests run in
// background goroutines; a quote result is applied only if no newer product
// identifier was entered while it was in flight.
package checkout

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/fairyhunter13/storefront-checkout/internal/client"
	"github.com/fairyhunter13/storefront-checkout/internal/model"
	"github.com/fairyhunter13/storefront-checkout/internal/obs"
	"github.com/fairyhunter13/storefront-checkout/internal/sequence"
)

// QuoteSource looks up the base price of a product.
type QuoteSource interface {
	Quote(ctx context.Context, productID string) (model.Quote, error)
}

// OrderPlacer places an order. An error means the request never completed.
type OrderPlacer interface {
	CreateOrder(ctx context.Context, req model.OrderRequest) (client.Placed, error)
}

// Option configures a Workflow.
type Option func(*Workflow)

// WithObserver registers fn to be called with the new state after every
// applied transition. fn runs under the workflow lock and must not call back
// into the Workflow.
func WithObserver(fn func(FormState)) Option {
	return func(w *Workflow) { w.observers = append(w.observers, fn) }
}

// WithMetrics shares m with the workflow instead of a private counter set.
func WithMetrics(m *Metrics) Option {
	return func(w *Workflow) { w.metrics = m }
}

// Workflow is one mounted checkout form.
type Workflow struct {
	quotes    QuoteSource
	orders    OrderPlacer
	metrics   *Metrics
	observers []func(FormState)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	state  FormState
	seq    sequence.Sequencer
	closed bool
}

// New mounts a workflow. The initial empty product identifier is applied
// right away, which leaves the status at its default.
func New(quotes QuoteSource, orders OrderPlacer, opts ...Option) *Workflow {
	w := &Workflow{quotes: quotes, orders: orders}
	for _, o := range opts {
		o(w)
	}
	if w.metrics == nil {
		w.metrics = &Metrics{}
	}
	w.ctx, w.cancel = context.WithCancel(context.Background())

	w.mu.Lock()
	w.seq.Next()
	w.setStatus(Status{Kind: StatusDefault})
	w.mu.Unlock()
	return w
}

// Snapshot returns a copy of the current form state.
func (w *Workflow) Snapshot() FormState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// SetProductID records an edit of the product identifier. A changed value
// supersedes any quote still in flight; a non-empty value starts a new quote
// lookup, an empty one resets the status immediately.
func (w *Workflow) SetProductID(id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.setProductIDLocked(id)
}

// SetQuantity records an edit of the quantity field. The value is kept as
// typed; it is only validated on submit.
func (w *Workflow) SetQuantity(q string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.setQuantityLocked(q)
}

// Submit places one order for the current form. It returns once the form is
// in the submitting phase; the order request itself completes in the
// background. Invalid input is rejected with an ErrInvalidForm error before
// anything is sent.
func (w *Workflow) Submit() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.submitLocked()
}

// SubmitForm applies a whole form post atomically: the product identifier,
// then the quantity, then the submit. No other edit can land in between, so
// the order carries exactly the posted values. Edits stay applied when the
// submit is rejected.
func (w *Workflow) SubmitForm(productID, quantity string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.setProductIDLocked(productID); err != nil {
		return err
	}
	if err := w.setQuantityLocked(quantity); err != nil {
		return err
	}
	return w.submitLocked()
}

func (w *Workflow) setProductIDLocked(id string) error {
	if err := w.editableLocked(); err != nil {
		return err
	}
	if id == w.state.ProductID {
		return nil
	}
	seq := w.changeProductID(id)
	if id == "" {
		w.setStatus(Status{Kind: StatusDefault})
		return nil
	}
	w.notify()
	w.wg.Add(1)
	go w.previewQuote(seq, id)
	return nil
}

func (w *Workflow) setQuantityLocked(q string) error {
	if err := w.editableLocked(); err != nil {
		return err
	}
	if q == w.state.Quantity {
		return nil
	}
	w.state.Quantity = q
	w.notify()
	return nil
}

func (w *Workflow) submitLocked() error {
	if w.closed {
		return ErrClosed
	}
	if w.state.Phase == PhaseSubmitting {
		return ErrSubmitInFlight
	}
	req, err := Validate(w.state)
	if err != nil {
		w.metrics.OrdersRejected.Add(1)
		return err
	}
	w.beginSubmit()
	w.wg.Add(1)
	go w.placeOrder(req)
	return nil
}

// Validate applies the form constraints: a non-empty product identifier and
// a whole-number quantity of at least one.
func Validate(f FormState) (model.OrderRequest, error) {
	if f.ProductID == "" {
		return model.OrderRequest{}, fmt.Errorf("%w: product is required", ErrInvalidForm)
	}
	if f.Quantity == "" {
		return model.OrderRequest{}, fmt.Errorf("%w: quantity is required", ErrInvalidForm)
	}
	n, err := strconv.ParseInt(f.Quantity, 10, 64)
	if err != nil {
		return model.OrderRequest{}, fmt.Errorf("%w: quantity must be a whole number", ErrInvalidForm)
	}
	if n < 1 {
		return model.OrderRequest{}, fmt.Errorf("%w: quantity must be at least 1", ErrInvalidForm)
	}
	return model.OrderRequest{ID: f.ProductID, Quantity: f.Quantity}, nil
}

// DrainUntil blocks until no quote or order request is in flight, or ctx is
// done. It reports whether the workflow drained. Call it after Close, or when
// no edit or submit can arrive concurrently: those start new requests.
func (w *Workflow) DrainUntil(ctx context.Context) bool {
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}

// Close unmounts the form. In-flight requests are cancelled and whatever
// they return is dropped.
func (w *Workflow) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	w.cancel()
}

func (w *Workflow) editableLocked() error {
	if w.closed {
		return ErrClosed
	}
	if w.state.Phase == PhaseSubmitting {
		return ErrFormDisabled
	}
	return nil
}

func (w *Workflow) previewQuote(seq uint64, id string) {
	defer w.wg.Done()
	w.metrics.QuotesRequested.Add(1)
	q, err := w.quotes.Quote(w.ctx, id)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed || !w.seq.IsCurrent(seq) {
		w.metrics.QuotesStale.Add(1)
		obs.Logger.Debug("quote_stale_discarded",
			"product_id", id,
			"sequence", seq,
			"current", w.seq.Current(),
			"closed", w.closed,
		)
		return
	}
	if err != nil {
		w.metrics.QuotesFailed.Add(1)
		obs.Logger.Debug("quote_failed", "product_id", id, "sequence", seq, "error", err)
		w.setStatus(Status{Kind: StatusDefault})
		return
	}
	w.metrics.QuotesApplied.Add(1)
	w.setStatus(PriceKnown(q.BasePrice * MarkupMultiplier))
}

func (w *Workflow) placeOrder(req model.OrderRequest) {
	defer w.wg.Done()
	w.metrics.OrdersSubmitted.Add(1)
	placed, err := w.orders.CreateOrder(w.ctx, req)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.settleSubmit(req, placed, err)
}

// Transitions. Callers hold w.mu.

func (w *Workflow) changeProductID(id string) uint64 {
	w.state.ProductID = id
	return w.seq.Next()
}

func (w *Workflow) setStatus(s Status) {
	w.state.Status = s
	w.notify()
}

func (w *Workflow) beginSubmit() {
	w.state.Phase = PhaseSubmitting
	w.state.Status = Status{Kind: StatusSubmitting}
	w.notify()
}

func (w *Workflow) settleSubmit(req model.OrderRequest, placed client.Placed, err error) {
	if err != nil {
		w.metrics.OrdersFailed.Add(1)
		obs.Logger.Error("order_submit_failed", "product_id", req.ID, "quantity", req.Quantity, "error", err)
		w.state.Status = Status{Kind: StatusFailure}
	} else {
		w.metrics.OrdersSucceeded.Add(1)
		if !placed.OK() {
			obs.Logger.Warn("order_submit_unexpected_status", "product_id", req.ID, "status", placed.StatusCode)
		}
		w.state.Status = Status{Kind: StatusSuccess}
	}
	w.state.Phase = PhaseIdle
	w.notify()
}

func (w *Workflow) notify() {
	for _, fn := range w.observers {
		fn(w.state)
	}
}
