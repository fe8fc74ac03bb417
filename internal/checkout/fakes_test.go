package checkout

import (
	"context"
	"sync"

	"github.com/fairyhunter13/storefront-checkout/internal/client"
	"github.com/fairyhunter13/storefront-checkout/internal/model"
)

type fakeQuotes struct {
	mu     sync.Mutex
	calls  []string
	prices map[string]float64
	errs   map[string]error
	gates  map[string]chan struct{}
}

func newFakeQuotes() *fakeQuotes {
	return &fakeQuotes{
		prices: make(map[string]float64),
		errs:   make(map[string]error),
		gates:  make(map[string]chan struct{}),
	}
}

// hold makes quotes for id block until the returned func is called.
func (f *fakeQuotes) hold(id string) func() {
	ch := make(chan struct{})
	f.mu.Lock()
	f.gates[id] = ch
	f.mu.Unlock()
	return func() { close(ch) }
}

func (f *fakeQuotes) Quote(ctx context.Context, id string) (model.Quote, error) {
	f.mu.Lock()
	f.calls = append(f.calls, id)
	gate := f.gates[id]
	price, ok := f.prices[id]
	err := f.errs[id]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return model.Quote{}, ctx.Err()
		}
	}
	if err != nil {
		return model.Quote{}, err
	}
	if !ok {
		return model.Quote{}, model.ErrInvalidNumber
	}
	return model.Quote{ProductID: id, BasePrice: price}, nil
}

func (f *fakeQuotes) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeOrders struct {
	mu      sync.Mutex
	reqs    []model.OrderRequest
	status  int
	err     error
	release chan struct{}
}

func (f *fakeOrders) CreateOrder(ctx context.Context, req model.OrderRequest) (client.Placed, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	release := f.release
	status, err := f.status, f.err
	f.mu.Unlock()

	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return client.Placed{}, ctx.Err()
		}
	}
	if err != nil {
		return client.Placed{}, err
	}
	if status == 0 {
		status = 200
	}
	return client.Placed{StatusCode: status}, nil
}

func (f *fakeOrders) requests() []model.OrderRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.OrderRequest(nil), f.reqs...)
}

// recorder collects every state an observer sees.
type recorder struct {
	mu     sync.Mutex
	states []FormState
}

func (r *recorder) observe(s FormState) {
	r.mu.Lock()
	r.states = append(r.states, s)
	r.mu.Unlock()
}

func (r *recorder) kinds() []StatusKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []StatusKind
	for _, s := range r.states {
		if len(out) == 0 || out[len(out)-1] != s.Status.Kind {
			out = append(out, s.Status.Kind)
		}
	}
	return out
}

func (r *recorder) all() []FormState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]FormState(nil), r.states...)
}
