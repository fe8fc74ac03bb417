// Package store holds the in-memory state of the stub catalog and order
// services.
package store

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/fairyhunter13/storefront-checkout/internal/model"
)

// Catalog is an insertion-ordered product table.
type Catalog struct {
	mu    sync.RWMutex
	m     map[string]model.Product
	order []string
}

func NewCatalog() *Catalog {
	return &Catalog{m: make(map[string]model.Product)}
}

// Create stores p, assigning a fresh id when p has none, and returns it.
func (c *Catalog) Create(p model.Product) model.Product {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.m[p.ID]; !ok {
		c.order = append(c.order, p.ID)
	}
	c.m[p.ID] = p
	return p
}

func (c *Catalog) Get(id string) (model.Product, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.m[id]
	return p, ok
}

func (c *Catalog) List() []model.Product {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.Product, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.m[id])
	}
	return out
}

func (c *Catalog) Delete(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.m[id]; !ok {
		return false
	}
	delete(c.m, id)
	for i, v := range c.order {
		if v == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return true
}

type orderState struct {
	o            model.Order
	lastSequence uint64
}

// Orders stores orders and applies status events in sequence order.
type Orders struct {
	mu sync.RWMutex
	m  map[string]orderState
}

func NewOrders() *Orders {
	return &Orders{m: make(map[string]orderState)}
}

// Put stores a new order written at sequence seq.
func (s *Orders) Put(o model.Order, seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[o.ID] = orderState{o: o, lastSequence: seq}
}

func (s *Orders) Get(id string) (model.Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.m[id]
	if !ok {
		return model.Order{}, false
	}
	return st.o, true
}

// Apply moves an order to ev.Status unless the order is unknown or ev is not
// newer than the last write. It returns the updated order and whether the
// event was applied.
func (s *Orders) Apply(ev model.OrderEvent) (model.Order, bool) {
	if ev.OrderID == "" {
		return model.Order{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.m[ev.OrderID]
	if !ok {
		return model.Order{}, false
	}
	if ev.Sequence <= st.lastSequence {
		return st.o, false
	}
	st.o.Status = ev.Status
	st.lastSequence = ev.Sequence
	s.m[ev.OrderID] = st
	return st.o, true
}

// List returns all orders, oldest first.
func (s *Orders) List() []model.Order {
	s.mu.RLock()
	out := make([]model.Order, 0, len(s.m))
	for _, st := range s.m {
		out = append(out, st.o)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Len returns the number of stored orders.
func (s *Orders) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}
