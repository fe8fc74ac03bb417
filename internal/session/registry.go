// Package session keeps the live checkout forms of a widget server, one per
// browser session.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fairyhunter13/storefront-checkout/internal/checkout"
	"github.com/fairyhunter13/storefront-checkout/internal/obs"
)

// Factory mounts a new checkout workflow.
type Factory func() *checkout.Workflow

type entry struct {
	wf       *checkout.Workflow
	lastSeen time.Time
}

// Registry maps session ids to mounted workflows.
type Registry struct {
	newWorkflow Factory
	now         func() time.Time

	mu sync.RWMutex
	m  map[string]*entry
}

// New creates an empty Registry.
func New(f Factory) *Registry {
	return &Registry{newWorkflow: f, now: time.Now, m: make(map[string]*entry)}
}

// Create mounts a workflow under a fresh id.
func (r *Registry) Create() (string, *checkout.Workflow) {
	id := uuid.NewString()
	wf := r.newWorkflow()
	r.mu.Lock()
	r.m[id] = &entry{wf: wf, lastSeen: r.now()}
	r.mu.Unlock()
	obs.Logger.Info("session_created", "session_id", id)
	return id, wf
}

// Get returns the workflow for id and marks the session as active.
func (r *Registry) Get(id string) (*checkout.Workflow, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.m[id]
	if !ok {
		return nil, false
	}
	e.lastSeen = r.now()
	return e.wf, true
}

// Delete unmounts the workflow for id. It reports whether it existed.
func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	e, ok := r.m[id]
	delete(r.m, id)
	r.mu.Unlock()
	if !ok {
		return false
	}
	e.wf.Close()
	obs.Logger.Info("session_closed", "session_id", id)
	return true
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.m)
}

// Sweep unmounts sessions not touched for longer than idle and returns how
// many were removed.
func (r *Registry) Sweep(idle time.Duration) int {
	cutoff := r.now().Add(-idle)
	var stale []*checkout.Workflow
	r.mu.Lock()
	for id, e := range r.m {
		if e.lastSeen.Before(cutoff) {
			stale = append(stale, e.wf)
			delete(r.m, id)
		}
	}
	r.mu.Unlock()
	for _, wf := range stale {
		wf.Close()
	}
	if len(stale) > 0 {
		obs.Logger.Info("sessions_swept", "removed", len(stale), "active_sessions", r.Len())
	}
	return len(stale)
}

// Run sweeps idle sessions every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval, idle time.Duration) {
	if interval <= 0 {
		<-ctx.Done()
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.Sweep(idle)
		}
	}
}

// CloseAll unmounts every session and waits, up to ctx, for their requests
// to finish. It reports whether everything drained.
func (r *Registry) CloseAll(ctx context.Context) bool {
	r.mu.Lock()
	all := make([]*checkout.Workflow, 0, len(r.m))
	for id, e := range r.m {
		all = append(all, e.wf)
		delete(r.m, id)
	}
	r.mu.Unlock()
	drained := true
	for _, wf := range all {
		wf.Close()
		if !wf.DrainUntil(ctx) {
			drained = false
		}
	}
	return drained
}
