package cart

import (
	"sync"
	"time"
)

type entry struct {
	mu      sync.Mutex
	cart    *Cart
	touched time.Time
}

// Registry keeps one in-memory cart per browser session. Carts are not
// persisted and disappear with the process, when Drop is called or when
// Sweep finds them idle.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
	now     func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry), now: time.Now}
}

// lookup returns the session's entry, creating it only when create is set.
func (r *Registry) lookup(sessionID string, create bool) *entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[sessionID]
	if !ok {
		if !create {
			return nil
		}
		e = &entry{cart: New()}
		r.entries[sessionID] = e
	}
	e.touched = r.now()
	return e
}

// WithCart runs fn with exclusive access to the session's cart, creating an
// empty one on first use.
func (r *Registry) WithCart(sessionID string, fn func(c *Cart) error) error {
	e := r.lookup(sessionID, true)
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.cart)
}

// WithExisting is WithCart for paths that never add lines. A session without
// a cart gets a throwaway empty one and nothing is stored.
func (r *Registry) WithExisting(sessionID string, fn func(c *Cart) error) error {
	e := r.lookup(sessionID, false)
	if e == nil {
		return fn(New())
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.cart)
}

// Rename moves the cart of from to to, replacing whatever to held.
func (r *Registry) Rename(from, to string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[from]
	if !ok {
		return
	}
	delete(r.entries, from)
	e.touched = r.now()
	r.entries[to] = e
}

func (r *Registry) Drop(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, sessionID)
}

// Sweep drops carts not touched since before and returns how many went.
func (r *Registry) Sweep(before time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, e := range r.entries {
		if e.touched.Before(before) {
			delete(r.entries, id)
			n++
		}
	}
	return n
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
