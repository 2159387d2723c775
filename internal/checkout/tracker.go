package checkout

import (
	"sync"
	"time"
)

type tracked struct {
	state   State
	touched time.Time
}

// Tracker remembers the latest checkout state per browser session and refuses
// a second submission while one is pending.
type Tracker struct {
	mu     sync.Mutex
	states map[string]tracked
	now    func() time.Time
}

func NewTracker() *Tracker {
	return &Tracker{states: make(map[string]tracked), now: time.Now}
}

func (t *Tracker) Get(sessionID string) State {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.states[sessionID]; ok {
		return s.state
	}
	return Idle{}
}

// Begin moves the session to Pending. It fails with ErrInProgress if an
// attempt is already running.
func (t *Tracker) Begin(sessionID string, now time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, busy := t.states[sessionID].state.(Pending); busy {
		return ErrInProgress
	}
	t.states[sessionID] = tracked{state: Pending{StartedAt: now}, touched: t.now()}
	return nil
}

func (t *Tracker) Finish(sessionID string, s State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.states[sessionID] = tracked{state: s, touched: t.now()}
}

func (t *Tracker) Reset(sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.states, sessionID)
}

// Sweep forgets states recorded before before, pending ones included, and
// returns how many went.
func (t *Tracker) Sweep(before time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for id, s := range t.states {
		if s.touched.Before(before) {
			delete(t.states, id)
			n++
		}
	}
	return n
}
