package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Skotchmaster/storefront/pkg/logging"
)

type Reason string

const (
	ReasonLogout       Reason = "logout"
	ReasonUnauthorized Reason = "unauthorized"
	ReasonExpired      Reason = "expired"
	// ReasonRotated means the browser was given a new session id and the old
	// one must not be honoured again.
	ReasonRotated Reason = "rotated"
)

type Event struct {
	SessionID string
	Reason    Reason
}

// Expirer is implemented by stores that can purge expired sessions in bulk.
type Expirer interface {
	DeleteExpired(ctx context.Context, now time.Time) ([]string, error)
}

// Manager is the single owner of session state. Everything that caches
// per-session data subscribes to invalidation events instead of polling.
type Manager struct {
	store Store
	now   func() time.Time

	mu          sync.RWMutex
	subscribers []func(Event)
}

func NewManager(store Store) *Manager {
	return &Manager{store: store, now: time.Now}
}

func (m *Manager) Subscribe(fn func(Event)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribers = append(m.subscribers, fn)
}

func (m *Manager) Save(ctx context.Context, id string, s *Session) error {
	return m.store.Save(ctx, id, s)
}

// Load returns the live session for id. An expired session is invalidated and
// reported as ErrExpired.
func (m *Manager) Load(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, ErrNoSession
	}
	s, err := m.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.Expired(m.now()) {
		if err := m.Invalidate(ctx, id, ReasonExpired); err != nil {
			return nil, err
		}
		return nil, ErrExpired
	}
	return s, nil
}

// Invalidate clears the stored session and notifies subscribers.
func (m *Manager) Invalidate(ctx context.Context, id string, reason Reason) error {
	if err := m.store.Clear(ctx, id); err != nil && !errors.Is(err, ErrNoSession) {
		return err
	}

	logging.FromContext(ctx).Info("session_invalidated", "reason", string(reason))
	m.notify(Event{SessionID: id, Reason: reason})
	return nil
}

// SweepExpired deletes expired sessions from stores that support it and
// notifies subscribers of each with ReasonExpired.
func (m *Manager) SweepExpired(ctx context.Context) (int, error) {
	ex, ok := m.store.(Expirer)
	if !ok {
		return 0, nil
	}
	ids, err := ex.DeleteExpired(ctx, m.now())
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		m.notify(Event{SessionID: id, Reason: ReasonExpired})
	}
	return len(ids), nil
}

func (m *Manager) notify(ev Event) {
	m.mu.RLock()
	subs := make([]func(Event), len(m.subscribers))
	copy(subs, m.subscribers)
	m.mu.RUnlock()

	for _, fn := range subs {
		fn(ev)
	}
}
