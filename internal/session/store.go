package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Skotchmaster/storefront/internal/models"
)

// Store persists sessions by browser session id.
type Store interface {
	Load(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, id string, s *Session) error
	Clear(ctx context.Context, id string) error
}

type Record struct {
	ID        string `gorm:"primaryKey;size:64"`
	Token     string `gorm:"not null"`
	UserID    int64
	Username  string
	Email     string
	Role      string
	ExpiresAt *time.Time
	UpdatedAt time.Time
}

func (Record) TableName() string {
	return "storefront_sessions"
}

type GormStore struct {
	DB *gorm.DB
}

func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("migrate sessions: %w", err)
	}
	return &GormStore{DB: db}, nil
}

func (s *GormStore) Load(ctx context.Context, id string) (*Session, error) {
	var rec Record
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoSession
		}
		return nil, err
	}

	out := &Session{
		Token: rec.Token,
		User:  models.User{ID: rec.UserID, Username: rec.Username, Email: rec.Email, Role: rec.Role},
	}
	if rec.ExpiresAt != nil {
		out.ExpiresAt = rec.ExpiresAt.UTC()
	}
	return out, nil
}

func (s *GormStore) Save(ctx context.Context, id string, sess *Session) error {
	rec := Record{
		ID:       id,
		Token:    sess.Token,
		UserID:   sess.User.ID,
		Username: sess.User.Username,
		Email:    sess.User.Email,
		Role:     sess.User.Role,
	}
	if !sess.ExpiresAt.IsZero() {
		exp := sess.ExpiresAt.UTC()
		rec.ExpiresAt = &exp
	}
	return s.DB.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&rec).Error
}

func (s *GormStore) Clear(ctx context.Context, id string) error {
	return s.DB.WithContext(ctx).Where("id = ?", id).Delete(&Record{}).Error
}

// DeleteExpired removes sessions whose token expired before now and returns
// their ids.
func (s *GormStore) DeleteExpired(ctx context.Context, now time.Time) ([]string, error) {
	var ids []string
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&Record{}).
			Where("expires_at IS NOT NULL AND expires_at <= ?", now.UTC()).
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		return tx.Where("id IN ?", ids).Delete(&Record{}).Error
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]Session)}
}

func (m *MemoryStore) Load(_ context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNoSession
	}
	return &s, nil
}

func (m *MemoryStore) Save(_ context.Context, id string, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[id] = *s
	return nil
}

func (m *MemoryStore) Clear(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *MemoryStore) DeleteExpired(_ context.Context, now time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, s := range m.sessions {
		if s.Expired(now) {
			delete(m.sessions, id)
			ids = append(ids, id)
		}
	}
	return ids, nil
}
