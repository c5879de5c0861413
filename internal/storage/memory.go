package storage

import (
	"context"
	"sync"
	"time"

	"github.com/taptap-tz/taptap-bot/internal/models"
)

// MemoryStore holds sessions for the lifetime of the process
type MemoryStore struct {
	sessions map[string]*models.Session
	mu       sync.RWMutex
}

// NewMemoryStore creates a new in-memory session store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*models.Session),
	}
}

func (m *MemoryStore) GetOrCreate(ctx context.Context, conversationID string) (*models.Session, bool, error) {
	m.mu.RLock()
	session, exists := m.sessions[conversationID]
	m.mu.RUnlock()
	if exists {
		return session, false, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Someone may have created it between the two locks
	if session, exists = m.sessions[conversationID]; exists {
		return session, false, nil
	}

	session = models.NewSession(conversationID)
	m.sessions[conversationID] = session
	return session, true, nil
}

// Save only refreshes the activity time; handlers mutate the stored pointer
func (m *MemoryStore) Save(ctx context.Context, session *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[session.ConversationID]; !exists {
		return ErrSessionNotFound
	}

	session.LastActive = time.Now()
	m.sessions[session.ConversationID] = session
	return nil
}

func (m *MemoryStore) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.sessions), nil
}

// Prune drops sessions idle since before cutoff
func (m *MemoryStore) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pruned := 0
	for id, session := range m.sessions {
		if session.LastActive.Before(cutoff) {
			delete(m.sessions, id)
			pruned++
		}
	}
	return pruned, nil
}
