package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/taptap-tz/taptap-bot/internal/storage"
	"github.com/taptap-tz/taptap-bot/internal/utils"
)

// ConversationManager runs turns. Turns of one conversation are strictly
// sequential; different conversations run in parallel.
type ConversationManager struct {
	store   storage.SessionStore
	flow    *OrderingFlow
	sender  Sender
	metrics *Metrics

	mu    sync.Mutex
	locks map[string]*conversationLock
}

type conversationLock struct {
	mu   sync.Mutex
	refs int
}

// NewConversationManager creates a manager that replies through sender
func NewConversationManager(store storage.SessionStore, flow *OrderingFlow, sender Sender, metrics *Metrics) *ConversationManager {
	return &ConversationManager{
		store:   store,
		flow:    flow,
		sender:  sender,
		metrics: metrics,
		locks:   make(map[string]*conversationLock),
	}
}

// lock takes the conversation's mutex, creating it on first use. The entry
// is dropped when the last holder or waiter releases it.
func (m *ConversationManager) lock(conversationID string) func() {
	m.mu.Lock()
	l, ok := m.locks[conversationID]
	if !ok {
		l = &conversationLock{}
		m.locks[conversationID] = l
	}
	l.refs++
	m.mu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		m.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.locks, conversationID)
		}
		m.mu.Unlock()
	}
}

// HandleMessage processes one inbound message and sends the reply
func (m *ConversationManager) HandleMessage(ctx context.Context, conversationID, text string) error {
	return m.handle(ctx, m.sender, conversationID, text)
}

// Preview processes one inbound message and returns the replies instead of
// sending them. The session is updated as for a real message.
func (m *ConversationManager) Preview(ctx context.Context, conversationID, text string) ([]OutboundMessage, error) {
	recorder := NewRecordingSender()
	err := m.handle(ctx, recorder, conversationID, text)
	return recorder.Messages(), err
}

// ActiveSessions counts stored conversations
func (m *ConversationManager) ActiveSessions(ctx context.Context) (int, error) {
	return m.store.Count(ctx)
}

func (m *ConversationManager) handle(ctx context.Context, out Sender, conversationID, text string) error {
	if conversationID == "" || utils.IsGroupOrBroadcast(conversationID) {
		return nil
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	unlock := m.lock(conversationID)
	defer unlock()

	session, created, err := m.store.GetOrCreate(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}
	if created {
		m.metrics.SessionCreated()
		log.Printf("✅ New conversation %s (session %s)", conversationID, session.ID)
	}

	renderErr := m.flow.Handle(ctx, out, session, text)
	if renderErr != nil {
		log.Printf("❌ Failed to send reply to %s: %v", conversationID, renderErr)
	}

	if err := m.store.Save(ctx, session); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return renderErr
}
