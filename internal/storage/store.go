package storage

import (
	"context"
	"errors"

	"github.com/taptap-tz/taptap-bot/internal/models"
)

// ErrSessionNotFound is returned when saving a session the store never created
var ErrSessionNotFound = errors.New("session not found")

// SessionStore maps conversation ids to sessions
type SessionStore interface {
	// GetOrCreate returns the conversation's session, creating a fresh one
	// in the start state on first contact. Creation is atomic per id.
	GetOrCreate(ctx context.Context, conversationID string) (session *models.Session, created bool, err error)

	// Save persists a session after a turn
	Save(ctx context.Context, session *models.Session) error

	// Count returns the number of known sessions
	Count(ctx context.Context) (int, error)
}
