package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/taptap-tz/taptap-bot/internal/models"
)

// DatabaseStore keeps serialized sessions in PostgreSQL
type DatabaseStore struct {
	db *gorm.DB
}

// NewDatabaseStore creates a store over an open gorm connection
func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	return &DatabaseStore{db: db}
}

// Migrate creates the sessions table
func (d *DatabaseStore) Migrate() error {
	return d.db.AutoMigrate(&models.ConversationSession{})
}

func (d *DatabaseStore) GetOrCreate(ctx context.Context, conversationID string) (*models.Session, bool, error) {
	fresh := models.NewSession(conversationID)
	data, err := json.Marshal(fresh)
	if err != nil {
		return nil, false, fmt.Errorf("failed to marshal session: %w", err)
	}

	row := models.ConversationSession{
		ConversationID: conversationID,
		State:          string(fresh.State),
		Data:           string(data),
		LastActive:     fresh.LastActive,
	}

	// The unique index on conversation_id makes the insert-if-absent atomic
	result := d.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "conversation_id"}}, DoNothing: true}).
		Create(&row)
	if result.Error != nil {
		return nil, false, fmt.Errorf("failed to create session: %w", result.Error)
	}
	if result.RowsAffected == 1 {
		return fresh, true, nil
	}

	var existing models.ConversationSession
	if err := d.db.WithContext(ctx).Where("conversation_id = ?", conversationID).First(&existing).Error; err != nil {
		return nil, false, fmt.Errorf("failed to load session: %w", err)
	}

	var session models.Session
	if err := json.Unmarshal([]byte(existing.Data), &session); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, false, nil
}

func (d *DatabaseStore) Save(ctx context.Context, session *models.Session) error {
	session.LastActive = time.Now()
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	result := d.db.WithContext(ctx).
		Model(&models.ConversationSession{}).
		Where("conversation_id = ?", session.ConversationID).
		Updates(map[string]interface{}{
			"state":       string(session.State),
			"data":        string(data),
			"last_active": session.LastActive,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to save session: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (d *DatabaseStore) Count(ctx context.Context) (int, error) {
	var count int64
	if err := d.db.WithContext(ctx).Model(&models.ConversationSession{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return int(count), nil
}

// Prune hard-deletes sessions idle since before cutoff. Soft deletes would
// keep the unique conversation_id and block re-creation.
func (d *DatabaseStore) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	result := d.db.WithContext(ctx).Unscoped().
		Where("last_active < ?", cutoff).
		Delete(&models.ConversationSession{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to prune sessions: %w", result.Error)
	}
	return int(result.RowsAffected), nil
}
