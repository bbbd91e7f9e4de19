package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MessageRecord is the message-history row written for every routed
// envelope. IDs are assigned here, not by the relay: the durable store owns
// message identity.
type MessageRecord struct {
	ID          string `gorm:"primaryKey;type:uuid"`
	Kind        string `gorm:"index;not null"`
	SenderID    string `gorm:"index;not null"`
	RecipientID string `gorm:"index"`
	GroupID     string `gorm:"index"`
	Content     string `gorm:"not null"`
	Metadata    string
	SentAt      time.Time `gorm:"index"`
	CreatedAt   time.Time
}

func (MessageRecord) TableName() string {
	return "messages"
}

// PostgresSink archives messages into the relational history table.
type PostgresSink struct {
	db *gorm.DB
}

func NewPostgresSink(db *gorm.DB) (*PostgresSink, error) {
	if err := db.AutoMigrate(&MessageRecord{}); err != nil {
		return nil, fmt.Errorf("migrate messages table: %w", err)
	}
	return &PostgresSink{db: db}, nil
}

func (s *PostgresSink) Archive(ctx context.Context, msg *ArchivedMessage) error {
	env := msg.Envelope

	var metadata string
	if len(env.Metadata) > 0 {
		raw, err := json.Marshal(env.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		metadata = string(raw)
	}

	record := &MessageRecord{
		ID:          uuid.New().String(),
		Kind:        string(msg.Kind),
		SenderID:    env.SenderID,
		RecipientID: env.RecipientID,
		GroupID:     env.GroupID,
		Content:     env.Content,
		Metadata:    metadata,
		SentAt:      time.UnixMilli(env.Timestamp),
	}

	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("insert message record: %w", err)
	}
	return nil
}

func (s *PostgresSink) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
