package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgtype"
)

// Conversation partitions turns by an opaque user identifier. The id is
// assigned by the orchestrator on the first turn and never changes.
type Conversation struct {
	ID        uuid.UUID `json:"conversation_id" gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// UserID is an untrusted partition key supplied by the client.
	UserID string `json:"user_id" gorm:"not null;index"`

	// FirstQuestion is the question of turn 1, denormalized for listing.
	FirstQuestion string `json:"first_question"`
}

// Turn is the write-once persisted unit of a conversation. SequenceNo is
// strictly increasing per conversation, enforced by the composite unique
// index.
type Turn struct {
	ID             uint      `json:"-" gorm:"primaryKey"`
	ConversationID uuid.UUID `json:"conversation_id" gorm:"type:uuid;not null;uniqueIndex:idx_turns_conversation_seq"`
	SequenceNo     int       `json:"sequence_no" gorm:"not null;uniqueIndex:idx_turns_conversation_seq"`
	CreatedAt      time.Time `json:"timestamp"`

	Question string `json:"question" gorm:"not null"`
	Response string `json:"response" gorm:"not null"`

	// Sources holds the cited SourceDocument list in JSONB format.
	Sources pgtype.JSONB `json:"sources" gorm:"type:jsonb"`

	// SuggestedQuestions holds the follow-up question list in JSONB format.
	SuggestedQuestions pgtype.JSONB `json:"suggested_questions" gorm:"type:jsonb"`
}
