package v1

import (
	"time"

	"github.com/google/uuid"
)

// ChatRequest is the payload for POST /chat. A nil ConversationID asks the
// server to start a new conversation; the response always carries the bound id.
type ChatRequest struct {
	Question       string     `json:"question"`
	UserID         string     `json:"user_id"`
	ConversationID *uuid.UUID `json:"conversation_id"`
}

// SourceDocument is a citation into the indexed corpus.
type SourceDocument struct {
	DocumentID string `json:"document_id"`
	Location   string `json:"location"`
	Excerpt    string `json:"excerpt"`
}

// ChatResponse is the answer for a single turn.
type ChatResponse struct {
	Response           string           `json:"response"`
	Sources            []SourceDocument `json:"sources"`
	SuggestedQuestions []string         `json:"suggested_questions"`
	ConversationID     uuid.UUID        `json:"conversation_id"`
	Timestamp          time.Time        `json:"timestamp"`
}

// ConversationSummary is one row of GET /user_conversations/{user_id},
// ordered by UpdatedAt descending.
type ConversationSummary struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	FirstQuestion  string    `json:"first_question"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type ConversationListResponse struct {
	Conversations []ConversationSummary `json:"conversations"`
}

// TurnRecord is the flat question/response unit returned by
// GET /conversation/{conversation_id}. Clients expand each record into a
// user and a bot message.
type TurnRecord struct {
	Question           string           `json:"question"`
	Response           string           `json:"response"`
	Sources            []SourceDocument `json:"sources"`
	SuggestedQuestions []string         `json:"suggested_questions"`
	Timestamp          time.Time        `json:"timestamp"`
}

type ConversationHistoryResponse struct {
	Messages []TurnRecord `json:"messages"`
}

type MessageRole string

const (
	RoleUser MessageRole = "user"
	RoleBot  MessageRole = "bot"
)

// Message is the client-visible transcript unit, derived from stored turns
// and never persisted directly.
type Message struct {
	Role               MessageRole      `json:"role"`
	Text               string           `json:"text"`
	Sources            []SourceDocument `json:"sources,omitempty"`
	SuggestedQuestions []string         `json:"suggested_questions,omitempty"`
	Timestamp          time.Time        `json:"timestamp"`
}
