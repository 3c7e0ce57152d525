// Package conversation is the durable per-user, per-conversation turn log.
// It owns turn ordering: sequence numbers are assigned on append and a
// transcript is always a pure function of the stored turns.
package conversation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	v1 "github.com/redclouds/erp-assistant/pkg/apis/chat/v1"
)

var (
	// ErrNotFound is returned when a conversation id is not known to the
	// store. Callers recover by starting a fresh conversation, never by
	// guessing at a different one.
	ErrNotFound = errors.New("conversation not found")

	// ErrConflict is returned when a concurrent append for the same
	// conversation is in flight.
	ErrConflict = errors.New("concurrent append for conversation")
)

// Turn is one question/response pair. SequenceNo and Timestamp are assigned
// by Append; a turn is never modified after it is written.
type Turn struct {
	ConversationID     uuid.UUID
	SequenceNo         int
	Question           string
	Response           string
	Sources            []v1.SourceDocument
	SuggestedQuestions []string
	Timestamp          time.Time
}

// Store is the conversation log contract. Append is atomic per turn: either
// the whole turn is durable or nothing is.
type Store interface {
	// CreateConversation binds a new conversation id for the user. The
	// first question is denormalized onto the conversation for listing.
	CreateConversation(ctx context.Context, userID, firstQuestion string) (uuid.UUID, error)

	// GetConversation returns the summary for one conversation, or
	// ErrNotFound.
	GetConversation(ctx context.Context, id uuid.UUID) (*v1.ConversationSummary, error)

	// ListConversations returns the user's conversations ordered by
	// UpdatedAt descending.
	ListConversations(ctx context.Context, userID string) ([]v1.ConversationSummary, error)

	// Append assigns the next sequence number, persists the turn and
	// advances the conversation's UpdatedAt. Returns the assigned sequence
	// number. ErrNotFound if the conversation was never created,
	// ErrConflict if another append raced this one.
	Append(ctx context.Context, conversationID uuid.UUID, turn *Turn) (int, error)

	// ReadTurns returns all turns ordered by sequence number ascending.
	ReadTurns(ctx context.Context, conversationID uuid.UUID) ([]Turn, error)
}

// ReconstructTranscript expands stored turns into the client-visible
// alternating message sequence: for every turn exactly one user message
// followed by exactly one bot message, both stamped with the turn's
// timestamp. It invents no information, so N turns always yield 2N messages.
func ReconstructTranscript(turns []Turn) []v1.Message {
	messages := make([]v1.Message, 0, len(turns)*2)
	for _, turn := range turns {
		messages = append(messages, v1.Message{
			Role:      v1.RoleUser,
			Text:      turn.Question,
			Timestamp: turn.Timestamp,
		})
		messages = append(messages, v1.Message{
			Role:               v1.RoleBot,
			Text:               turn.Response,
			Sources:            turn.Sources,
			SuggestedQuestions: turn.SuggestedQuestions,
			Timestamp:          turn.Timestamp,
		})
	}
	return messages
}

// TurnRecords converts turns to the flat wire representation returned by the
// history endpoint.
func TurnRecords(turns []Turn) []v1.TurnRecord {
	records := make([]v1.TurnRecord, 0, len(turns))
	for _, turn := range turns {
		records = append(records, v1.TurnRecord{
			Question:           turn.Question,
			Response:           turn.Response,
			Sources:            turn.Sources,
			SuggestedQuestions: turn.SuggestedQuestions,
			Timestamp:          turn.Timestamp,
		})
	}
	return records
}
