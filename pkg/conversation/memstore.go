package conversation

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	v1 "github.com/redclouds/erp-assistant/pkg/apis/chat/v1"
)

// MemoryStore keeps conversations in process memory with the same ordering
// semantics as the postgres store. It backs tests and single-node operation
// without a database.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[uuid.UUID]*memConversation
}

type memConversation struct {
	summary v1.ConversationSummary
	userID  string
	turns   []Turn
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{conversations: map[uuid.UUID]*memConversation{}}
}

func (s *MemoryStore) CreateConversation(_ context.Context, userID, firstQuestion string) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New()
	s.conversations[id] = &memConversation{
		summary: v1.ConversationSummary{
			ConversationID: id,
			FirstQuestion:  firstQuestion,
			UpdatedAt:      time.Now(),
		},
		userID: userID,
	}
	return id, nil
}

func (s *MemoryStore) GetConversation(_ context.Context, id uuid.UUID) (*v1.ConversationSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[id]
	if !ok {
		return nil, ErrNotFound
	}
	summary := conv.summary
	return &summary, nil
}

func (s *MemoryStore) ListConversations(_ context.Context, userID string) ([]v1.ConversationSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summaries := []v1.ConversationSummary{}
	for _, conv := range s.conversations {
		if conv.userID == userID {
			summaries = append(summaries, conv.summary)
		}
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].UpdatedAt.After(summaries[j].UpdatedAt)
	})
	return summaries, nil
}

func (s *MemoryStore) Append(_ context.Context, conversationID uuid.UUID, turn *Turn) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[conversationID]
	if !ok {
		return 0, ErrNotFound
	}

	turn.ConversationID = conversationID
	turn.SequenceNo = len(conv.turns) + 1
	turn.Timestamp = time.Now()

	conv.turns = append(conv.turns, *turn)
	conv.summary.UpdatedAt = turn.Timestamp
	return turn.SequenceNo, nil
}

func (s *MemoryStore) ReadTurns(_ context.Context, conversationID uuid.UUID) ([]Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[conversationID]
	if !ok {
		return nil, ErrNotFound
	}
	turns := make([]Turn, len(conv.turns))
	copy(turns, conv.turns)
	return turns, nil
}
