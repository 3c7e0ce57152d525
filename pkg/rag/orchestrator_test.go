package rag

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redclouds/erp-assistant/pkg/conversation"
	"github.com/redclouds/erp-assistant/pkg/embedding"
	"github.com/redclouds/erp-assistant/pkg/ingest"
	"github.com/redclouds/erp-assistant/pkg/vectorstore"
)

type gatedModel struct {
	output  string
	err     error
	started chan struct{}
	release chan struct{}
}

func (m *gatedModel) Chat(ctx context.Context, _, _ string) (string, error) {
	if m.started != nil {
		close(m.started)
	}
	if m.release != nil {
		select {
		case <-m.release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return m.output, m.err
}

func newTestOrchestrator(t *testing.T, model ModelClient, docs []ingest.Document) (*Orchestrator, *conversation.MemoryStore) {
	t.Helper()

	embedder := embedding.NewLocalEmbedder(256)
	index := indexedStore(t, embedder, docs)

	store := conversation.NewMemoryStore()
	orchestrator := NewOrchestrator(
		NewRetriever(embedder, index, 0.0, time.Second),
		NewAssembler(6, 6000),
		NewGenerator(model, time.Second),
		NewModelSuggestions(),
		store,
		1,
	)
	return orchestrator, store
}

func refundCorpus() []ingest.Document {
	return []ingest.Document{
		{ID: "refunds.md", Text: "Refunds must be requested within 30 days."},
		{ID: "payroll.md", Text: "The payroll module supports weekly and monthly runs."},
	}
}

func TestProcessTurnBindsNewConversation(t *testing.T) {
	ctx := context.Background()
	model := &gatedModel{output: `{"answer": "Within 30 days.", "citations": ["S1"], "suggested_questions": ["How do I request one?"]}`}
	orchestrator, store := newTestOrchestrator(t, model, refundCorpus())

	question := "Within how many days must refunds be requested?"
	resp, stats, err := orchestrator.ProcessTurn(ctx, "user-1", question, nil)
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, resp.ConversationID)
	assert.Equal(t, "Within 30 days.", resp.Response)
	assert.Equal(t, 1, stats.Retrieved)
	assert.False(t, stats.Degraded)

	require.Len(t, resp.Sources, 1)
	assert.Equal(t, "refunds.md", resp.Sources[0].DocumentID)
	assert.Equal(t, []string{"How do I request one?"}, resp.SuggestedQuestions)

	summary, err := store.GetConversation(ctx, resp.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, question, summary.FirstQuestion)

	turns, err := store.ReadTurns(ctx, resp.ConversationID)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, question, turns[0].Question)
	assert.Equal(t, "Within 30 days.", turns[0].Response)
}

func TestProcessTurnAppendsToExistingConversation(t *testing.T) {
	ctx := context.Background()
	model := &gatedModel{output: `{"answer": "Within 30 days.", "citations": ["S1"]}`}
	orchestrator, store := newTestOrchestrator(t, model, refundCorpus())

	first, _, err := orchestrator.ProcessTurn(ctx, "user-1", "Within how many days must refunds be requested?", nil)
	require.NoError(t, err)

	id := first.ConversationID
	second, _, err := orchestrator.ProcessTurn(ctx, "user-1", "And where are refunds requested?", &id)
	require.NoError(t, err)
	assert.Equal(t, id, second.ConversationID)

	turns, err := store.ReadTurns(ctx, id)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, 1, turns[0].SequenceNo)
	assert.Equal(t, 2, turns[1].SequenceNo)
}

func TestProcessTurnGreeting(t *testing.T) {
	ctx := context.Background()
	// The model must not be consulted for a greeting.
	model := &gatedModel{err: assert.AnError}
	orchestrator, store := newTestOrchestrator(t, model, refundCorpus())

	resp, stats, err := orchestrator.ProcessTurn(ctx, "user-1", "Hello!", nil)
	require.NoError(t, err)

	assert.True(t, stats.Greeting)
	assert.Equal(t, GreetingResponse, resp.Response)
	assert.Empty(t, resp.Sources)
	assert.Equal(t, GreetingSuggestions, resp.SuggestedQuestions)

	turns, err := store.ReadTurns(ctx, resp.ConversationID)
	require.NoError(t, err)
	require.Len(t, turns, 1)
}

func TestProcessTurnNoContextFallback(t *testing.T) {
	ctx := context.Background()
	model := &gatedModel{err: assert.AnError}
	orchestrator, store := newTestOrchestrator(t, model, refundCorpus())

	// Everything scores below the floor, so the model is never called.
	orchestrator.retriever.minScore = 0.99

	resp, stats, err := orchestrator.ProcessTurn(ctx, "user-1", "unrelated gardening topic", nil)
	require.NoError(t, err)

	assert.Zero(t, stats.Retrieved)
	assert.Equal(t, FallbackResponse, resp.Response)
	assert.Empty(t, resp.Sources)
	assert.Equal(t, NoContextSuggestions, resp.SuggestedQuestions)

	turns, err := store.ReadTurns(ctx, resp.ConversationID)
	require.NoError(t, err)
	require.Len(t, turns, 1)
}

func TestProcessTurnPersistsDegradedTurn(t *testing.T) {
	ctx := context.Background()
	model := &gatedModel{err: assert.AnError}
	orchestrator, store := newTestOrchestrator(t, model, refundCorpus())

	resp, stats, err := orchestrator.ProcessTurn(ctx, "user-1", "Within how many days must refunds be requested?", nil)
	require.NoError(t, err)

	assert.True(t, stats.Degraded)
	assert.Equal(t, ApologyResponse, resp.Response)
	assert.Empty(t, resp.Sources)
	assert.Empty(t, resp.SuggestedQuestions)

	turns, err := store.ReadTurns(ctx, resp.ConversationID)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, ApologyResponse, turns[0].Response)
}

func TestProcessTurnRetrievalTimeoutFallsBack(t *testing.T) {
	ctx := context.Background()
	// Neither the model nor the index may be reached once retrieval has
	// already run out of time.
	model := &gatedModel{err: assert.AnError}
	index := indexedStore(t, embedding.NewLocalEmbedder(256), refundCorpus())
	store := conversation.NewMemoryStore()

	orchestrator := NewOrchestrator(
		NewRetriever(&slowEmbedder{inner: embedding.NewLocalEmbedder(256)}, index, 0.0, 10*time.Millisecond),
		NewAssembler(6, 6000),
		NewGenerator(model, time.Second),
		NewModelSuggestions(),
		store,
		1,
	)

	resp, stats, err := orchestrator.ProcessTurn(ctx, "user-1", "Within how many days must refunds be requested?", nil)
	require.NoError(t, err)

	assert.Zero(t, stats.Retrieved)
	assert.False(t, stats.Degraded)
	assert.Equal(t, FallbackResponse, resp.Response)
	assert.Empty(t, resp.Sources)
	assert.Equal(t, NoContextSuggestions, resp.SuggestedQuestions)

	turns, err := store.ReadTurns(ctx, resp.ConversationID)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, FallbackResponse, turns[0].Response)
}

type brokenIndex struct{}

func (brokenIndex) Upsert(context.Context, []vectorstore.Chunk, [][]float64) error { return assert.AnError }
func (brokenIndex) Search(context.Context, []float64, int) ([]vectorstore.SearchResult, error) {
	return nil, assert.AnError
}
func (brokenIndex) Rebuild(context.Context, []vectorstore.Chunk, [][]float64) error {
	return assert.AnError
}
func (brokenIndex) Count(context.Context) (int, error) { return 0, assert.AnError }

func TestProcessTurnFailureLeavesNoConversation(t *testing.T) {
	ctx := context.Background()
	model := &gatedModel{output: `{"answer": "a"}`}
	store := conversation.NewMemoryStore()

	orchestrator := NewOrchestrator(
		NewRetriever(embedding.NewLocalEmbedder(64), brokenIndex{}, 0.0, time.Second),
		NewAssembler(6, 6000),
		NewGenerator(model, time.Second),
		NewModelSuggestions(),
		store,
		1,
	)

	_, _, err := orchestrator.ProcessTurn(ctx, "user-1", "Within how many days must refunds be requested?", nil)
	require.Error(t, err)

	summaries, err := store.ListConversations(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, summaries)
}

func TestProcessTurnUnknownConversation(t *testing.T) {
	model := &gatedModel{output: `{"answer": "a"}`}
	orchestrator, _ := newTestOrchestrator(t, model, refundCorpus())

	unknown := uuid.New()
	_, _, err := orchestrator.ProcessTurn(context.Background(), "user-1", "any question", &unknown)
	assert.ErrorIs(t, err, conversation.ErrNotFound)
}

func TestProcessTurnConflictOnConcurrentTurn(t *testing.T) {
	ctx := context.Background()
	model := &gatedModel{
		output:  `{"answer": "a", "citations": ["S1"]}`,
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	orchestrator, store := newTestOrchestrator(t, model, refundCorpus())

	id, err := store.CreateConversation(ctx, "user-1", "first")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, _, err := orchestrator.ProcessTurn(ctx, "user-1", "Within how many days must refunds be requested?", &id)
		done <- err
	}()
	<-model.started

	_, _, err = orchestrator.ProcessTurn(ctx, "user-1", "another question at the same time", &id)
	assert.ErrorIs(t, err, conversation.ErrConflict)

	close(model.release)
	require.NoError(t, <-done)
}

func TestIsGreeting(t *testing.T) {
	tests := []struct {
		question string
		want     bool
	}{
		{"hi", true},
		{"Hello!", true},
		{"good morning", true},
		{"Hey there", true},
		{"Hello, assistant", true},
		{"hi how do I reset my password", false},
		{"What does hello world mean in the API docs?", false},
		{"", false},
	}

	for _, tc := range tests {
		t.Run(tc.question, func(t *testing.T) {
			assert.Equal(t, tc.want, isGreeting(tc.question))
		})
	}
}
