package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/redclouds/erp-assistant/pkg/apis/chat/v1"
)

func TestReconstructTranscript(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name  string
		turns []Turn
	}{
		{
			name:  "empty conversation",
			turns: []Turn{},
		},
		{
			name: "single turn",
			turns: []Turn{
				{SequenceNo: 1, Question: "How do I create an invoice?", Response: "Open the billing module.", Timestamp: now},
			},
		},
		{
			name: "multiple turns with sources",
			turns: []Turn{
				{SequenceNo: 1, Question: "q1", Response: "r1", Timestamp: now},
				{
					SequenceNo: 2, Question: "q2", Response: "r2", Timestamp: now.Add(time.Minute),
					Sources:            []v1.SourceDocument{{DocumentID: "billing.md", Location: "billing.md#0", Excerpt: "..."}},
					SuggestedQuestions: []string{"What about credit notes?"},
				},
				{SequenceNo: 3, Question: "q3", Response: "r3", Timestamp: now.Add(2 * time.Minute)},
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			messages := ReconstructTranscript(tc.turns)

			require.Len(t, messages, 2*len(tc.turns))
			for i, turn := range tc.turns {
				user := messages[2*i]
				bot := messages[2*i+1]

				assert.Equal(t, v1.RoleUser, user.Role)
				assert.Equal(t, turn.Question, user.Text)
				assert.Equal(t, turn.Timestamp, user.Timestamp)
				assert.Empty(t, user.Sources)

				assert.Equal(t, v1.RoleBot, bot.Role)
				assert.Equal(t, turn.Response, bot.Text)
				assert.Equal(t, turn.Timestamp, bot.Timestamp)
				assert.Equal(t, turn.Sources, bot.Sources)
				assert.Equal(t, turn.SuggestedQuestions, bot.SuggestedQuestions)
			}
		})
	}
}

func TestMemoryStoreAppendAssignsSequence(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	id, err := store.CreateConversation(ctx, "user-1", "first question")
	require.NoError(t, err)

	for want := 1; want <= 3; want++ {
		seq, err := store.Append(ctx, id, &Turn{Question: "q", Response: "r"})
		require.NoError(t, err)
		assert.Equal(t, want, seq)
	}

	turns, err := store.ReadTurns(ctx, id)
	require.NoError(t, err)
	require.Len(t, turns, 3)
	for i, turn := range turns {
		assert.Equal(t, i+1, turn.SequenceNo)
		assert.False(t, turn.Timestamp.IsZero())
	}
}

func TestMemoryStoreUnknownConversation(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.GetConversation(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.ReadTurns(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.Append(ctx, uuid.New(), &Turn{Question: "q", Response: "r"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreListConversationsOrder(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	first, err := store.CreateConversation(ctx, "user-1", "oldest")
	require.NoError(t, err)
	second, err := store.CreateConversation(ctx, "user-1", "newest")
	require.NoError(t, err)
	_, err = store.CreateConversation(ctx, "user-2", "other user")
	require.NoError(t, err)

	// Appending to the older conversation makes it the most recent.
	time.Sleep(5 * time.Millisecond)
	_, err = store.Append(ctx, first, &Turn{Question: "q", Response: "r"})
	require.NoError(t, err)

	summaries, err := store.ListConversations(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, first, summaries[0].ConversationID)
	assert.Equal(t, second, summaries[1].ConversationID)
	assert.Equal(t, "oldest", summaries[0].FirstQuestion)
}
