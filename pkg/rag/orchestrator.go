// Package rag is the conversation and retrieval orchestrator: it turns one
// user question into a grounded, cited, persisted conversation turn.
package rag

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	v1 "github.com/redclouds/erp-assistant/pkg/apis/chat/v1"
	"github.com/redclouds/erp-assistant/pkg/conversation"
)

// GreetingResponse answers a plain greeting without touching the index or
// the model.
const GreetingResponse = "Hello! I'm RedClouds AI Assistant. I'm here to help with any questions " +
	"about our ERP solutions and services. How can I assist you today?"

// FallbackResponse is used when retrieval produced no usable context.
const FallbackResponse = "I'm sorry, I couldn't find specific information about that in our documentation. " +
	"Would you like me to connect you with a human support agent?"

// TurnStats describes what happened during a turn, for metrics.
type TurnStats struct {
	Retrieved int
	Degraded  bool
	Greeting  bool
}

// Orchestrator runs the per-turn pipeline. Turns of different conversations
// run fully in parallel; within one conversation they are serialized by a
// per-conversation lease, because the history window for turn N+1 depends on
// turn N being durably committed.
type Orchestrator struct {
	retriever   *Retriever
	assembler   *Assembler
	generator   *Generator
	suggestions SuggestionProvider
	store       conversation.Store
	topK        int

	leases sync.Map // uuid.UUID -> *sync.Mutex
}

func NewOrchestrator(retriever *Retriever, assembler *Assembler, generator *Generator,
	suggestions SuggestionProvider, store conversation.Store, topK int) *Orchestrator {
	if topK <= 0 {
		topK = 5
	}
	return &Orchestrator{
		retriever:   retriever,
		assembler:   assembler,
		generator:   generator,
		suggestions: suggestions,
		store:       store,
		topK:        topK,
	}
}

// ProcessTurn handles one question. A nil conversationID starts a new
// conversation; the returned response always carries the bound id. An
// unknown explicit id yields conversation.ErrNotFound, a concurrent turn on
// the same conversation conversation.ErrConflict.
func (o *Orchestrator) ProcessTurn(ctx context.Context, userID, question string, conversationID *uuid.UUID) (*v1.ChatResponse, TurnStats, error) {
	stats := TurnStats{}

	// An abandoned caller must not cancel a turn mid-flight: the log has
	// to stay authoritative, so generation and the append run detached
	// from the request context.
	turnCtx := context.WithoutCancel(ctx)

	// A new conversation's id is not yet visible to anyone, so only turns
	// on an existing conversation need the lease.
	var history []conversation.Turn
	if conversationID != nil {
		if _, err := o.store.GetConversation(turnCtx, *conversationID); err != nil {
			return nil, stats, err
		}

		lease := o.lease(*conversationID)
		if !lease.TryLock() {
			return nil, stats, conversation.ErrConflict
		}
		defer lease.Unlock()

		turns, err := o.store.ReadTurns(turnCtx, *conversationID)
		if err != nil {
			return nil, stats, errors.Wrap(err, "reading conversation history")
		}
		history = turns
	}

	result, err := o.answer(turnCtx, question, history, &stats)
	if err != nil {
		return nil, stats, err
	}

	// The conversation row is created only once the turn has an answer, so
	// a failed first turn never leaves an empty conversation in the list.
	var id uuid.UUID
	if conversationID == nil {
		id, err = o.store.CreateConversation(turnCtx, userID, question)
		if err != nil {
			return nil, stats, errors.Wrap(err, "binding new conversation")
		}
	} else {
		id = *conversationID
	}

	turn := &conversation.Turn{
		Question:           question,
		Response:           result.Answer,
		Sources:            result.Sources,
		SuggestedQuestions: o.suggestions.Suggestions(*result),
	}
	if _, err := o.store.Append(turnCtx, id, turn); err != nil {
		return nil, stats, err
	}

	return &v1.ChatResponse{
		Response:           turn.Response,
		Sources:            turn.Sources,
		SuggestedQuestions: turn.SuggestedQuestions,
		ConversationID:     id,
		Timestamp:          turn.Timestamp,
	}, stats, nil
}

func (o *Orchestrator) answer(ctx context.Context, question string, history []conversation.Turn, stats *TurnStats) (*Result, error) {
	if isGreeting(question) {
		stats.Greeting = true
		return &Result{
			Answer:             GreetingResponse,
			Sources:            []v1.SourceDocument{},
			SuggestedQuestions: GreetingSuggestions,
		}, nil
	}

	retrieved, err := o.retriever.Retrieve(ctx, question, o.topK)
	if err != nil {
		if !errors.Is(err, ErrRetrievalTimeout) {
			return nil, errors.Wrap(err, "retrieving context")
		}
		// Timed out: proceed as if nothing relevant was found.
		log.Warn("retrieval timed out, answering without context")
		retrieved = nil
	}
	stats.Retrieved = len(retrieved)

	if len(retrieved) == 0 {
		return &Result{
			Answer:             FallbackResponse,
			Sources:            []v1.SourceDocument{},
			SuggestedQuestions: NoContextSuggestions,
		}, nil
	}

	prompt, contextChunks := o.assembler.Assemble(question, retrieved, history)
	result := o.generator.Generate(ctx, prompt, contextChunks)
	stats.Degraded = result.Degraded
	return &result, nil
}

func (o *Orchestrator) lease(id uuid.UUID) *sync.Mutex {
	actual, _ := o.leases.LoadOrStore(id, &sync.Mutex{})
	return actual.(*sync.Mutex)
}

var greetings = []string{
	"hi", "hello", "hey", "greetings",
	"good morning", "good afternoon", "good evening",
}

// isGreeting matches short questions that are plainly a salutation, not a
// question that merely contains one.
func isGreeting(question string) bool {
	q := strings.ToLower(strings.TrimSpace(question))
	q = strings.TrimRight(q, ".!? ")
	for _, g := range greetings {
		if q == g || strings.HasPrefix(q, g+" there") || strings.HasPrefix(q, g+",") {
			return true
		}
	}
	return false
}
