package rag

import (
	"fmt"
	"strings"

	"github.com/redclouds/erp-assistant/pkg/conversation"
	"github.com/redclouds/erp-assistant/pkg/vectorstore"
)

const systemPrompt = `You are RedClouds AI Assistant, a polite and formal customer service
assistant for RedClouds ICT Solutions, a company specializing in ERP software.
Answer strictly from the supplied documentation context. If the answer is not
in the context, say that you could not find the information. Do not invent
information.

Respond with a single JSON object, nothing else:
{
  "answer": "your answer to the user, plain text",
  "citations": ["labels of the context passages you used, e.g. S1"],
  "suggested_questions": ["one to three short follow-up questions"]
}`

// ContextChunk is a retrieved chunk as supplied to the model, tagged with
// the label the model uses to cite it.
type ContextChunk struct {
	Label string
	Chunk vectorstore.Chunk
	Score float64
}

// Prompt is the fully assembled model input for one turn.
type Prompt struct {
	System string
	User   string
}

// Assembler merges retrieved chunks with a bounded window of prior turns.
// Given identical inputs the output is byte-identical: chunks and history
// are rendered in their given order with no timestamps or randomness.
type Assembler struct {
	maxHistoryTurns int
	maxHistoryChars int
}

func NewAssembler(maxHistoryTurns, maxHistoryChars int) *Assembler {
	if maxHistoryTurns <= 0 {
		maxHistoryTurns = 6
	}
	if maxHistoryChars <= 0 {
		maxHistoryChars = 6000
	}
	return &Assembler{maxHistoryTurns: maxHistoryTurns, maxHistoryChars: maxHistoryChars}
}

// Assemble builds the prompt and returns the labeled context chunks the
// generator must restrict citations to.
func (a *Assembler) Assemble(question string, retrieved []vectorstore.SearchResult, history []conversation.Turn) (Prompt, []ContextChunk) {
	contextChunks := make([]ContextChunk, 0, len(retrieved))
	for i, result := range retrieved {
		contextChunks = append(contextChunks, ContextChunk{
			Label: fmt.Sprintf("S%d", i+1),
			Chunk: result.Chunk,
			Score: result.Score,
		})
	}

	var b strings.Builder

	b.WriteString("Documentation Context:\n")
	if len(contextChunks) == 0 {
		b.WriteString("(no relevant documentation found)\n")
	}
	for _, cc := range contextChunks {
		fmt.Fprintf(&b, "[%s] Source: %s\n%s\n\n", cc.Label, cc.Chunk.DocumentID, cc.Chunk.Text)
	}

	window := a.window(history)
	if len(window) > 0 {
		b.WriteString("Conversation so far (oldest first):\n")
		for _, turn := range window {
			fmt.Fprintf(&b, "User: %s\nAssistant: %s\n", turn.Question, turn.Response)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "User Question: %s\n", question)

	return Prompt{System: systemPrompt, User: b.String()}, contextChunks
}

// window caps history at the configured turn count, then drops the oldest
// turns until the window fits the character budget.
func (a *Assembler) window(history []conversation.Turn) []conversation.Turn {
	if len(history) > a.maxHistoryTurns {
		history = history[len(history)-a.maxHistoryTurns:]
	}
	size := 0
	for _, turn := range history {
		size += len(turn.Question) + len(turn.Response)
	}
	for len(history) > 0 && size > a.maxHistoryChars {
		size -= len(history[0].Question) + len(history[0].Response)
		history = history[1:]
	}
	return history
}
