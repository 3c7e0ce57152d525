package rag

import (
	"context"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	v1 "github.com/redclouds/erp-assistant/pkg/apis/chat/v1"
)

// ApologyResponse is returned when the model call fails or times out. The
// turn is still persisted so the conversation log stays consistent.
const ApologyResponse = "I apologize, an unexpected error occurred while generating a response. " +
	"Please try again shortly."

const maxSuggestedQuestions = 3

const sourceExcerptLimit = 300

// Result is the parsed output of one generation.
type Result struct {
	Answer             string
	Sources            []v1.SourceDocument
	SuggestedQuestions []string
	Degraded           bool
}

// ModelClient is the chat completion contract, satisfied by ai.LLMClient.
type ModelClient interface {
	Chat(ctx context.Context, instructions, data string) (string, error)
}

// Generator invokes the model and maps its output back onto the chunks that
// were actually supplied in this turn's context. A citation to anything else
// is dropped, not surfaced.
type Generator struct {
	client  ModelClient
	timeout time.Duration
}

func NewGenerator(client ModelClient, timeout time.Duration) *Generator {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Generator{client: client, timeout: timeout}
}

// Generate never fails: model errors produce a degraded result instead.
func (g *Generator) Generate(ctx context.Context, prompt Prompt, supplied []ContextChunk) Result {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	raw, err := g.client.Chat(ctx, prompt.System, prompt.User)
	if err != nil {
		log.WithError(err).Warn("generation failed, returning degraded answer")
		return Result{
			Answer:             ApologyResponse,
			Sources:            []v1.SourceDocument{},
			SuggestedQuestions: []string{},
			Degraded:           true,
		}
	}

	return parseModelOutput(raw, supplied)
}

func parseModelOutput(raw string, supplied []ContextChunk) Result {
	cleaned := stripCodeFence(strings.TrimSpace(raw))

	if answer := gjson.Get(cleaned, "answer"); answer.Exists() && answer.String() != "" {
		return Result{
			Answer:             strings.TrimSpace(answer.String()),
			Sources:            matchCitations(gjson.Get(cleaned, "citations"), supplied),
			SuggestedQuestions: stringList(gjson.Get(cleaned, "suggested_questions"), maxSuggestedQuestions),
		}
	}

	// The model ignored the JSON instructions. Treat the whole text as the
	// answer and credit everything that was in the context.
	log.Debug("model output was not structured, falling back to plain-text parsing")
	answer, suggested := extractTrailingQuestions(cleaned)
	return Result{
		Answer:             answer,
		Sources:            sourcesFromChunks(supplied),
		SuggestedQuestions: suggested,
	}
}

// matchCitations keeps only citations naming a supplied chunk, by label or
// by chunk id.
func matchCitations(citations gjson.Result, supplied []ContextChunk) []v1.SourceDocument {
	sources := []v1.SourceDocument{}
	cited := map[string]bool{}
	citations.ForEach(func(_, value gjson.Result) bool {
		name := strings.TrimSpace(value.String())
		matched := false
		for _, cc := range supplied {
			if name != cc.Label && name != cc.Chunk.ID {
				continue
			}
			matched = true
			if !cited[cc.Chunk.ID] {
				cited[cc.Chunk.ID] = true
				sources = append(sources, sourceFromChunk(cc))
			}
			break
		}
		if name != "" && !matched {
			log.WithField("citation", name).Debug("dropping citation to unknown source")
		}
		return true
	})
	return sources
}

func sourcesFromChunks(supplied []ContextChunk) []v1.SourceDocument {
	sources := make([]v1.SourceDocument, 0, len(supplied))
	for _, cc := range supplied {
		sources = append(sources, sourceFromChunk(cc))
	}
	return sources
}

func sourceFromChunk(cc ContextChunk) v1.SourceDocument {
	excerpt := cc.Chunk.Text
	if len(excerpt) > sourceExcerptLimit {
		// Back off to a rune boundary so the cut never leaves a broken
		// UTF-8 sequence in the response.
		cut := sourceExcerptLimit
		for cut > 0 && !utf8.RuneStart(excerpt[cut]) {
			cut--
		}
		excerpt = excerpt[:cut] + "..."
	}
	return v1.SourceDocument{
		DocumentID: cc.Chunk.DocumentID,
		Location:   cc.Chunk.Location,
		Excerpt:    excerpt,
	}
}

func stringList(value gjson.Result, limit int) []string {
	items := []string{}
	value.ForEach(func(_, entry gjson.Result) bool {
		s := strings.TrimSpace(entry.String())
		if s != "" && len(items) < limit {
			items = append(items, s)
		}
		return true
	})
	return items
}

var codeFence = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")

func stripCodeFence(text string) string {
	if m := codeFence.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return text
}

var suggestedHeading = regexp.MustCompile(`(?i)(?:suggested|follow-up) questions?:?\s*$`)

// extractTrailingQuestions pulls a trailing "Suggested questions:" list out
// of free-form model text.
func extractTrailingQuestions(text string) (string, []string) {
	lines := strings.Split(text, "\n")
	questions := []string{}
	cut := len(lines)

	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(lines[i]), "-*0123456789. "))
		if line == "" {
			continue
		}
		if suggestedHeading.MatchString(strings.TrimSpace(lines[i])) {
			cut = i
			break
		}
		if !strings.HasSuffix(line, "?") {
			break
		}
		questions = append([]string{line}, questions...)
	}

	if cut == len(lines) {
		return strings.TrimSpace(text), []string{}
	}
	if len(questions) > maxSuggestedQuestions {
		questions = questions[:maxSuggestedQuestions]
	}
	return strings.TrimSpace(strings.Join(lines[:cut], "\n")), questions
}
