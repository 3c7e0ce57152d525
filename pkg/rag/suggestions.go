package rag

// SuggestionProvider decides the follow-up questions attached to a turn.
// Whether they come from the model or a template is an implementation
// choice behind this interface.
type SuggestionProvider interface {
	Suggestions(result Result) []string
}

// GreetingSuggestions accompany the canned greeting response.
var GreetingSuggestions = []string{
	"What are the main ERP modules RedClouds offers?",
	"How can RedClouds ERP benefit my business?",
	"How do I get technical support for RedClouds ERP?",
}

// NoContextSuggestions accompany the fallback response when retrieval found
// nothing usable.
var NoContextSuggestions = []string{
	"Could you please rephrase your question more specifically?",
	"What specific RedClouds ERP module are you interested in?",
	"Would you like me to connect you with a human support agent?",
}

// ModelSuggestions prefers the questions the model produced and falls back
// to a static template set when there are none.
type ModelSuggestions struct {
	Fallback []string
}

func NewModelSuggestions() *ModelSuggestions {
	return &ModelSuggestions{Fallback: NoContextSuggestions}
}

func (p *ModelSuggestions) Suggestions(result Result) []string {
	if result.Degraded {
		return []string{}
	}
	if len(result.SuggestedQuestions) > 0 {
		questions := result.SuggestedQuestions
		if len(questions) > maxSuggestedQuestions {
			questions = questions[:maxSuggestedQuestions]
		}
		return questions
	}
	return p.Fallback
}
