package ai

import (
	"context"
	"fmt"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	log "github.com/sirupsen/logrus"
)

// LLMClient talks to an OpenAI-compatible chat completion endpoint.
type LLMClient struct {
	client    *openai.Client
	model     string
	maxTokens int64
}

func NewLLMClient(url, model string, maxTokens int64) *LLMClient {
	options := []option.RequestOption{}
	if url != "" {
		options = append(options, option.WithBaseURL(url))
	}

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		log.Info("OPENAI_API_KEY environment variable is not set, will try unauthenticated access")
	} else {
		options = append(options, option.WithAPIKey(apiKey))
	}

	client := openai.NewClient(options...)
	return &LLMClient{client: &client, model: model, maxTokens: maxTokens}
}

// Chat sends one system+user exchange and returns the model's text. Output
// length is bounded by the configured max token count.
func (llm *LLMClient) Chat(ctx context.Context, instructions, data string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(instructions),
			openai.UserMessage(data),
		},
		Model: llm.model,
	}
	if llm.maxTokens > 0 {
		params.MaxTokens = openai.Int(llm.maxTokens)
	}

	resp, err := llm.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("client didn't return any content choices")
	}

	return resp.Choices[0].Message.Content, nil
}
