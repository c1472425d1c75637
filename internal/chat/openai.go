package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/lox/drillboard/internal/config"
	"github.com/lox/drillboard/internal/httputil"
	"github.com/lox/drillboard/internal/models"
)

const (
	defaultModel = "gpt-3.5-turbo"
	maxTokens    = 300
	temperature  = 0.7
)

// OpenAI answers with the chat completions API.
type OpenAI struct {
	client openai.Client
	model  string
}

// NewOpenAI creates an assistant for the configured key and model. Extra
// request options are appended, which tests use to point at a local server.
func NewOpenAI(cfg config.OpenAIConfig, opts ...option.RequestOption) *OpenAI {
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}

	base := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httputil.NewClient()),
		option.WithMaxRetries(2),
	}
	return &OpenAI{
		client: openai.NewClient(append(base, opts...)...),
		model:  model,
	}
}

func (o *OpenAI) Name() string { return "openai" }

func (o *OpenAI) Ask(ctx context.Context, message string, records []models.Record) (string, error) {
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: o.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(BuildPrompt(message, records)),
		},
		MaxTokens:   openai.Int(maxTokens),
		Temperature: openai.Float(temperature),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("no completion choices returned")
	}
	answer := strings.TrimSpace(resp.Choices[0].Message.Content)
	if answer == "" {
		return "", errors.New("empty completion returned")
	}

	log.Printf("chat: answered with %s (%d tokens)", resp.Model, resp.Usage.TotalTokens)
	return answer, nil
}
