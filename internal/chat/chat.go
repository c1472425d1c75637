// Package chat answers drilling questions with a small slice of well data
// as context.
package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/lox/drillboard/internal/config"
	"github.com/lox/drillboard/internal/models"
)

// MaxContextRecords bounds how much of a dataset is sent with a question.
const MaxContextRecords = 5

// FallbackResponse is shown to the user when the assistant fails.
const FallbackResponse = "I'm sorry, I'm having trouble processing your request right now. Please try again later."

const systemPrompt = "You are Drill AI, an expert assistant for oil drilling operations. " +
	"You help analyze well data, provide drilling insights, and answer technical questions " +
	"about oil drilling operations, geology, and well optimization."

// Assistant answers a user message about the given records.
type Assistant interface {
	Ask(ctx context.Context, message string, records []models.Record) (string, error)
	// Name labels the backend in metrics and health output.
	Name() string
}

// ContextRecords returns at most the first MaxContextRecords records.
func ContextRecords(records []models.Record) []models.Record {
	if len(records) > MaxContextRecords {
		return records[:MaxContextRecords]
	}
	return records
}

// BuildPrompt embeds the context records as JSON ahead of the question.
// An empty record set adds no data prefix.
func BuildPrompt(message string, records []models.Record) string {
	var prefix string
	if ctxRecords := ContextRecords(records); len(ctxRecords) > 0 {
		data, err := json.Marshal(ctxRecords)
		if err == nil {
			prefix = fmt.Sprintf("Current well data: %s. ", data)
		}
	}
	return prefix + "User question about oil drilling: " + message + ".\n" +
		"Please provide a helpful, technical response about oil drilling operations, " +
		"well data analysis, or drilling optimization. Keep the response concise and professional."
}

// New picks the OpenAI assistant when a key is configured, otherwise the
// development mock.
func New(cfg config.OpenAIConfig) Assistant {
	if cfg.APIKey == "" {
		log.Println("chat: no OpenAI API key, using mock responses")
		return NewMock()
	}
	return NewOpenAI(cfg)
}
