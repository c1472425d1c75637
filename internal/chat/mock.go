package chat

import (
	"context"
	"sync/atomic"

	"github.com/lox/drillboard/internal/models"
)

var mockReplies = []string{
	"I'm currently in development mode. Please configure your OpenAI API key for full functionality.",
	"This is a mock response. Set up your OpenAI API key to enable AI-powered responses.",
	"The chatbot is in demo mode. Configure environment variables for full AI capabilities.",
}

// Mock cycles through fixed replies. It never fails.
type Mock struct {
	next atomic.Uint64
}

func NewMock() *Mock {
	return &Mock{}
}

func (m *Mock) Name() string { return "mock" }

func (m *Mock) Ask(context.Context, string, []models.Record) (string, error) {
	i := m.next.Add(1) - 1
	return mockReplies[i%uint64(len(mockReplies))], nil
}
