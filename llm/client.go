package llm

import (
	"context"
)

// Client defines the interface for OpenAI-compatible chat-completion endpoints
type Client interface {
	// Chat sends a single non-streaming request and returns the first choice's text
	Chat(ctx context.Context, request *ChatRequest) (*ChatResponse, error)

	// ChatStream sends a chat request and returns a stream of chunks ending in a Done or Err event
	ChatStream(ctx context.Context, request *ChatRequest) (<-chan StreamEvent, error)

	// ListModels returns the models served by the endpoint
	ListModels(ctx context.Context) ([]Model, error)

	// Health reports nil once the backing model server is ready
	Health(ctx context.Context) error

	// Close cleans up any resources
	Close() error
}
