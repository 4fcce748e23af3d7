package engine

import (
	"context"

	"github.com/go-go-golems/forkchat/pkg/conversation"
)

// Engine requests a completion from a provider. Engines only produce fragments; they do
// not persist anything and do not publish events, the session does both.
type Engine interface {
	// Stream sends the full message list and returns the response fragments. Errors
	// returned here happen before any fragment arrived.
	Stream(ctx context.Context, messages conversation.Messages) (Stream, error)
}

// Stream yields the text fragments of a single completion in order.
type Stream interface {
	// Recv returns the next non-empty fragment. It returns io.EOF once the provider
	// signalled the end of the completion, and any other error when the stream broke.
	Recv() (string, error)
	Close() error
}

// EngineFunc adapts a function to the Engine interface.
type EngineFunc func(ctx context.Context, messages conversation.Messages) (Stream, error)

func (f EngineFunc) Stream(ctx context.Context, messages conversation.Messages) (Stream, error) {
	return f(ctx, messages)
}
