package session

import (
	"context"
	"strings"
	"sync"

	"github.com/go-go-golems/forkchat/pkg/conversation"
	"github.com/pkg/errors"
)

var ErrExecutionHandleNil = errors.New("execution handle is nil")

// ExecutionHandle represents a single in-flight completion.
//
// It is cancelable and waitable. The completion is always driven by context cancellation.
type ExecutionHandle struct {
	ConversationID string
	InferenceID    string

	// Input is the prior conversation plus the new user message.
	Input conversation.Messages

	done chan struct{}

	mu      sync.Mutex
	cancel  context.CancelFunc
	partial strings.Builder
	out     conversation.Messages
	err     error
}

func newExecutionHandle(conversationID, inferenceID string, input conversation.Messages, cancel context.CancelFunc) *ExecutionHandle {
	return &ExecutionHandle{
		ConversationID: conversationID,
		InferenceID:    inferenceID,
		Input:          input,
		done:           make(chan struct{}),
		cancel:         cancel,
	}
}

func (h *ExecutionHandle) appendPartial(delta string) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.partial.WriteString(delta)
	return h.partial.String()
}

func (h *ExecutionHandle) setResult(out conversation.Messages, err error) {
	h.mu.Lock()
	h.out = out
	h.err = err
	close(h.done)
	if h.cancel != nil {
		// releases the context resources of a completed run
		h.cancel()
	}
	h.cancel = nil
	h.mu.Unlock()
}

// Cancel abandons the in-flight completion. It is safe to call multiple times.
func (h *ExecutionHandle) Cancel() {
	if h == nil {
		return
	}
	h.mu.Lock()
	cancel := h.cancel
	h.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Wait blocks until the completion ends. On success it returns the committed conversation,
// whose last message is the assistant reply.
func (h *ExecutionHandle) Wait() (conversation.Messages, error) {
	if h == nil {
		return nil, ErrExecutionHandleNil
	}
	<-h.done
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.out, h.err
}

// Done is closed once the completion has ended.
func (h *ExecutionHandle) Done() <-chan struct{} {
	return h.done
}

// Partial returns the text received so far.
func (h *ExecutionHandle) Partial() string {
	if h == nil {
		return ""
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.partial.String()
}

// IsRunning reports whether the completion appears to still be running.
func (h *ExecutionHandle) IsRunning() bool {
	if h == nil {
		return false
	}
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}
