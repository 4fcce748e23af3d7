package session

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/go-go-golems/forkchat/pkg/conversation"
	"github.com/go-go-golems/forkchat/pkg/events"
	"github.com/go-go-golems/forkchat/pkg/inference"
	"github.com/go-go-golems/forkchat/pkg/inference/engine"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var (
	ErrSessionNil          = errors.New("session is nil")
	ErrSessionBusy         = errors.New("session already has an active completion")
	ErrSessionNoActive     = errors.New("session has no active completion")
	ErrSessionEmptyMessage = errors.New("message is empty")
	ErrSessionIDEmpty      = errors.New("session has empty conversation id")
	ErrSessionEngineNil    = errors.New("session engine is nil")
	ErrSessionStoreNil     = errors.New("session store is nil")
	ErrInterrupted         = errors.New("completion interrupted")
)

// ConversationStore is the part of the chat store a session reads from and commits to.
type ConversationStore interface {
	GetMessages(id string) conversation.Messages
	SaveConversation(id string, messages []conversation.Message, parentChatID string) error
}

// Session streams assistant replies for one conversation.
//
// It owns:
// - the conversation id it commits to
// - the state machine of the current exchange
// - the invariant that only one completion is active at a time
//
// Nothing is written to the store unless the stream ended successfully.
type Session struct {
	ConversationID string

	store  ConversationStore
	engine engine.Engine
	sinks  []inference.EventSink
	model  string

	observers []StateObserver

	mu      sync.Mutex
	state   State
	active  *ExecutionHandle
	lastErr error
}

type Option func(*Session)

// WithSink adds sinks that receive the start, partial, final, committed, error and
// interrupt events of every exchange.
func WithSink(sinks ...inference.EventSink) Option {
	return func(s *Session) {
		s.sinks = append(s.sinks, sinks...)
	}
}

func WithStateObserver(o StateObserver) Option {
	return func(s *Session) {
		if o != nil {
			s.observers = append(s.observers, o)
		}
	}
}

// WithModel records the model name in event metadata.
func WithModel(model string) Option {
	return func(s *Session) {
		s.model = model
	}
}

func NewSession(conversationID string, store ConversationStore, e engine.Engine, options ...Option) (*Session, error) {
	if conversationID == "" {
		return nil, ErrSessionIDEmpty
	}
	if store == nil {
		return nil, ErrSessionStoreNil
	}
	if e == nil {
		return nil, ErrSessionEngineNil
	}
	s := &Session{
		ConversationID: conversationID,
		store:          store,
		engine:         e,
		state:          StateIdle,
	}
	for _, o := range options {
		o(s)
	}
	return s, nil
}

func (s *Session) State() State {
	if s == nil {
		return StateIdle
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastError returns the error of the most recent failed exchange, or nil once an exchange
// has committed.
func (s *Session) LastError() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// IsRunning reports whether the session currently has an active completion.
func (s *Session) IsRunning() bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active != nil && s.active.IsRunning()
}

// Active returns the handle of the running completion, if any.
func (s *Session) Active() *ExecutionHandle {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Submit sends the stored conversation plus userText to the engine and streams the reply
// in a goroutine. It returns ErrSessionBusy unless the session is idle.
func (s *Session) Submit(ctx context.Context, userText string) (*ExecutionHandle, error) {
	if s == nil {
		return nil, ErrSessionNil
	}
	if strings.TrimSpace(userText) == "" {
		return nil, ErrSessionEmptyMessage
	}
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return nil, ErrSessionBusy
	}
	input := s.store.GetMessages(s.ConversationID).Clone()
	input = append(input, conversation.NewUserMessage(userText))

	runCtx, cancel := context.WithCancel(ctx)
	handle := newExecutionHandle(s.ConversationID, uuid.NewString(), input, cancel)
	s.active = handle
	s.state = StateSending
	s.mu.Unlock()
	s.notify(StateIdle, StateSending)

	go s.run(runCtx, handle)

	return handle, nil
}

// Send is the synchronous form of Submit. It returns the assistant message once it has
// been committed.
func (s *Session) Send(ctx context.Context, userText string) (conversation.Message, error) {
	h, err := s.Submit(ctx, userText)
	if err != nil {
		return conversation.Message{}, err
	}
	out, err := h.Wait()
	if err != nil {
		return conversation.Message{}, err
	}
	return out[len(out)-1], nil
}

// Cancel abandons the active completion, if any.
func (s *Session) Cancel() error {
	if s == nil {
		return ErrSessionNil
	}
	s.mu.Lock()
	h := s.active
	s.mu.Unlock()
	if h == nil || !h.IsRunning() {
		return ErrSessionNoActive
	}
	h.Cancel()
	return nil
}

func (s *Session) run(ctx context.Context, h *ExecutionHandle) {
	metadata := events.NewEventMetadata(s.ConversationID, h.InferenceID)
	metadata.Model = s.model
	startTime := time.Now()

	logger := log.With().
		Str("conversation_id", s.ConversationID).
		Str("inference_id", h.InferenceID).
		Logger()
	logger.Debug().Int("messages", len(h.Input)).Msg("starting completion")

	s.publish(events.NewStartEvent(metadata))

	stream, err := s.engine.Stream(ctx, h.Input)
	if err != nil {
		s.fail(ctx, h, metadata, err)
		return
	}
	defer func() {
		if err := stream.Close(); err != nil {
			logger.Debug().Err(err).Msg("could not close completion stream")
		}
	}()

	s.transition(StateSending, StateStreaming)

	for {
		delta, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			s.fail(ctx, h, metadata, err)
			return
		}
		if ctx.Err() != nil {
			s.fail(ctx, h, metadata, ctx.Err())
			return
		}
		completion := h.appendPartial(delta)
		logger.Trace().Str("chunk", delta).Msg("received chunk")
		s.publish(events.NewPartialCompletionEvent(metadata, delta, completion))
	}

	// a stream that ended after cancellation is still abandoned
	if ctx.Err() != nil {
		s.fail(ctx, h, metadata, ctx.Err())
		return
	}

	s.transition(StateStreaming, StateCommitting)

	text := h.Partial()
	out := append(h.Input.Clone(), conversation.NewAssistantMessage(text))

	durationMs := time.Since(startTime).Milliseconds()
	metadata.DurationMs = &durationMs
	s.publish(events.NewFinalEvent(metadata, text))

	if err := s.store.SaveConversation(s.ConversationID, out, ""); err != nil {
		s.fail(ctx, h, metadata, errors.Wrap(err, "could not commit conversation"))
		return
	}
	s.publish(events.NewCommittedEvent(metadata, len(out)))
	logger.Debug().Int("messages", len(out)).Int64("duration_ms", durationMs).Msg("committed completion")

	s.finish(StateCommitting, h, out, nil)
}

// fail discards the partial answer and moves the session through Errored back to Idle.
func (s *Session) fail(ctx context.Context, h *ExecutionHandle, metadata events.EventMetadata, err error) {
	from := s.State()

	if ctx.Err() != nil {
		err = errors.Wrap(ErrInterrupted, ctx.Err().Error())
		s.publish(events.NewInterruptEvent(metadata, h.Partial()))
		log.Debug().
			Str("conversation_id", s.ConversationID).
			Str("inference_id", h.InferenceID).
			Msg("completion interrupted, discarding partial answer")
	} else {
		s.publish(events.NewErrorEvent(metadata, err))
		log.Warn().Err(err).
			Str("conversation_id", s.ConversationID).
			Str("inference_id", h.InferenceID).
			Msg("completion failed")
	}

	s.mu.Lock()
	s.state = StateErrored
	s.lastErr = err
	s.mu.Unlock()
	s.notify(from, StateErrored)

	s.finish(StateErrored, h, nil, err)
}

func (s *Session) finish(from State, h *ExecutionHandle, out conversation.Messages, err error) {
	s.mu.Lock()
	s.state = StateIdle
	s.active = nil
	if err == nil {
		s.lastErr = nil
	}
	s.mu.Unlock()
	s.notify(from, StateIdle)

	h.setResult(out, err)
}

func (s *Session) transition(from, to State) {
	s.mu.Lock()
	s.state = to
	s.mu.Unlock()
	s.notify(from, to)
}

func (s *Session) notify(from, to State) {
	for _, o := range s.observers {
		o(from, to)
	}
}

func (s *Session) publish(e events.Event) {
	for _, sink := range s.sinks {
		if err := sink.PublishEvent(e); err != nil {
			log.Warn().Err(err).Str("event_type", string(e.Type())).Msg("could not publish event")
		}
	}
}
