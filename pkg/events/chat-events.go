package events

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type EventType string

const (
	EventTypeStart             EventType = "start"
	EventTypePartialCompletion EventType = "partial"
	EventTypeFinal             EventType = "final"
	EventTypeError             EventType = "error"
	EventTypeInterrupt         EventType = "interrupt"
	// EventTypeCommitted follows a final event once the conversation was written.
	EventTypeCommitted EventType = "committed"
)

type Event interface {
	Type() EventType
	Metadata() EventMetadata
	Payload() []byte
}

// EventMetadata identifies the inference an event belongs to.
type EventMetadata struct {
	ID             uuid.UUID `json:"message_id" yaml:"message_id"`
	ConversationID string    `json:"conversation_id,omitempty" yaml:"conversation_id,omitempty"`
	InferenceID    string    `json:"inference_id,omitempty" yaml:"inference_id,omitempty"`
	Model          string    `json:"model,omitempty" yaml:"model,omitempty"`
	DurationMs     *int64    `json:"duration_ms,omitempty" yaml:"duration_ms,omitempty"`
}

func NewEventMetadata(conversationID, inferenceID string) EventMetadata {
	return EventMetadata{
		ID:             uuid.New(),
		ConversationID: conversationID,
		InferenceID:    inferenceID,
	}
}

func (em EventMetadata) MarshalZerologObject(e *zerolog.Event) {
	e.Str("message_id", em.ID.String())
	if em.ConversationID != "" {
		e.Str("conversation_id", em.ConversationID)
	}
	if em.InferenceID != "" {
		e.Str("inference_id", em.InferenceID)
	}
	if em.Model != "" {
		e.Str("model", em.Model)
	}
	if em.DurationMs != nil {
		e.Int64("duration_ms", *em.DurationMs)
	}
}

type EventImpl struct {
	Type_     EventType     `json:"type"`
	Metadata_ EventMetadata `json:"meta,omitempty"`

	// raw JSON when the event was decoded by NewEventFromJson
	payload []byte
}

func (e *EventImpl) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("type", string(e.Type_))
	ev.Object("meta", e.Metadata_)
}

func (e *EventImpl) Type() EventType {
	return e.Type_
}

func (e *EventImpl) Metadata() EventMetadata {
	return e.Metadata_
}

func (e *EventImpl) Payload() []byte {
	return e.payload
}

var _ Event = &EventImpl{}

type EventPartialCompletionStart struct {
	EventImpl
}

func NewStartEvent(metadata EventMetadata) *EventPartialCompletionStart {
	return &EventPartialCompletionStart{
		EventImpl: EventImpl{
			Type_:     EventTypeStart,
			Metadata_: metadata,
		},
	}
}

var _ Event = &EventPartialCompletionStart{}

// EventPartialCompletion carries one fragment and the text accumulated so far.
type EventPartialCompletion struct {
	EventImpl
	Delta      string `json:"delta"`
	Completion string `json:"completion"`
}

func NewPartialCompletionEvent(metadata EventMetadata, delta string, completion string) *EventPartialCompletion {
	return &EventPartialCompletion{
		EventImpl: EventImpl{
			Type_:     EventTypePartialCompletion,
			Metadata_: metadata,
		},
		Delta:      delta,
		Completion: completion,
	}
}

var _ Event = &EventPartialCompletion{}

type EventFinal struct {
	EventImpl
	Text string `json:"text"`
}

func NewFinalEvent(metadata EventMetadata, text string) *EventFinal {
	return &EventFinal{
		EventImpl: EventImpl{
			Type_:     EventTypeFinal,
			Metadata_: metadata,
		},
		Text: text,
	}
}

var _ Event = &EventFinal{}

// EventInterrupt reports a cancelled inference. Text is the discarded partial answer.
type EventInterrupt struct {
	EventImpl
	Text string `json:"text"`
}

func NewInterruptEvent(metadata EventMetadata, text string) *EventInterrupt {
	return &EventInterrupt{
		EventImpl: EventImpl{
			Type_:     EventTypeInterrupt,
			Metadata_: metadata,
		},
		Text: text,
	}
}

var _ Event = &EventInterrupt{}

type EventError struct {
	EventImpl
	ErrorString string `json:"error_string"`
}

func NewErrorEvent(metadata EventMetadata, err error) *EventError {
	return &EventError{
		EventImpl: EventImpl{
			Type_:     EventTypeError,
			Metadata_: metadata,
		},
		ErrorString: err.Error(),
	}
}

var _ Event = &EventError{}

type EventCommitted struct {
	EventImpl
	MessageCount int `json:"message_count"`
}

func NewCommittedEvent(metadata EventMetadata, messageCount int) *EventCommitted {
	return &EventCommitted{
		EventImpl: EventImpl{
			Type_:     EventTypeCommitted,
			Metadata_: metadata,
		},
		MessageCount: messageCount,
	}
}

var _ Event = &EventCommitted{}

func NewEventFromJson(b []byte) (Event, error) {
	var e *EventImpl
	err := json.Unmarshal(b, &e)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, fmt.Errorf("empty event")
	}

	e.payload = b

	switch e.Type_ {
	case EventTypeStart:
		return decodeTyped[EventPartialCompletionStart](e)
	case EventTypePartialCompletion:
		return decodeTyped[EventPartialCompletion](e)
	case EventTypeFinal:
		return decodeTyped[EventFinal](e)
	case EventTypeInterrupt:
		return decodeTyped[EventInterrupt](e)
	case EventTypeError:
		return decodeTyped[EventError](e)
	case EventTypeCommitted:
		return decodeTyped[EventCommitted](e)
	}

	return e, nil
}

type payloadSetter interface {
	setPayload(b []byte)
}

func (e *EventImpl) setPayload(b []byte) {
	e.payload = b
}

func decodeTyped[T any, PT interface {
	*T
	Event
	payloadSetter
}](e *EventImpl) (Event, error) {
	ret, ok := ToTypedEvent[T](e)
	if !ok || ret == nil {
		return nil, fmt.Errorf("could not cast event to %s", e.Type_)
	}
	pt := PT(ret)
	pt.setPayload(e.payload)
	return pt, nil
}

func ToTypedEvent[T any](e Event) (*T, bool) {
	var ret *T
	err := json.Unmarshal(e.Payload(), &ret)
	if err != nil {
		return nil, false
	}

	return ret, true
}
