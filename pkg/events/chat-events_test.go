package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, e Event) Event {
	t.Helper()
	b, err := json.Marshal(e)
	require.NoError(t, err)
	ret, err := NewEventFromJson(b)
	require.NoError(t, err)
	require.Equal(t, b, ret.Payload())
	return ret
}

func TestNewEventFromJsonDecodesTypedEvents(t *testing.T) {
	meta := NewEventMetadata("c1", "inf-1")
	meta.Model = "llama"

	partial, ok := roundTrip(t, NewPartialCompletionEvent(meta, "lo", "Hello")).(*EventPartialCompletion)
	require.True(t, ok)
	require.Equal(t, "lo", partial.Delta)
	require.Equal(t, "Hello", partial.Completion)
	require.Equal(t, meta, partial.Metadata())

	final, ok := roundTrip(t, NewFinalEvent(meta, "Hello")).(*EventFinal)
	require.True(t, ok)
	require.Equal(t, "Hello", final.Text)

	errEvent, ok := roundTrip(t, NewErrorEvent(meta, errors.New("boom"))).(*EventError)
	require.True(t, ok)
	require.Equal(t, "boom", errEvent.ErrorString)

	interrupt, ok := roundTrip(t, NewInterruptEvent(meta, "Hel")).(*EventInterrupt)
	require.True(t, ok)
	require.Equal(t, "Hel", interrupt.Text)

	committed, ok := roundTrip(t, NewCommittedEvent(meta, 4)).(*EventCommitted)
	require.True(t, ok)
	require.Equal(t, 4, committed.MessageCount)

	_, ok = roundTrip(t, NewStartEvent(meta)).(*EventPartialCompletionStart)
	require.True(t, ok)
}

func TestNewEventFromJsonUnknownAndInvalid(t *testing.T) {
	e, err := NewEventFromJson([]byte(`{"type":"custom"}`))
	require.NoError(t, err)
	require.Equal(t, EventType("custom"), e.Type())

	_, err = NewEventFromJson([]byte(`null`))
	require.Error(t, err)

	_, err = NewEventFromJson([]byte(`{`))
	require.Error(t, err)
}

func publishTo(t *testing.T, h func(*message.Message) error, events ...Event) {
	t.Helper()
	for _, e := range events {
		b, err := json.Marshal(e)
		require.NoError(t, err)
		require.NoError(t, h(message.NewMessage(watermill.NewUUID(), b)))
	}
}

func TestStepPrinterFunc(t *testing.T) {
	meta := NewEventMetadata("c1", "inf-1")
	buf := &bytes.Buffer{}
	printer := StepPrinterFunc("assistant", buf)

	publishTo(t, printer,
		NewStartEvent(meta),
		NewPartialCompletionEvent(meta, "Hel", "Hel"),
		NewPartialCompletionEvent(meta, "lo", "Hello"),
		NewFinalEvent(meta, "Hello"),
	)
	require.Equal(t, "\nassistant: \nHello\n", buf.String())

	buf.Reset()
	publishTo(t, printer,
		NewStartEvent(meta),
		NewPartialCompletionEvent(meta, "Hel", "Hel"),
		NewInterruptEvent(meta, "Hel"),
	)
	require.Equal(t, "\nassistant: \nHel\n[interrupted, response discarded]\n", buf.String())

	buf.Reset()
	publishTo(t, printer, NewErrorEvent(meta, errors.New("rate limited")))
	require.Equal(t, "\n[error: rate limited]\n", buf.String())
}

func TestDumpRawEventsStripsMetadata(t *testing.T) {
	router, err := NewEventRouter()
	require.NoError(t, err)

	meta := NewEventMetadata("c1", "inf-1")
	buf := &bytes.Buffer{}
	publishTo(t, router.DumpRawEvents(buf), NewFinalEvent(meta, "Hello"))

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	require.Equal(t, "final", out["type"])
	require.Equal(t, "Hello", out["text"])
	require.Equal(t, meta.ID.String(), out["id"])
	require.NotContains(t, out, "meta")
}
