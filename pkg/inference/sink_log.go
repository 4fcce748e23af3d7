package inference

import (
	"github.com/go-go-golems/forkchat/pkg/events"
	"github.com/rs/zerolog"
)

// LogSink writes a structured log line per event. Partial completions are logged at
// trace level, everything else at debug.
type LogSink struct {
	logger zerolog.Logger
}

func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (l *LogSink) PublishEvent(event events.Event) error {
	ev := l.logger.Debug()
	switch e := event.(type) {
	case *events.EventPartialCompletion:
		ev = l.logger.Trace().Int("completion_length", len(e.Completion))
	case *events.EventError:
		ev = ev.Str("error", e.ErrorString)
	case *events.EventCommitted:
		ev = ev.Int("message_count", e.MessageCount)
	}
	ev.Str("event_type", string(event.Type())).
		Object("meta", event.Metadata()).
		Msg("inference event")
	return nil
}

var _ EventSink = (*LogSink)(nil)
