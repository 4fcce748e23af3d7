package inference

import "github.com/go-go-golems/forkchat/pkg/events"

// EventSink is a destination for inference events, for example a watermill topic
// rendered by the terminal.
type EventSink interface {
	// PublishEvent returns an error if the event could not be delivered.
	PublishEvent(event events.Event) error
}
