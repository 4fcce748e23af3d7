package inference

import "github.com/go-go-golems/forkchat/pkg/events"

// NullSink discards all events.
type NullSink struct{}

func NewNullSink() *NullSink {
	return &NullSink{}
}

func (n *NullSink) PublishEvent(event events.Event) error {
	return nil
}

var _ EventSink = (*NullSink)(nil)
