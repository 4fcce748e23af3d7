package chatstore

import (
	"time"

	"github.com/go-go-golems/forkchat/pkg/conversation"
	"github.com/lithammer/shortuuid/v3"
)

type Option func(*Store)

// WithTitleLength sets the number of runes kept in history titles.
func WithTitleLength(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.titleLength = n
		}
	}
}

// WithClock overrides the time source used for history timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithIDGenerator overrides GenerateID.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) {
		s.newID = gen
	}
}

// WithMoveToFrontOnUpdate makes SaveConversation move an updated entry to the front of
// the history instead of replacing it in place.
func WithMoveToFrontOnUpdate(moveToFront bool) Option {
	return func(s *Store) {
		s.moveToFront = moveToFront
	}
}

// WithAutoFlush controls whether mutations, Clear included, are written through
// immediately. When disabled, callers must call Flush.
func WithAutoFlush(autoFlush bool) Option {
	return func(s *Store) {
		s.autoFlush = autoFlush
	}
}

func defaultStore() *Store {
	return &Store{
		chats:       map[string]conversation.Messages{},
		history:     []conversation.HistoryEntry{},
		titleLength: conversation.DefaultTitleLength,
		now:         time.Now,
		newID:       shortuuid.New,
		autoFlush:   true,
	}
}
