package chatstore

import (
	"github.com/go-go-golems/forkchat/pkg/conversation"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Fork copies messages [0..messageIndex] of sourceID into a new conversation whose
// parent is sourceID, and puts its history entry at the front.
//
// An unknown source leaves the store untouched and returns "" with ErrForkSourceNotFound.
// Indices past the end copy the whole conversation; negative indices copy nothing.
func (s *Store) Fork(sourceID string, messageIndex int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	source, ok := s.chats[sourceID]
	if !ok {
		return "", errors.Wrapf(ErrForkSourceNotFound, "conversation %q", sourceID)
	}

	msgs := source.Prefix(messageIndex)
	newID := s.newID()

	sourceTitle := ""
	if idx := s.indexOfLocked(sourceID); idx >= 0 {
		sourceTitle = s.history[idx].Title
	}

	s.chats[newID] = msgs
	s.prependLocked(conversation.HistoryEntry{
		ID:           newID,
		Title:        conversation.ForkTitle(sourceTitle),
		LastMessage:  msgs.LastContent(),
		Timestamp:    s.now().UnixMilli(),
		ParentChatID: sourceID,
	})

	log.Debug().
		Str("conversation_id", newID).
		Str("parent_id", sourceID).
		Int("message_index", messageIndex).
		Int("messages", len(msgs)).
		Msg("forked conversation")

	if err := s.mutated(); err != nil {
		return newID, err
	}
	return newID, nil
}
