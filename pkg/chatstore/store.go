// Package chatstore keeps conversations and their history index on top of a key-value
// store.
//
// The store is an explicit handle: Open loads both keys (falling back to empty state when
// a value is missing or unreadable) and every mutation is flushed back unless auto-flush
// is turned off, in which case the caller flushes.
package chatstore

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/go-go-golems/forkchat/pkg/conversation"
	"github.com/go-go-golems/forkchat/pkg/kvstore"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	// ChatsKey holds a JSON object mapping conversation ids to message arrays.
	ChatsKey = "chats"
	// HistoryKey holds the JSON array of history entries, newest first.
	HistoryKey = "chatHistory"
)

var (
	ErrForkSourceNotFound = errors.New("fork source not found")
	ErrEmptyID            = errors.New("conversation id is empty")
	ErrNilKV              = errors.New("key-value store is nil")
)

type Store struct {
	kv kvstore.Store

	mu      sync.RWMutex
	chats   map[string]conversation.Messages
	history []conversation.HistoryEntry

	titleLength int
	now         func() time.Time
	newID       func() string
	moveToFront bool
	autoFlush   bool
}

// Open creates a store on top of kv and loads its current contents.
func Open(kv kvstore.Store, options ...Option) (*Store, error) {
	if kv == nil {
		return nil, ErrNilKV
	}
	s := defaultStore()
	s.kv = kv
	for _, o := range options {
		o(s)
	}

	s.mu.Lock()
	s.loadLocked()
	s.mu.Unlock()

	return s, nil
}

// Reload replaces the in-memory state with what is currently in the key-value store.
// Unflushed changes are lost.
func (s *Store) Reload() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadLocked()
}

func (s *Store) loadLocked() {
	chats := map[string]conversation.Messages{}
	if err := s.readJSON(ChatsKey, &chats); err != nil {
		log.Warn().Err(err).Str("key", ChatsKey).Msg("could not read conversations, starting empty")
		chats = map[string]conversation.Messages{}
	}
	if chats == nil {
		chats = map[string]conversation.Messages{}
	}
	for id, msgs := range chats {
		if msgs == nil {
			chats[id] = conversation.Messages{}
		}
	}

	history := []conversation.HistoryEntry{}
	if err := s.readJSON(HistoryKey, &history); err != nil {
		log.Warn().Err(err).Str("key", HistoryKey).Msg("could not read history, starting empty")
		history = []conversation.HistoryEntry{}
	}
	if history == nil {
		history = []conversation.HistoryEntry{}
	}

	s.chats = chats
	s.history = history

	log.Debug().
		Int("conversations", len(chats)).
		Int("history_entries", len(history)).
		Msg("loaded chat store")
}

func (s *Store) readJSON(key string, v interface{}) error {
	b, ok, err := s.kv.Get(key)
	if err != nil {
		return err
	}
	if !ok || len(b) == 0 {
		return nil
	}
	return errors.Wrapf(json.Unmarshal(b, v), "corrupt value for %s", key)
}

// Flush writes both keys to the key-value store.
func (s *Store) Flush() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.flushLocked()
}

func (s *Store) flushLocked() error {
	chats, err := json.Marshal(s.chats)
	if err != nil {
		return errors.Wrap(err, "could not serialize conversations")
	}
	history, err := json.Marshal(s.history)
	if err != nil {
		return errors.Wrap(err, "could not serialize history")
	}
	if err := s.kv.Set(ChatsKey, chats); err != nil {
		return err
	}
	return s.kv.Set(HistoryKey, history)
}

func (s *Store) mutated() error {
	if !s.autoFlush {
		return nil
	}
	return s.flushLocked()
}

// GenerateID returns a fresh conversation id. Collisions are not checked.
func (s *Store) GenerateID() string {
	return s.newID()
}

// GetMessages returns a copy of the messages of id, or an empty slice for unknown ids.
func (s *Store) GetMessages(id string) conversation.Messages {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.chats[id].Clone()
}

// GetAllConversations returns a copy of every stored message list keyed by id.
func (s *Store) GetAllConversations() map[string]conversation.Messages {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ret := make(map[string]conversation.Messages, len(s.chats))
	for id, msgs := range s.chats {
		ret[id] = msgs.Clone()
	}
	return ret
}

// GetConversation returns the messages of id together with the parent link recorded in
// its history entry.
func (s *Store) GetConversation(id string) (conversation.Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs, ok := s.chats[id]
	if !ok {
		return conversation.Conversation{}, false
	}
	ret := conversation.Conversation{ID: id, Messages: msgs.Clone()}
	if idx := s.indexOfLocked(id); idx >= 0 {
		ret.ParentChatID = s.history[idx].ParentChatID
	}
	return ret, true
}

func (s *Store) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.chats[id]
	return ok
}

// GetHistory returns a copy of the history index, newest entries first.
func (s *Store) GetHistory() []conversation.HistoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ret := make([]conversation.HistoryEntry, len(s.history))
	copy(ret, s.history)
	return ret
}

func (s *Store) GetEntry(id string) (conversation.HistoryEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if idx := s.indexOfLocked(id); idx >= 0 {
		return s.history[idx], true
	}
	return conversation.HistoryEntry{}, false
}

func (s *Store) indexOfLocked(id string) int {
	for i := range s.history {
		if s.history[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) prependLocked(entry conversation.HistoryEntry) {
	s.history = append([]conversation.HistoryEntry{entry}, s.history...)
}

func (s *Store) removeEntryLocked(idx int) {
	s.history = append(s.history[:idx], s.history[idx+1:]...)
}

// SaveConversation stores messages under id and recomputes its history entry. An empty
// parentChatID keeps the parent already recorded for id. Existing entries are replaced
// in place unless WithMoveToFrontOnUpdate is set; new entries go to the front.
//
// The in-memory state is updated even if writing to the key-value store fails.
func (s *Store) SaveConversation(id string, messages []conversation.Message, parentChatID string) error {
	if id == "" {
		return ErrEmptyID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := conversation.Messages(messages).Clone()
	s.chats[id] = msgs

	entry := conversation.HistoryEntry{
		ID:           id,
		Title:        conversation.Title(msgs, s.titleLength),
		LastMessage:  msgs.LastContent(),
		Timestamp:    s.now().UnixMilli(),
		ParentChatID: parentChatID,
	}

	idx := s.indexOfLocked(id)
	switch {
	case idx < 0:
		s.prependLocked(entry)
	case s.moveToFront:
		if entry.ParentChatID == "" {
			entry.ParentChatID = s.history[idx].ParentChatID
		}
		s.removeEntryLocked(idx)
		s.prependLocked(entry)
	default:
		if entry.ParentChatID == "" {
			entry.ParentChatID = s.history[idx].ParentChatID
		}
		s.history[idx] = entry
	}

	log.Debug().
		Str("conversation_id", id).
		Int("messages", len(msgs)).
		Bool("new", idx < 0).
		Msg("saved conversation")

	return s.mutated()
}

// DeleteConversation removes the conversation and its history entry. Forks pointing at
// it are left alone. Unknown ids are a no-op.
func (s *Store) DeleteConversation(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, known := s.chats[id]
	delete(s.chats, id)
	idx := s.indexOfLocked(id)
	if idx >= 0 {
		s.removeEntryLocked(idx)
	}
	if !known && idx < 0 {
		return nil
	}

	log.Debug().Str("conversation_id", id).Msg("deleted conversation")
	return s.mutated()
}

// Clear drops every conversation and removes both keys from the key-value store. Without
// auto flush the keys stay until Flush, which then writes the empty store.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.chats = map[string]conversation.Messages{}
	s.history = []conversation.HistoryEntry{}

	if !s.autoFlush {
		return nil
	}
	if err := s.kv.Delete(ChatsKey); err != nil {
		return err
	}
	return s.kv.Delete(HistoryKey)
}

// Len returns the number of stored conversations.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chats)
}
