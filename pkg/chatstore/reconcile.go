package chatstore

import (
	"sort"

	"github.com/go-go-golems/forkchat/pkg/conversation"
	"github.com/rs/zerolog/log"
)

type ReconcileResult struct {
	Added      []string
	Removed    []string
	Duplicates []string
}

func (r ReconcileResult) Changed() bool {
	return len(r.Added) > 0 || len(r.Removed) > 0 || len(r.Duplicates) > 0
}

// Reconcile brings the history index back in line with the stored conversations: it
// drops entries without a conversation, drops repeated entries for the same id (the
// first one wins) and appends entries for conversations that have none. Nothing is
// written when the two already agree.
func (s *Store) Reconcile() (ReconcileResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ret := ReconcileResult{}
	seen := make(map[string]bool, len(s.history))
	kept := make([]conversation.HistoryEntry, 0, len(s.history))
	for _, e := range s.history {
		if _, ok := s.chats[e.ID]; !ok {
			ret.Removed = append(ret.Removed, e.ID)
			continue
		}
		if seen[e.ID] {
			ret.Duplicates = append(ret.Duplicates, e.ID)
			continue
		}
		seen[e.ID] = true
		kept = append(kept, e)
	}

	missing := []string{}
	for id := range s.chats {
		if !seen[id] {
			missing = append(missing, id)
		}
	}
	sort.Strings(missing)

	now := s.now().UnixMilli()
	for _, id := range missing {
		msgs := s.chats[id]
		kept = append(kept, conversation.HistoryEntry{
			ID:          id,
			Title:       conversation.Title(msgs, s.titleLength),
			LastMessage: msgs.LastContent(),
			Timestamp:   now,
		})
		ret.Added = append(ret.Added, id)
	}

	if !ret.Changed() {
		return ret, nil
	}
	s.history = kept

	log.Info().
		Int("added", len(ret.Added)).
		Int("removed", len(ret.Removed)).
		Int("duplicates", len(ret.Duplicates)).
		Msg("reconciled history index")

	return ret, s.mutated()
}
