package chatstore

import (
	"math"
	"strings"
	"testing"

	"github.com/go-go-golems/forkchat/pkg/conversation"
	"github.com/go-go-golems/forkchat/pkg/kvstore"
	"github.com/stretchr/testify/require"
)

func TestForkCopiesPrefix(t *testing.T) {
	s := newTestStore(t, kvstore.NewMemoryStore())
	require.NoError(t, s.SaveConversation("src", msgs("m0", "m1", "m2"), ""))

	newID, err := s.Fork("src", 1)
	require.NoError(t, err)
	require.NotEmpty(t, newID)
	require.NotEqual(t, "src", newID)

	require.Equal(t, msgs("m0", "m1"), s.GetMessages(newID))

	e, ok := s.GetEntry(newID)
	require.True(t, ok)
	require.True(t, strings.HasPrefix(e.Title, conversation.ForkTitlePrefix))
	require.Equal(t, "Fork of: m0", e.Title)
	require.Equal(t, "m1", e.LastMessage)
	require.Equal(t, "src", e.ParentChatID)

	require.Equal(t, []string{newID, "src"}, historyIDs(s))
}

func TestForkIsFrozen(t *testing.T) {
	s := newTestStore(t, kvstore.NewMemoryStore())
	require.NoError(t, s.SaveConversation("src", msgs("m0", "m1"), ""))
	newID, err := s.Fork("src", 1)
	require.NoError(t, err)

	require.NoError(t, s.SaveConversation("src", msgs("m0", "m1", "m2", "m3"), ""))
	require.Equal(t, msgs("m0", "m1"), s.GetMessages(newID))
}

func TestForkUnknownSource(t *testing.T) {
	s := newTestStore(t, kvstore.NewMemoryStore())
	require.NoError(t, s.SaveConversation("a", msgs("x"), ""))
	before := s.GetHistory()

	newID, err := s.Fork("missing", 0)
	require.ErrorIs(t, err, ErrForkSourceNotFound)
	require.Equal(t, "", newID)
	require.Equal(t, before, s.GetHistory())
	require.Equal(t, 1, s.Len())
}

func TestForkIndexBounds(t *testing.T) {
	s := newTestStore(t, kvstore.NewMemoryStore())
	require.NoError(t, s.SaveConversation("src", msgs("m0", "m1", "m2"), ""))

	all, err := s.Fork("src", 99)
	require.NoError(t, err)
	require.Equal(t, msgs("m0", "m1", "m2"), s.GetMessages(all))

	none, err := s.Fork("src", -5)
	require.NoError(t, err)
	require.Empty(t, s.GetMessages(none))
	require.True(t, s.Has(none))
	e, _ := s.GetEntry(none)
	require.Equal(t, "", e.LastMessage)

	var huge string
	require.NotPanics(t, func() {
		huge, err = s.Fork("src", math.MaxInt)
	})
	require.NoError(t, err)
	require.Equal(t, msgs("m0", "m1", "m2"), s.GetMessages(huge))
}

func TestForkWithoutSourceEntryUsesFallbackTitle(t *testing.T) {
	kv := kvstore.NewMemoryStore()
	require.NoError(t, kv.Set(ChatsKey, []byte(`{"src":[{"role":"user","content":"hi"}]}`)))
	s := newTestStore(t, kv)

	newID, err := s.Fork("src", 0)
	require.NoError(t, err)
	e, ok := s.GetEntry(newID)
	require.True(t, ok)
	require.Equal(t, "Fork of: Chat", e.Title)
}

func TestForkOfFork(t *testing.T) {
	s := newTestStore(t, kvstore.NewMemoryStore())
	require.NoError(t, s.SaveConversation("src", msgs("m0", "m1", "m2"), ""))
	f1, err := s.Fork("src", 2)
	require.NoError(t, err)
	f2, err := s.Fork(f1, 0)
	require.NoError(t, err)

	e, _ := s.GetEntry(f2)
	require.Equal(t, "Fork of: Fork of: m0", e.Title)
	require.Equal(t, f1, e.ParentChatID)

	forest := conversation.GroupHistory(s.GetHistory())
	g, ok := forest.Get("src")
	require.True(t, ok)
	require.Len(t, g.Forks, 1)
	g, ok = forest.Get(f1)
	require.True(t, ok)
	require.Len(t, g.Forks, 1)
}

func TestReconcile(t *testing.T) {
	kv := kvstore.NewMemoryStore()
	require.NoError(t, kv.Set(ChatsKey, []byte(`{
		"b":[{"role":"user","content":"bee"}],
		"a":[{"role":"user","content":"ay"}],
		"kept":[{"role":"user","content":"kept"}]
	}`)))
	require.NoError(t, kv.Set(HistoryKey, []byte(`[
		{"id":"kept","title":"kept","lastMessage":"kept","timestamp":1},
		{"id":"ghost","title":"ghost","lastMessage":"","timestamp":2},
		{"id":"kept","title":"dupe","lastMessage":"","timestamp":3}
	]`)))
	s := newTestStore(t, kv)

	res, err := s.Reconcile()
	require.NoError(t, err)
	require.True(t, res.Changed())
	require.Equal(t, []string{"a", "b"}, res.Added)
	require.Equal(t, []string{"ghost"}, res.Removed)
	require.Equal(t, []string{"kept"}, res.Duplicates)
	require.Equal(t, []string{"kept", "a", "b"}, historyIDs(s))

	e, _ := s.GetEntry("a")
	require.Equal(t, "ay", e.Title)

	res, err = s.Reconcile()
	require.NoError(t, err)
	require.False(t, res.Changed())
}
