package chatstore

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-go-golems/forkchat/pkg/conversation"
	"github.com/go-go-golems/forkchat/pkg/kvstore"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

type sequentialIDs struct {
	n int
}

func (s *sequentialIDs) next() string {
	s.n++
	return fmt.Sprintf("id-%d", s.n)
}

type fixedClock struct {
	t time.Time
}

func (c *fixedClock) now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func newTestStore(t *testing.T, kv kvstore.Store, options ...Option) *Store {
	t.Helper()
	ids := &sequentialIDs{}
	clock := &fixedClock{t: time.Unix(1700000000, 0)}
	opts := append([]Option{WithIDGenerator(ids.next), WithClock(clock.now)}, options...)
	s, err := Open(kv, opts...)
	require.NoError(t, err)
	return s
}

func msgs(contents ...string) conversation.Messages {
	ret := conversation.Messages{}
	for i, c := range contents {
		if i%2 == 0 {
			ret = append(ret, conversation.NewUserMessage(c))
		} else {
			ret = append(ret, conversation.NewAssistantMessage(c))
		}
	}
	return ret
}

func historyIDs(s *Store) []string {
	ret := []string{}
	for _, e := range s.GetHistory() {
		ret = append(ret, e.ID)
	}
	return ret
}

type failingKV struct {
	*kvstore.MemoryStore
	failWrites bool
	failReads  bool
}

func (f *failingKV) Get(key string) ([]byte, bool, error) {
	if f.failReads {
		return nil, false, errors.New("disk on fire")
	}
	return f.MemoryStore.Get(key)
}

func (f *failingKV) Set(key string, value []byte) error {
	if f.failWrites {
		return errors.New("disk full")
	}
	return f.MemoryStore.Set(key, value)
}

func TestSaveConversationRoundTrip(t *testing.T) {
	s := newTestStore(t, kvstore.NewMemoryStore())

	m := msgs("hello", "hi there")
	require.NoError(t, s.SaveConversation("a", m, ""))
	require.Equal(t, m, s.GetMessages("a"))

	all := s.GetAllConversations()
	require.Len(t, all, 1)
	require.Equal(t, m, all["a"])

	e, ok := s.GetEntry("a")
	require.True(t, ok)
	require.Equal(t, "hello", e.Title)
	require.Equal(t, "hi there", e.LastMessage)
	require.Equal(t, int64(1700000001000), e.Timestamp)
	require.Empty(t, e.ParentChatID)
}

func TestGetMessagesUnknownIsEmpty(t *testing.T) {
	s := newTestStore(t, kvstore.NewMemoryStore())
	ms := s.GetMessages("nope")
	require.NotNil(t, ms)
	require.Empty(t, ms)
	require.False(t, s.Has("nope"))
}

func TestReturnedMessagesDoNotAliasStore(t *testing.T) {
	s := newTestStore(t, kvstore.NewMemoryStore())
	m := msgs("hello")
	require.NoError(t, s.SaveConversation("a", m, ""))

	m[0].Content = "mutated by caller"
	got := s.GetMessages("a")
	require.Equal(t, "hello", got[0].Content)

	got[0].Content = "mutated again"
	require.Equal(t, "hello", s.GetMessages("a")[0].Content)
}

func TestSaveConversationTitles(t *testing.T) {
	s := newTestStore(t, kvstore.NewMemoryStore(), WithTitleLength(5))

	require.NoError(t, s.SaveConversation("empty", conversation.Messages{}, ""))
	e, _ := s.GetEntry("empty")
	require.Equal(t, conversation.DefaultTitle, e.Title)
	require.Equal(t, "", e.LastMessage)

	require.NoError(t, s.SaveConversation("long", msgs("abcdefgh"), ""))
	e, _ = s.GetEntry("long")
	require.Equal(t, "abcde...", e.Title)
}

func TestSaveConversationOrdering(t *testing.T) {
	s := newTestStore(t, kvstore.NewMemoryStore())

	require.NoError(t, s.SaveConversation("a", msgs("one"), ""))
	require.NoError(t, s.SaveConversation("b", msgs("two"), ""))
	require.Equal(t, []string{"b", "a"}, historyIDs(s))

	// updates replace in place
	require.NoError(t, s.SaveConversation("a", msgs("one", "reply"), ""))
	require.Equal(t, []string{"b", "a"}, historyIDs(s))
	e, _ := s.GetEntry("a")
	require.Equal(t, "reply", e.LastMessage)
}

func TestSaveConversationMoveToFront(t *testing.T) {
	s := newTestStore(t, kvstore.NewMemoryStore(), WithMoveToFrontOnUpdate(true))

	require.NoError(t, s.SaveConversation("a", msgs("one"), ""))
	require.NoError(t, s.SaveConversation("b", msgs("two"), ""))
	require.NoError(t, s.SaveConversation("a", msgs("one", "reply"), ""))
	require.Equal(t, []string{"a", "b"}, historyIDs(s))
	require.Len(t, s.GetHistory(), 2)
}

func TestSaveConversationKeepsParent(t *testing.T) {
	s := newTestStore(t, kvstore.NewMemoryStore())

	require.NoError(t, s.SaveConversation("a", msgs("one", "two"), ""))
	forkID, err := s.Fork("a", 0)
	require.NoError(t, err)

	require.NoError(t, s.SaveConversation(forkID, msgs("one", "other"), ""))
	c, ok := s.GetConversation(forkID)
	require.True(t, ok)
	require.Equal(t, "a", c.ParentChatID)
	require.True(t, c.IsFork())
}

func TestSaveConversationRejectsEmptyID(t *testing.T) {
	s := newTestStore(t, kvstore.NewMemoryStore())
	require.ErrorIs(t, s.SaveConversation("", msgs("x"), ""), ErrEmptyID)
	require.Equal(t, 0, s.Len())
}

func TestPersistedLayout(t *testing.T) {
	kv := kvstore.NewMemoryStore()
	s := newTestStore(t, kv)
	require.NoError(t, s.SaveConversation("a", msgs("hello"), ""))

	b, ok, err := kv.Get(ChatsKey)
	require.NoError(t, err)
	require.True(t, ok)
	require.JSONEq(t, `{"a":[{"role":"user","content":"hello"}]}`, string(b))

	b, ok, err = kv.Get(HistoryKey)
	require.NoError(t, err)
	require.True(t, ok)
	var raw []map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &raw))
	require.Len(t, raw, 1)
	require.Equal(t, "a", raw[0]["id"])
	require.Equal(t, "hello", raw[0]["title"])
	require.Equal(t, "hello", raw[0]["lastMessage"])
	require.NotContains(t, raw[0], "parentChatId")
}

func TestOpenLoadsExistingState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chats.db")
	kv, err := kvstore.Open(kvstore.BackendSQLite, path)
	require.NoError(t, err)

	s := newTestStore(t, kv)
	require.NoError(t, s.SaveConversation("a", msgs("hello", "world"), ""))
	_, err = s.Fork("a", 0)
	require.NoError(t, err)
	require.NoError(t, kv.Close())

	kv, err = kvstore.Open(kvstore.BackendSQLite, path)
	require.NoError(t, err)
	defer func() { require.NoError(t, kv.Close()) }()

	s2 := newTestStore(t, kv)
	require.Equal(t, s.GetHistory(), s2.GetHistory())
	require.Equal(t, s.GetAllConversations(), s2.GetAllConversations())
}

func TestCorruptValuesLoadAsEmpty(t *testing.T) {
	kv := kvstore.NewMemoryStore()
	require.NoError(t, kv.Set(ChatsKey, []byte("{not json")))
	require.NoError(t, kv.Set(HistoryKey, []byte(`"a string"`)))

	s := newTestStore(t, kv)
	require.Empty(t, s.GetAllConversations())
	require.Empty(t, s.GetHistory())

	require.NoError(t, s.SaveConversation("a", msgs("x"), ""))
	require.Len(t, s.GetHistory(), 1)
}

func TestNullValuesLoadAsEmpty(t *testing.T) {
	kv := kvstore.NewMemoryStore()
	require.NoError(t, kv.Set(ChatsKey, []byte(`{"a":null}`)))
	require.NoError(t, kv.Set(HistoryKey, []byte(`null`)))

	s := newTestStore(t, kv)
	require.True(t, s.Has("a"))
	require.NotNil(t, s.GetAllConversations()["a"])
	require.NotNil(t, s.GetHistory())
}

func TestReadErrorsLoadAsEmpty(t *testing.T) {
	kv := &failingKV{MemoryStore: kvstore.NewMemoryStore(), failReads: true}
	s := newTestStore(t, kv)
	require.Equal(t, 0, s.Len())
}

func TestWriteErrorsAreReturned(t *testing.T) {
	kv := &failingKV{MemoryStore: kvstore.NewMemoryStore(), failWrites: true}
	s := newTestStore(t, kv)
	require.Error(t, s.SaveConversation("a", msgs("x"), ""))
	// in-memory state is kept so a later Flush can retry
	require.True(t, s.Has("a"))

	kv.failWrites = false
	require.NoError(t, s.Flush())
	_, ok, err := kv.Get(ChatsKey)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestAutoFlushDisabled(t *testing.T) {
	kv := kvstore.NewMemoryStore()
	s := newTestStore(t, kv, WithAutoFlush(false))
	require.NoError(t, s.SaveConversation("a", msgs("x"), ""))

	_, ok, err := kv.Get(ChatsKey)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Flush())
	_, ok, err = kv.Get(ChatsKey)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestReloadPicksUpExternalWrites(t *testing.T) {
	kv := kvstore.NewMemoryStore()
	s1 := newTestStore(t, kv)
	s2 := newTestStore(t, kv)

	require.NoError(t, s1.SaveConversation("a", msgs("from s1"), ""))
	require.False(t, s2.Has("a"))

	s2.Reload()
	require.True(t, s2.Has("a"))
}

func TestDeleteConversation(t *testing.T) {
	s := newTestStore(t, kvstore.NewMemoryStore())
	require.NoError(t, s.SaveConversation("a", msgs("one", "two"), ""))
	forkID, err := s.Fork("a", 0)
	require.NoError(t, err)

	require.NoError(t, s.DeleteConversation("a"))
	require.False(t, s.Has("a"))
	_, ok := s.GetEntry("a")
	require.False(t, ok)

	// the fork survives with a dangling parent
	c, ok := s.GetConversation(forkID)
	require.True(t, ok)
	require.Equal(t, "a", c.ParentChatID)
	require.Equal(t, []string{forkID}, historyIDs(s))

	require.NoError(t, s.DeleteConversation("never-existed"))
}

func TestClear(t *testing.T) {
	kv := kvstore.NewMemoryStore()
	s := newTestStore(t, kv)
	require.NoError(t, s.SaveConversation("a", msgs("x"), ""))

	require.NoError(t, s.Clear())
	require.Equal(t, 0, s.Len())
	require.Empty(t, s.GetHistory())
	_, ok, err := kv.Get(ChatsKey)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestClearWaitsForFlushWithoutAutoFlush(t *testing.T) {
	kv := kvstore.NewMemoryStore()
	s := newTestStore(t, kv, WithAutoFlush(false))
	require.NoError(t, s.SaveConversation("a", msgs("x"), ""))
	require.NoError(t, s.Flush())

	require.NoError(t, s.Clear())
	require.Equal(t, 0, s.Len())
	require.True(t, newTestStore(t, kv).Has("a"))

	require.NoError(t, s.Flush())
	reopened := newTestStore(t, kv)
	require.Equal(t, 0, reopened.Len())
	require.Empty(t, reopened.GetHistory())
}

func TestGenerateIDUsesShortUUIDByDefault(t *testing.T) {
	s, err := Open(kvstore.NewMemoryStore())
	require.NoError(t, err)
	a, b := s.GenerateID(), s.GenerateID()
	require.NotEmpty(t, a)
	require.NotEqual(t, a, b)
}

func TestOpenRejectsNilKV(t *testing.T) {
	_, err := Open(nil)
	require.ErrorIs(t, err, ErrNilKV)
}
