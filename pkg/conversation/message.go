package conversation

import (
	"strings"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

func (r Role) IsValid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Message is a single chat turn. Messages are treated as immutable values: every
// accessor in this module hands out copies of message slices.
type Message struct {
	Role    Role   `json:"role" yaml:"role"`
	Content string `json:"content" yaml:"content"`
}

func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

func NewAssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

func (m Message) String() string {
	return string(m.Role) + ": " + m.Content
}

type Messages []Message

// Clone returns a copy that does not share the backing array. A nil receiver yields an
// empty, non-nil slice.
func (ms Messages) Clone() Messages {
	ret := make(Messages, len(ms))
	copy(ret, ms)
	return ret
}

// Prefix returns a copy of the messages [0..idx] inclusive. Indices past the end copy
// everything, negative indices give an empty slice.
func (ms Messages) Prefix(idx int) Messages {
	if idx < 0 {
		return Messages{}
	}
	if idx >= len(ms) {
		return ms.Clone()
	}
	return ms[:idx+1].Clone()
}

// FirstUserContent returns the content of the first user message, if any.
func (ms Messages) FirstUserContent() (string, bool) {
	for _, m := range ms {
		if m.Role == RoleUser {
			return m.Content, true
		}
	}
	return "", false
}

// LastContent returns the content of the final message, or the empty string.
func (ms Messages) LastContent() string {
	if len(ms) == 0 {
		return ""
	}
	return ms[len(ms)-1].Content
}

func (ms Messages) ToString() string {
	var sb strings.Builder
	for _, m := range ms {
		sb.WriteString(m.String())
		sb.WriteString("\n")
	}
	return sb.String()
}

// Conversation is a stored message list plus its optional fork origin.
type Conversation struct {
	ID           string   `json:"id" yaml:"id"`
	Messages     Messages `json:"messages" yaml:"messages"`
	ParentChatID string   `json:"parentChatId,omitempty" yaml:"parentChatId,omitempty"`
}

func (c Conversation) IsFork() bool {
	return c.ParentChatID != ""
}
