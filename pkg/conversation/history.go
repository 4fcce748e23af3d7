package conversation

import (
	"strings"
	"unicode"
)

const (
	DefaultTitle       = "New Chat"
	DefaultTitleLength = 30
	ForkTitlePrefix    = "Fork of: "
	ForkFallbackTitle  = "Chat"
	TitleEllipsis      = "..."
)

// HistoryEntry is the display metadata kept for every stored conversation. The json
// field names match the persisted chatHistory layout.
type HistoryEntry struct {
	ID           string `json:"id" yaml:"id"`
	Title        string `json:"title" yaml:"title"`
	LastMessage  string `json:"lastMessage" yaml:"lastMessage"`
	Timestamp    int64  `json:"timestamp" yaml:"timestamp"`
	ParentChatID string `json:"parentChatId,omitempty" yaml:"parentChatId,omitempty"`
}

func (h HistoryEntry) IsFork() bool {
	return h.ParentChatID != ""
}

// Title derives a one-line preview from the first user message. Whitespace runs are
// collapsed, the result is cut to maxLen runes and TitleEllipsis is appended only when
// something was cut. An empty preview yields DefaultTitle.
func Title(messages Messages, maxLen int) string {
	content, ok := messages.FirstUserContent()
	if !ok {
		return DefaultTitle
	}
	return TruncateTitle(content, maxLen)
}

func TruncateTitle(s string, maxLen int) string {
	s = strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
	if s == "" {
		return DefaultTitle
	}
	if maxLen <= 0 {
		maxLen = DefaultTitleLength
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return strings.TrimRightFunc(string(runes[:maxLen]), unicode.IsSpace) + TitleEllipsis
}

// ForkTitle names a fork after its source's current title.
func ForkTitle(sourceTitle string) string {
	if sourceTitle == "" {
		sourceTitle = ForkFallbackTitle
	}
	return ForkTitlePrefix + sourceTitle
}
