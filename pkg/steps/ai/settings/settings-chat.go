package settings

import (
	"github.com/huandu/go-clone"
)

const (
	DefaultTemperature       = 0.7
	DefaultMaxResponseTokens = 2048
)

type ChatSettings struct {
	Model             string  `yaml:"model"`
	Temperature       float64 `yaml:"temperature"`
	MaxResponseTokens int     `yaml:"max_response_tokens"`
	Stream            bool    `yaml:"stream"`
	// RequestsPerMinute limits outgoing completion requests, 0 means unlimited.
	RequestsPerMinute int `yaml:"requests_per_minute,omitempty"`
}

func NewChatSettings() *ChatSettings {
	return &ChatSettings{
		Temperature:       DefaultTemperature,
		MaxResponseTokens: DefaultMaxResponseTokens,
		Stream:            true,
	}
}

func (s *ChatSettings) Clone() *ChatSettings {
	return clone.Clone(s).(*ChatSettings)
}
