package settings

import (
	"os"
	"path/filepath"

	"github.com/go-go-golems/forkchat/pkg/conversation"
	"github.com/huandu/go-clone"
)

type StoreSettings struct {
	Backend     string `yaml:"backend"`
	Path        string `yaml:"path,omitempty"`
	TitleLength int    `yaml:"title_length"`
	MoveToFront bool   `yaml:"move_to_front"`
	Watch       bool   `yaml:"watch"`
}

func NewStoreSettings() *StoreSettings {
	return &StoreSettings{
		Backend:     "sqlite",
		Path:        DefaultStorePath(),
		TitleLength: conversation.DefaultTitleLength,
		Watch:       true,
	}
}

// DefaultStorePath is ~/.forkchat/forkchat.db, or a relative path when the home
// directory is unknown.
func DefaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(".forkchat", "forkchat.db")
	}
	return filepath.Join(home, ".forkchat", "forkchat.db")
}

func (s *StoreSettings) Clone() *StoreSettings {
	return clone.Clone(s).(*StoreSettings)
}
