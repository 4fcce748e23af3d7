package render

import (
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog/log"
)

const DefaultWordWrap = 80

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Markdown renders assistant replies for the terminal. A disabled renderer returns the
// text unchanged.
type Markdown struct {
	renderer *glamour.TermRenderer
}

func NewMarkdown(enabled bool, wordWrap int) *Markdown {
	if !enabled {
		return &Markdown{}
	}
	if wordWrap <= 0 {
		wordWrap = DefaultWordWrap
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(wordWrap),
	)
	if err != nil {
		log.Warn().Err(err).Msg("could not create markdown renderer, printing plain text")
		return &Markdown{}
	}
	return &Markdown{renderer: r}
}

// NewMarkdownForStdout enables rendering only when stdout is a terminal.
func NewMarkdownForStdout() *Markdown {
	return NewMarkdown(IsTerminal(os.Stdout), DefaultWordWrap)
}

func (m *Markdown) Enabled() bool {
	return m != nil && m.renderer != nil
}

func (m *Markdown) Render(text string) string {
	if !m.Enabled() {
		return text
	}
	out, err := m.renderer.Render(text)
	if err != nil {
		log.Debug().Err(err).Msg("could not render markdown")
		return text
	}
	return strings.TrimRight(out, "\n") + "\n"
}
