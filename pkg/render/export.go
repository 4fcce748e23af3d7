package render

import (
	"io"
	"text/template"
	"time"

	"github.com/Masterminds/sprig"
	"github.com/go-go-golems/forkchat/pkg/conversation"
	"github.com/pkg/errors"
)

const exportTemplate = `# {{ .Title }}

{{ if .ParentChatID -}}
Forked from: {{ .ParentTitle | default .ParentChatID }} ({{ .ParentChatID }})
{{ end -}}
Conversation: {{ .ID }}
{{ if .Updated }}Updated: {{ .Updated }}
{{ end }}
{{- range .Messages }}
---

**{{ .Role | toString | title }}**:

{{ .Content | trim }}
{{ end -}}
`

// ExportData is what the markdown export template sees.
type ExportData struct {
	ID           string
	Title        string
	ParentChatID string
	ParentTitle  string
	Updated      string
	Messages     conversation.Messages
}

// NewExportData combines a conversation with its history entry. parentTitle may be empty
// when the parent no longer exists.
func NewExportData(c conversation.Conversation, entry conversation.HistoryEntry, parentTitle string) ExportData {
	title := entry.Title
	if title == "" {
		title = conversation.DefaultTitle
	}
	updated := ""
	if entry.Timestamp > 0 {
		updated = time.UnixMilli(entry.Timestamp).UTC().Format(time.RFC3339)
	}
	return ExportData{
		ID:           c.ID,
		Title:        title,
		ParentChatID: c.ParentChatID,
		ParentTitle:  parentTitle,
		Updated:      updated,
		Messages:     c.Messages,
	}
}

var exportTmpl = template.Must(template.New("export").Funcs(sprig.TxtFuncMap()).Parse(exportTemplate))

// ExportMarkdown writes the conversation as a markdown document.
func ExportMarkdown(w io.Writer, data ExportData) error {
	if err := exportTmpl.Execute(w, data); err != nil {
		return errors.Wrapf(err, "could not export conversation %s", data.ID)
	}
	return nil
}
