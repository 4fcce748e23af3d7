package cmds

import (
	"fmt"
	"io"

	"github.com/go-go-golems/forkchat/pkg/conversation"
	"github.com/go-go-golems/forkchat/pkg/inference/engine"
	"github.com/go-go-golems/forkchat/pkg/render"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// printConversation prints a conversation with assistant replies rendered as markdown.
func printConversation(w io.Writer, md *render.Markdown, store conversationReader, id string) error {
	c, ok := store.GetConversation(id)
	if !ok {
		_, err := fmt.Fprintf(w, "conversation %s is empty\n", id)
		return err
	}
	entry, _ := store.GetEntry(id)
	if _, err := fmt.Fprintf(w, "# %s (%s)\n", formatTitle(entry.Title), id); err != nil {
		return err
	}
	if c.IsFork() {
		parent := c.ParentChatID
		if pe, ok := store.GetEntry(c.ParentChatID); ok {
			parent = fmt.Sprintf("%s (%s)", formatTitle(pe.Title), pe.ID)
		}
		if _, err := fmt.Fprintf(w, "forked from %s\n", parent); err != nil {
			return err
		}
	}

	for i, m := range c.Messages {
		content := m.Content
		if m.Role == conversation.RoleAssistant {
			content = md.Render(content)
		}
		if _, err := fmt.Fprintf(w, "\n[%d] %s:\n%s", i, m.Role, content); err != nil {
			return err
		}
		if len(content) == 0 || content[len(content)-1] != '\n' {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
	}
	return nil
}

type conversationReader interface {
	GetConversation(id string) (conversation.Conversation, bool)
	GetEntry(id string) (conversation.HistoryEntry, bool)
}

func formatTitle(title string) string {
	if title == "" {
		return conversation.DefaultTitle
	}
	return title
}

func NewShowCommand() *cobra.Command {
	var plain, tokens bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := OpenApp()
			if err != nil {
				return err
			}
			defer func() {
				_ = app.Close()
			}()

			id, err := app.resolveID(args[0])
			if err != nil {
				return err
			}

			md := render.NewMarkdownForStdout()
			if plain {
				md = render.NewMarkdown(false, 0)
			}
			w := cmd.OutOrStdout()
			if err := printConversation(w, md, app.Store, id); err != nil {
				return err
			}

			if tokens {
				model := app.Settings.Chat.Model
				n, err := engine.CountMessageTokens(model, app.Store.GetMessages(id))
				if err != nil {
					log.Warn().Err(err).Str("model", model).Msg("could not count tokens")
					return nil
				}
				_, err = fmt.Fprintf(w, "\n%d tokens (%s)\n", n, model)
				return err
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&plain, "plain", false, "Do not render markdown")
	cmd.Flags().BoolVar(&tokens, "tokens", false, "Print the approximate token count of the conversation")

	return cmd
}
