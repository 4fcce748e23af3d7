package cmds

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-go-golems/forkchat/pkg/conversation"
	"github.com/spf13/cobra"
)

var timeLocation = time.Local

const previewLength = 40

func formatTimestamp(ts int64) string {
	if ts <= 0 {
		return ""
	}
	return time.UnixMilli(ts).In(timeLocation).Format("2006-01-02 15:04")
}

func formatEntry(e conversation.HistoryEntry) string {
	title := e.Title
	if title == "" {
		title = conversation.DefaultTitle
	}
	ret := fmt.Sprintf("%s  %s", e.ID, title)
	if ts := formatTimestamp(e.Timestamp); ts != "" {
		ret += "  [" + ts + "]"
	}
	return ret
}

func formatPreview(e conversation.HistoryEntry) string {
	if e.LastMessage == "" {
		return ""
	}
	return conversation.TruncateTitle(e.LastMessage, previewLength)
}

// printGroupedHistory prints one block per root conversation with its direct forks
// indented below it. Forks of forks get their own block headed by the fork they came
// from, and forks whose parent is gone are listed under the missing id.
func printGroupedHistory(w io.Writer, entries []conversation.HistoryEntry, withPreview bool) error {
	byID := make(map[string]conversation.HistoryEntry, len(entries))
	for _, e := range entries {
		if _, ok := byID[e.ID]; !ok {
			byID[e.ID] = e
		}
	}

	forest := conversation.GroupHistory(entries)
	for _, g := range forest.Groups {
		var line string
		if g.HasMain() {
			line = formatEntry(*g.Main)
		} else if e, ok := byID[g.RootID]; ok {
			line = fmt.Sprintf("%s  (fork of %s)", formatEntry(e), e.ParentChatID)
		} else {
			line = fmt.Sprintf("%s  (deleted)", g.RootID)
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
		if withPreview && g.HasMain() {
			if p := formatPreview(*g.Main); p != "" {
				if _, err := fmt.Fprintf(w, "    %s\n", p); err != nil {
					return err
				}
			}
		}
		for _, f := range g.Forks {
			if _, err := fmt.Fprintf(w, "  └─ %s\n", formatEntry(f)); err != nil {
				return err
			}
			if withPreview {
				if p := formatPreview(f); p != "" {
					if _, err := fmt.Fprintf(w, "       %s\n", p); err != nil {
						return err
					}
				}
			}
		}
	}
	return nil
}

// printHistoryTree prints the full fork tree, forks of forks included.
func printHistoryTree(w io.Writer, entries []conversation.HistoryEntry) error {
	var err error
	conversation.Walk(conversation.BuildTree(entries), func(n *conversation.TreeNode, depth int) {
		if err != nil {
			return
		}
		prefix := ""
		if depth > 0 {
			prefix = strings.Repeat("   ", depth-1) + "└─ "
		}
		line := prefix + formatEntry(n.Entry)
		if n.Orphaned {
			line += "  (parent " + n.Entry.ParentChatID + " deleted)"
		}
		_, err = fmt.Fprintln(w, line)
	})
	return err
}

func NewHistoryCommand() *cobra.Command {
	var tree, preview bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List conversations, newest first, with forks under their parent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := OpenApp()
			if err != nil {
				return err
			}
			defer func() {
				_ = app.Close()
			}()

			entries := app.Store.GetHistory()
			w := cmd.OutOrStdout()
			if len(entries) == 0 {
				_, err = fmt.Fprintln(w, "no conversations yet")
				return err
			}
			if tree {
				return printHistoryTree(w, entries)
			}
			return printGroupedHistory(w, entries, preview)
		},
	}

	cmd.Flags().BoolVar(&tree, "tree", false, "Show forks of forks as a nested tree")
	cmd.Flags().BoolVar(&preview, "preview", false, "Show the last message of every conversation")

	return cmd
}
