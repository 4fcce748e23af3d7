package cmds

import (
	"fmt"
	"os"
	"strconv"

	"github.com/go-go-golems/forkchat/pkg/render"
	"github.com/go-go-golems/forkchat/pkg/steps/ai/settings"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func NewForkCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fork <id> <index>",
		Short: "Copy messages 0 through <index> of a conversation into a new conversation",
		Long: `Copy messages 0 through <index> of a conversation into a new conversation.
An index past the end copies everything, a negative index creates an empty fork.
Flags go before <id>, everything after it is read as arguments.`,
		Args: cobra.ExactArgs(2),
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
			idx, err := strconv.Atoi(args[1])
			if err != nil {
				return errors.Wrapf(err, "invalid message index %q", args[1])
			}

			newID, err := app.Store.Fork(id, idx)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), newID)
			return err
		},
	}

	// a negative index such as -1 must not be parsed as a shorthand flag
	cmd.Flags().SetInterspersed(false)

	return cmd
}

func NewDeleteCommand() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a conversation. Its forks are kept.",
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

			if !yes {
				entry, _ := app.Store.GetEntry(id)
				ok, err := confirmOnTerminal(fmt.Sprintf("Delete %q (%s)?", formatTitle(entry.Title), id))
				if err != nil {
					return err
				}
				if !ok {
					return nil
				}
			}

			return app.Store.DeleteConversation(id)
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")

	return cmd
}

func NewClearCommand() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all conversations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := OpenApp()
			if err != nil {
				return err
			}
			defer func() {
				_ = app.Close()
			}()

			if !yes {
				ok, err := confirmOnTerminal(fmt.Sprintf("Delete all %d conversations?", app.Store.Len()))
				if err != nil {
					return err
				}
				if !ok {
					return nil
				}
			}

			return app.Store.Clear()
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")

	return cmd
}

func NewExportCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Export a conversation as markdown",
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
			c, _ := app.Store.GetConversation(id)
			entry, _ := app.Store.GetEntry(id)
			parentTitle := ""
			if pe, ok := app.Store.GetEntry(c.ParentChatID); ok && c.IsFork() {
				parentTitle = pe.Title
			}
			data := render.NewExportData(c, entry, parentTitle)

			if output == "" || output == "-" {
				return render.ExportMarkdown(cmd.OutOrStdout(), data)
			}

			f, err := os.Create(output)
			if err != nil {
				return errors.Wrapf(err, "could not create %s", output)
			}
			if err := render.ExportMarkdown(f, data); err != nil {
				_ = f.Close()
				return err
			}
			return f.Close()
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default: stdout)")

	return cmd
}

func NewReconcileCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Repair the history index so that it matches the stored conversations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := OpenApp()
			if err != nil {
				return err
			}
			defer func() {
				_ = app.Close()
			}()

			res, err := app.Store.Reconcile()
			if err != nil {
				return err
			}
			log.Debug().
				Strs("added", res.Added).
				Strs("removed", res.Removed).
				Strs("duplicates", res.Duplicates).
				Msg("reconciled history")

			w := cmd.OutOrStdout()
			if !res.Changed() {
				_, err = fmt.Fprintln(w, "history is consistent")
				return err
			}
			_, err = fmt.Fprintf(w, "added %d, removed %d, dropped %d duplicate entries\n",
				len(res.Added), len(res.Removed), len(res.Duplicates))
			return err
		},
	}
}

func NewConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration, API key redacted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := settings.FromViper(viper.GetViper())
			if err != nil {
				return err
			}
			b, err := s.ToYAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(b)
			return err
		},
	}
}
