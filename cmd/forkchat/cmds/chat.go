package cmds

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-go-golems/forkchat/pkg/conversation"
	"github.com/go-go-golems/forkchat/pkg/inference"
	"github.com/go-go-golems/forkchat/pkg/inference/engine"
	"github.com/go-go-golems/forkchat/pkg/inference/session"
	"github.com/go-go-golems/forkchat/pkg/render"
	"github.com/peterh/liner"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const replHelp = `Commands:
  /history          list conversations with their forks
  /tree             list conversations as a fork tree
  /show             print the current conversation
  /fork <index>     fork the current conversation through message <index> and switch to it
  /switch <id>      switch to another conversation
  /new              start a new conversation
  /delete [id]      delete a conversation (default: the current one)
  /help             show this help
  /quit             leave
Anything else is sent as a message. Ctrl-C while a reply streams discards the reply.
`

var errQuit = errors.New("quit")

// repl holds the state of an interactive chat: the current conversation and the session
// that streams into it.
type repl struct {
	app     *App
	engine  engine.Engine
	sinks   []inference.EventSink
	out     io.Writer
	md      *render.Markdown
	model   string
	current string
	session *session.Session
}

func newRepl(app *App, eng engine.Engine, sinks []inference.EventSink, out io.Writer, md *render.Markdown) *repl {
	return &repl{
		app:    app,
		engine: eng,
		sinks:  sinks,
		out:    out,
		md:     md,
		model:  app.Settings.Chat.Model,
	}
}

func (r *repl) switchTo(id string) error {
	s, err := session.NewSession(id, r.app.Store, r.engine,
		session.WithSink(r.sinks...),
		session.WithModel(r.model),
	)
	if err != nil {
		return err
	}
	r.current = id
	r.session = s
	log.Debug().Str("conversation_id", id).Msg("switched conversation")
	return nil
}

func (r *repl) prompt() string {
	title := conversation.DefaultTitle
	if e, ok := r.app.Store.GetEntry(r.current); ok {
		title = formatTitle(e.Title)
	}
	return fmt.Sprintf("%s> ", conversation.TruncateTitle(title, 20))
}

func parseSlashCommand(line string) (string, []string) {
	fields := strings.Fields(strings.TrimPrefix(strings.TrimSpace(line), "/"))
	if len(fields) == 0 {
		return "", nil
	}
	return strings.ToLower(fields[0]), fields[1:]
}

// handleLine processes one line of input. It returns errQuit when the user leaves.
func (r *repl) handleLine(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	if !strings.HasPrefix(line, "/") {
		return sendInterruptible(ctx, r.session, line)
	}

	name, args := parseSlashCommand(line)
	switch name {
	case "quit", "exit", "q":
		return errQuit

	case "help", "?":
		_, err := fmt.Fprint(r.out, replHelp)
		return err

	case "history":
		return printGroupedHistory(r.out, r.app.Store.GetHistory(), false)

	case "tree":
		return printHistoryTree(r.out, r.app.Store.GetHistory())

	case "show":
		return printConversation(r.out, r.md, r.app.Store, r.current)

	case "new":
		return r.switchTo(r.app.Store.GenerateID())

	case "switch":
		if len(args) != 1 {
			return errors.New("usage: /switch <id>")
		}
		id, err := r.app.resolveID(args[0])
		if err != nil {
			return err
		}
		return r.switchTo(id)

	case "fork":
		if len(args) != 1 {
			return errors.New("usage: /fork <index>")
		}
		idx, err := strconv.Atoi(args[0])
		if err != nil {
			return errors.Wrapf(err, "invalid message index %q", args[0])
		}
		newID, err := r.app.Store.Fork(r.current, idx)
		if newID == "" {
			return err
		}
		if err != nil {
			log.Warn().Err(err).Msg("fork was not saved")
		}
		if _, err := fmt.Fprintf(r.out, "forked into %s\n", newID); err != nil {
			return err
		}
		return r.switchTo(newID)

	case "delete":
		id := r.current
		if len(args) == 1 {
			var err error
			id, err = r.app.resolveID(args[0])
			if err != nil {
				return err
			}
		}
		if err := r.app.Store.DeleteConversation(id); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(r.out, "deleted %s\n", id); err != nil {
			return err
		}
		if id == r.current {
			return r.switchTo(r.app.Store.GenerateID())
		}
		return nil

	default:
		return errors.Errorf("unknown command /%s, try /help", name)
	}
}

func (r *repl) historyFile() string {
	return filepath.Join(filepath.Dir(r.app.Settings.Store.Path), "repl_history")
}

func (r *repl) run(ctx context.Context) error {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	defer func() {
		if f, err := os.OpenFile(r.historyFile(), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600); err == nil {
			_, _ = line.WriteHistory(f)
			_ = f.Close()
		}
		_ = line.Close()
	}()
	if f, err := os.Open(r.historyFile()); err == nil {
		_, _ = line.ReadHistory(f)
		_ = f.Close()
	}

	_, _ = fmt.Fprintln(r.out, "type /help for commands")
	for {
		input, err := line.Prompt(r.prompt())
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if strings.TrimSpace(input) != "" {
			line.AppendHistory(input)
		}

		err = r.handleLine(ctx, input)
		switch {
		case errors.Is(err, errQuit):
			return nil
		case errors.Is(err, session.ErrInterrupted):
			// the printer already reported the discarded reply
		case err != nil:
			_, _ = fmt.Fprintf(r.out, "error: %v\n", err)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func NewChatCommand() *cobra.Command {
	var rawEvents bool

	cmd := &cobra.Command{
		Use:   "chat [id]",
		Short: "Chat interactively, optionally continuing an existing conversation",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := OpenApp()
			if err != nil {
				return err
			}
			defer func() {
				_ = app.Close()
			}()

			eng, err := app.NewEngine()
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			router, err := newPrintingRouter(w, rawEvents)
			if err != nil {
				return err
			}

			r := newRepl(app, eng, sessionSinks(router), w, render.NewMarkdownForStdout())
			id := app.Store.GenerateID()
			if len(args) == 1 {
				id, err = app.resolveID(args[0])
				if err != nil {
					return err
				}
			}
			if err := r.switchTo(id); err != nil {
				return err
			}

			return runWithRouter(cmd.Context(), router, func(ctx context.Context) error {
				ctx, cancel := context.WithCancel(ctx)
				defer cancel()

				eg, ctx := errgroup.WithContext(ctx)
				eg.Go(func() error {
					return app.WatchStore(ctx, func() {
						log.Debug().Msg("chat store changed on disk, reloaded")
					})
				})
				eg.Go(func() error {
					defer cancel()
					return r.run(ctx)
				})
				return eg.Wait()
			})
		},
	}

	cmd.Flags().BoolVar(&rawEvents, "raw-events", false, "Print the streamed events as JSON")

	return cmd
}
