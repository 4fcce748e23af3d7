package cmds

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-go-golems/forkchat/pkg/inference/session"
	"github.com/spf13/cobra"
)

const newConversationArg = "new"

func NewSendCommand() *cobra.Command {
	var rawEvents bool

	cmd := &cobra.Command{
		Use:   "send <id|new> <message...>",
		Short: "Send one message and stream the reply",
		Long: "Send one message to a conversation and stream the reply to stdout. " +
			"Use \"new\" as id to start a new conversation. The reply is only saved " +
			"once it has been received completely.",
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := OpenApp()
			if err != nil {
				return err
			}
			defer func() {
				_ = app.Close()
			}()

			id := app.Store.GenerateID()
			if args[0] != newConversationArg {
				id, err = app.resolveID(args[0])
				if err != nil {
					return err
				}
			}

			eng, err := app.NewEngine()
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			router, err := newPrintingRouter(w, rawEvents)
			if err != nil {
				return err
			}

			s, err := session.NewSession(id, app.Store, eng,
				session.WithSink(sessionSinks(router)...),
				session.WithModel(app.Settings.Chat.Model),
			)
			if err != nil {
				return err
			}

			text := strings.Join(args[1:], " ")
			err = runWithRouter(cmd.Context(), router, func(ctx context.Context) error {
				return sendInterruptible(ctx, s, text)
			})
			if err != nil {
				return err
			}

			if args[0] == newConversationArg {
				_, err = fmt.Fprintf(cmd.ErrOrStderr(), "conversation %s\n", id)
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&rawEvents, "raw-events", false, "Print the streamed events as JSON")

	return cmd
}
