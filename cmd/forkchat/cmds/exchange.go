package cmds

import (
	"context"
	"io"
	"os"
	"os/signal"

	"github.com/go-go-golems/forkchat/pkg/events"
	"github.com/go-go-golems/forkchat/pkg/inference"
	"github.com/go-go-golems/forkchat/pkg/inference/session"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

// newPrintingRouter returns a router that prints streamed replies to w, or dumps the raw
// events as JSON when rawEvents is set.
func newPrintingRouter(w io.Writer, rawEvents bool) (*events.EventRouter, error) {
	options := []events.EventRouterOption{}
	if viper.GetBool("verbose") {
		options = append(options, events.WithVerbose(true))
	}
	router, err := events.NewEventRouter(options...)
	if err != nil {
		return nil, err
	}
	if rawEvents {
		router.AddHandler("raw-events", events.DefaultTopic, router.DumpRawEvents(w))
	} else {
		router.AddHandler("printer", events.DefaultTopic, events.StepPrinterFunc("", w))
	}
	return router, nil
}

// sessionSinks publishes to the router and mirrors every event to the debug log.
func sessionSinks(router *events.EventRouter) []inference.EventSink {
	return []inference.EventSink{
		inference.NewWatermillSink(router.Publisher, events.DefaultTopic),
		inference.NewLogSink(log.Logger),
	}
}

// runWithRouter runs fn while the router delivers events. The router outlives fn so that
// the events of an interrupted exchange are still printed.
func runWithRouter(ctx context.Context, router *events.EventRouter, fn func(ctx context.Context) error) error {
	eg := errgroup.Group{}
	routerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	eg.Go(func() error {
		defer cancel()
		return router.Run(routerCtx)
	})

	eg.Go(func() error {
		defer cancel()
		<-router.Running()
		return fn(ctx)
	})

	err := eg.Wait()
	if closeErr := router.Close(); closeErr != nil {
		log.Debug().Err(closeErr).Msg("could not close event router")
	}
	return err
}

// sendInterruptible sends one message; Ctrl-C abandons the reply instead of exiting.
func sendInterruptible(ctx context.Context, s *session.Session, text string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	_, err := s.Send(ctx, text)
	return err
}
