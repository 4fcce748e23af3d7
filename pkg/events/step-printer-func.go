package events

import (
	"fmt"
	"io"
	"strings"

	"github.com/ThreeDotsLabs/watermill/message"
)

// StepPrinterFunc prints fragments as they arrive. Interrupted and failed inferences are
// marked inline, since their text is not kept.
func StepPrinterFunc(name string, w io.Writer) func(msg *message.Message) error {
	isFirst := true

	return func(msg *message.Message) error {
		defer msg.Ack()

		e, err := NewEventFromJson(msg.Payload)
		if err != nil {
			return err
		}

		switch p_ := e.(type) {
		case *EventPartialCompletionStart:
			isFirst = true

		case *EventPartialCompletion:
			if isFirst && name != "" {
				isFirst = false
				_, err = fmt.Fprintf(w, "\n%s: \n", name)
				if err != nil {
					return err
				}
			}
			_, err = fmt.Fprintf(w, "%s", p_.Delta)
			if err != nil {
				return err
			}

		case *EventFinal:
			if !strings.HasSuffix(p_.Text, "\n") {
				_, err = fmt.Fprintf(w, "\n")
				if err != nil {
					return err
				}
			}

		case *EventInterrupt:
			_, err = fmt.Fprintf(w, "\n[interrupted, response discarded]\n")
			if err != nil {
				return err
			}

		case *EventError:
			_, err = fmt.Fprintf(w, "\n[error: %s]\n", p_.ErrorString)
			if err != nil {
				return err
			}
		}

		return nil
	}
}
