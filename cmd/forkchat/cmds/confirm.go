package cmds

import (
	"fmt"
	"io"
	"os"

	"github.com/go-go-golems/forkchat/pkg/render"
	"github.com/pkg/errors"
	"github.com/tcnksm/go-input"
)

// confirm asks a yes/no question on the terminal. Without a terminal it refuses, so
// scripts have to pass --yes.
func confirm(reader io.Reader, writer io.Writer, query string) (bool, error) {
	ui := &input.UI{
		Writer: writer,
		Reader: reader,
	}

	answer, err := ui.Ask(query+" [y/n]", &input.Options{
		Default:  "n",
		Required: true,
		Loop:     true,
		ValidateFunc: func(answer string) error {
			switch answer {
			case "y", "Y", "n", "N":
				return nil
			default:
				return fmt.Errorf("please enter 'y' or 'n'")
			}
		},
	})
	if err != nil {
		return false, err
	}

	return answer == "y" || answer == "Y", nil
}

func confirmOnTerminal(query string) (bool, error) {
	if !render.IsTerminal(os.Stdin) {
		return false, errors.New("not a terminal, pass --yes to confirm")
	}
	return confirm(os.Stdin, os.Stderr, query)
}
