package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/turbolytics/registrar/pkg/reconciler"
)

const (
	choiceRun  = "1"
	choiceExit = "2"
)

func printMenu(out io.Writer) {
	fmt.Fprintln(out, "\nVRM Script Toolbox")
	fmt.Fprintln(out, "1) Create and link VRM Applications to Veracode App-profiles (1 to 1)")
	fmt.Fprintln(out, "2) Exit")
	fmt.Fprint(out, "Select an option: ")
}

// runMenu reads choices from in until the operator exits or input ends.
// A failed run is reported and the menu is shown again, unless the failure
// is a setup error.
func runMenu(ctx context.Context, in io.Reader, out io.Writer, logger *zap.Logger, run func(context.Context) error) error {
	scanner := bufio.NewScanner(in)

	for {
		printMenu(out)
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}

		switch strings.TrimSpace(scanner.Text()) {
		case choiceRun:
			err := run(ctx)
			if err == nil {
				continue
			}
			if errors.Is(err, reconciler.ErrSetup) {
				return err
			}
			logger.Error("Run failed", zap.Error(err))
			if ctx.Err() != nil {
				return ctx.Err()
			}
		case choiceExit:
			fmt.Fprintln(out, "Bye!")
			return nil
		default:
			fmt.Fprintln(out, "Invalid choice; please try again.")
		}
	}
}
