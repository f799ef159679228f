package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	unreferrors "unref/internal/errors"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitCode(err))
	}
}

// exitCode reports err on stderr unless it only carries a status.
func exitCode(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	printError(os.Stderr, err)
	return exitFailure
}

func printError(w io.Writer, err error) {
	fmt.Fprintf(w, "Error: %v\n", err)
	var ue *unreferrors.UnrefError
	if !errors.As(err, &ue) {
		return
	}
	for _, fix := range ue.SuggestedFixes {
		fmt.Fprintf(w, "  hint: %s\n", fix.Hint())
	}
}
