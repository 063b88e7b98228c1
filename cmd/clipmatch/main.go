package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		if errors.Is(err, context.Canceled) {
			// Interrupted by the user; exit quietly with the
			// conventional SIGINT status.
			os.Exit(130)
		}
		fmt.Fprintf(os.Stderr, "clipmatch: %v\n", err)
		os.Exit(1)
	}
}
