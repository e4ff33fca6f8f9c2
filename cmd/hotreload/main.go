package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	os.Exit(run(os.Args))
}

func run(args []string) int {
	app := newApp(os.Stdout, os.Stderr)
	err := app.Run(args)
	if err == nil {
		return 0
	}

	var exitErr cli.ExitCoder
	if errors.As(err, &exitErr) {
		if message := exitErr.Error(); message != "" {
			fmt.Fprintln(os.Stderr, message)
		}
		return exitErr.ExitCode()
	}
	fmt.Fprintln(os.Stderr, err)
	return exitUsage
}
