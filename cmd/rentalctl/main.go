// Command rentalctl is a terminal front end for the rental backend.
//
//	rentalctl [command] [flags]
//
// It reads RENTAL_API_URL, RENTAL_API_TOKEN and RENTAL_API_TIMEOUT (and
// the late fee policy variables for locally computed fees) from the
// environment or a .env file.  Failures are printed as one line on
// stderr and exit with status 1.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		usage(stdout)
		return 0
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n", args[0])
		usage(stderr)
		return 2
	}
	app := &app{out: stdout}
	if err := cmd.run(ctx, app, args[1:]); err != nil {
		fmt.Fprintln(stderr, describe(err))
		return 1
	}
	return 0
}
