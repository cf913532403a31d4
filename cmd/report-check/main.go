// Command report-check runs one dashboard fetch cycle against a collaborator
// API and exits non-zero if any section failed.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/okian/careconnect/internal/reportcheck"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := reportcheck.Run(ctx, os.Args, os.Stdout, os.Stderr); err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		stop()
		os.Exit(1)
	}
}
