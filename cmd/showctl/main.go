// showctl is the operator's command-line tool for a StageLink installation.
//
// It publishes commands and audio levels to the coordinator over MQTT,
// encodes commands into the radio packet for inspection, prints the
// region groups and show catalogue, reads the dispatch journal and
// maintains its schema.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// Version information - set at build time via ldflags
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
