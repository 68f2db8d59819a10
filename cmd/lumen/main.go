// Lumen - adaptive screen brightness daemon.
//
// Lumen watches what is on screen and how bright the room is, sets the
// backlight accordingly, and learns from every manual adjustment so the
// same conditions produce the preferred brightness next time.
//
// Usage:
//
//	lumen [run] [-c config.yaml]
//	lumen preferences [-o table|json] [--overrides N]
//	lumen migrate status|up|down
//	lumen version
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
