package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/3leaps/goferry/internal/cmd"
)

// Injected at build time via -ldflags.
var (
	version   = "dev"
	commit    = "HEAD"
	buildDate = "unknown"
)

func main() {
	cmd.SetVersionInfo(version, commit, buildDate)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	code := cmd.Execute(ctx)
	stop()
	os.Exit(code)
}
