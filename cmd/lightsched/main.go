package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/lightsched/lightsched-go/internal/cmd"
)

var (
	// set during build
	commit = ""
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := cmd.NewRootCommand(commit).ExecuteContext(ctx)
	if err != nil {
		stop()
		os.Exit(1)
	}
}
