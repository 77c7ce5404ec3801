// Package main runs the plan catalog administration CLI.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/louisbranch/planmatch/internal/cmd/planctl"
	"github.com/louisbranch/planmatch/internal/platform/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := planctl.Run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		config.Exitf("planctl: %v", err)
	}
}
