// Package main starts the compare HTTP service process lifecycle.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	comparecmd "github.com/louisbranch/planmatch/internal/cmd/compare"
	"github.com/louisbranch/planmatch/internal/platform/config"
)

func main() {
	cfg, err := comparecmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := comparecmd.Run(ctx, cfg); err != nil {
		config.Exitf("failed to serve: %v", err)
	}
}
