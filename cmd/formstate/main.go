package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"syscall"

	"github.com/goliatone/go-formstate/internal/cli"
)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	log := cli.NewLogger(os.Stderr, false)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := cli.NewRootCommand(nil)
	root.Version = fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH)

	if err := root.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, cli.ErrInvalid) {
			log.Error().Err(err).Msg("formstate")
		}
		stop()
		os.Exit(1)
	}
}
