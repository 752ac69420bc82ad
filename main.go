package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nvr-ai/debris/cmd"
	"github.com/nvr-ai/debris/common"
	"github.com/nvr-ai/debris/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	cfg := config.NewContext()
	err := cmd.RootCommand(cfg).ExecuteContext(ctx)
	stop()
	if cerr := cfg.Close(); cerr != nil {
		fmt.Fprintln(os.Stderr, "closing log:", cerr)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(common.ExitCode(err))
	}
}
