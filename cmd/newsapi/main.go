// Command newsapi is a command line client for newsapi.org.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/samvad-hq/samvad-newsapi/internal/cli"
	"github.com/samvad-hq/samvad-newsapi/internal/logger"
)

// version is set at build time via ldflags
var version = "dev"

func main() {
	cli.SetVersion(version)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := cli.NewRootCommand().ExecuteContext(ctx)
	stop()
	_ = logger.Close()
	if err != nil {
		os.Stderr.WriteString("Error: " + err.Error() + "\n")
		os.Exit(1)
	}
}
