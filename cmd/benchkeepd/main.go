// Command benchkeepd exposes the same build/run/judge pipeline as
// benchkeep, but as a long-lived HTTP process — used by editor
// integrations that want a warm SQLite cache across many runs of the
// same task rather than paying open/close cost on every invocation.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/taskforge/benchkeep/internal/rund"
)

func main() {
	listen := flag.String("listen", "127.0.0.1:4117", "address to listen on")
	taskRoot := flag.String("task-root", ".", "default task root for a POST /run with no task_root field")
	flag.Parse()

	srv := rund.New(rund.Config{Listen: *listen, TaskRoot: *taskRoot})
	addr, err := srv.Start()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	slog.Info("benchkeepd listening", "addr", addr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	if err := srv.Stop(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
