// Command benchkeep is an offline contest-task test harness: it builds
// every candidate solution, generates and validates test inputs, runs each
// solution under a resource-limited sandbox, judges the output, and
// reports whether every solution scores what its author predicted.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/taskforge/benchkeep/internal/cli"
)

func main() {
	os.Exit(run())
}

// run maps cli.NewRootCmd().Execute()'s error into the three exit codes
// spec.md §6 defines: 0 success, 1 failure/expectation mismatch, 2 lock
// contention.
func run() int {
	if err := cli.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		var lockErr *cli.LockError
		if errors.As(err, &lockErr) {
			return 2
		}
		return 1
	}
	return 0
}
