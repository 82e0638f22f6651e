package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Version and Commit are set via LDFLAGS at build time.
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

var (
	verbose    bool
	noColor    bool
	taskRoot   string
	configFile string
)

// NewRootCmd assembles the benchkeep CLI, grounded on the teacher's
// internal/cli/root.go (same PersistentPreRun slog wiring, same
// SilenceUsage/SilenceErrors shape).
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "benchkeep",
		Short: "Offline contest-task build/run/judge harness",
		Long:  "benchkeep builds contest solutions, runs them against generated and static inputs in a resource-limited sandbox, judges their output, and aggregates per-test verdicts into a score.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: level,
			})))
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable ANSI colors in text output")
	root.PersistentFlags().StringVar(&taskRoot, "task-root", ".", "path to the task directory (containing task.yaml)")
	root.PersistentFlags().StringVar(&configFile, "config", ".benchkeep.yml", "path to harness settings file, relative to task-root")

	root.AddCommand(newRunCmd())
	root.AddCommand(newGenCmd())
	root.AddCommand(newCleanCmd())
	root.AddCommand(newCacheCmd())
	root.AddCommand(newWatchCmd())
	root.AddCommand(newVersionCmd())

	return root
}
