package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/taskforge/benchkeep/internal/pipelinelock"
)

// newCleanCmd removes every generated artifact a run can produce (build/,
// tests/_inputs, per-solution tests/<label>, the cache file, testing_log.json)
// so the next run starts from a pristine task directory. Grounded on the
// teacher's internal/cli/unlock.go for the "refuse while a lock is held"
// guard, generalized from lock-removal-only to a full artifact sweep.
func newCleanCmd() *cobra.Command {
	var (
		all   bool
		cache bool
	)

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove generated build/test/cache artifacts from the task directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClean(cmd, all, cache)
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "also remove the cache file and testing_log.json")
	cmd.Flags().BoolVar(&cache, "cache", false, "remove only the cache file")

	return cmd
}

func runClean(cmd *cobra.Command, all, cacheOnly bool) error {
	taskRootAbs, _, _, settings, err := loadHarness(taskRoot)
	if err != nil {
		return err
	}

	if _, err := pipelinelock.ReadLock(taskRootAbs); err == nil {
		return fmt.Errorf("task root is locked by a running pipeline; refusing to clean (run with the lock released, or see `benchkeep cache`)")
	} else if !os.IsNotExist(err) {
		return err
	}

	cachePath := settings.CachePath
	if !filepath.IsAbs(cachePath) {
		cachePath = filepath.Join(taskRootAbs, cachePath)
	}

	if cacheOnly {
		return removeIfExists(cmd, cachePath)
	}

	targets := []string{
		filepath.Join(taskRootAbs, "build"),
		filepath.Join(taskRootAbs, "tests", "_inputs"),
	}
	entries, _ := os.ReadDir(filepath.Join(taskRootAbs, "tests"))
	for _, e := range entries {
		if e.IsDir() && e.Name() != "_inputs" {
			targets = append(targets, filepath.Join(taskRootAbs, "tests", e.Name()))
		}
	}
	if all {
		targets = append(targets, cachePath, filepath.Join(taskRootAbs, "testing_log.json"))
	}

	for _, t := range targets {
		if err := removeIfExists(cmd, t); err != nil {
			return err
		}
	}
	return nil
}

func removeIfExists(cmd *cobra.Command, path string) error {
	if err := os.RemoveAll(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", path)
	return nil
}
