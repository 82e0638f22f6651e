package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

// newCacheCmd groups cache-inspection subcommands, grounded on the
// teacher's internal/cli/state_cmd.go (a small cobra subtree wrapping one
// persisted store with `show`/`clear` verbs).
func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the job-result cache",
	}
	cmd.AddCommand(newCacheClearCmd())
	cmd.AddCommand(newCacheInfoCmd())
	return cmd
}

func newCacheInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Print the resolved cache file path and its size",
		RunE: func(cmd *cobra.Command, args []string) error {
			taskRootAbs, _, _, settings, err := loadHarness(taskRoot)
			if err != nil {
				return err
			}
			cachePath := settings.CachePath
			if !filepath.IsAbs(cachePath) {
				cachePath = filepath.Join(taskRootAbs, cachePath)
			}
			info, err := os.Stat(cachePath)
			if os.IsNotExist(err) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s (not yet created)\n", cachePath)
				return nil
			}
			if err != nil {
				return fmt.Errorf("stat cache %s: %w", cachePath, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%d bytes)\n", cachePath, info.Size())
			return nil
		},
	}
}

func newCacheClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every cached job entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			taskRootAbs, _, _, settings, err := loadHarness(taskRoot)
			if err != nil {
				return err
			}
			cachePath := settings.CachePath
			if !filepath.IsAbs(cachePath) {
				cachePath = filepath.Join(taskRootAbs, cachePath)
			}
			if err := os.Remove(cachePath); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("remove cache %s: %w", cachePath, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cache cleared: %s\n", cachePath)
			return nil
		},
	}
}
