//go:build windows

package sandbox

import "os/exec"

// setupProcessGroup is a no-op on Windows where Setpgid is unavailable.
// Process cleanup relies on cmd.Process.Kill() via the default Cancel
// behavior. Grounded on internal/runner/procgroup_windows.go.
func setupProcessGroup(cmd *exec.Cmd) {
	_ = cmd
}

// ulimitPrefix is a no-op on Windows: cpu/memory/process-count limits are
// best-effort only there (no ulimit equivalent via a shell prefix). Wall
// time is still enforced by the context deadline in Runner.Run.
func ulimitPrefix(l Limits, argv []string) (string, []string) {
	return argv[0], argv[1:]
}
