//go:build !windows

package sandbox

import (
	"os/exec"
	"strconv"
	"syscall"

	"golang.org/x/sys/unix"
)

// setupProcessGroup puts the child process in its own process group and
// overrides cmd.Cancel to kill the entire group when the wall-clock
// watchdog or the caller's context fires. Grounded on
// internal/runner/procgroup_unix.go: same Setpgid + group-kill idiom,
// generalized from "idle_timeout fired" to "any sandbox limit fired."
// SysProcAttr must stay a *syscall.SysProcAttr (os/exec's own type), but
// signal delivery goes through golang.org/x/sys/unix like the rest of the
// sandbox's process-group handling.
func setupProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process != nil {
			return unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
		}
		return nil
	}
}

// ulimitPrefix wraps argv in a shell invocation that applies cpu/memory/
// process-count limits before exec'ing the real program. Go's os/exec has
// no hook to set rlimits in the child only (they would also apply to the
// parent if set before fork), so the limits are applied by a short-lived
// shell the same way most offline judges do it.
func ulimitPrefix(l Limits, argv []string) (string, []string) {
	if l.CPUSeconds <= 0 && l.MemoryKB <= 0 && l.MaxProcesses <= 0 {
		return argv[0], argv[1:]
	}

	script := "ulimit"
	if l.CPUSeconds > 0 {
		// ulimit -t takes whole seconds; round up so a 0.5s budget isn't
		// truncated to an instant kill.
		secs := int64(l.CPUSeconds)
		if float64(secs) < l.CPUSeconds {
			secs++
		}
		script += " -t " + strconv.FormatInt(secs, 10)
	}
	if l.MemoryKB > 0 {
		script += " -v " + strconv.FormatInt(l.MemoryKB, 10)
	}
	if l.MaxProcesses > 0 {
		script += " -u " + strconv.Itoa(l.MaxProcesses)
	}
	script += " 2>/dev/null; exec \"$0\" \"$@\""

	shArgv := append([]string{script}, argv...)
	return "/bin/sh", append([]string{"-c"}, shArgv...)
}
