package sandbox

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"
)

// Runner executes sandboxed programs. It is reentrant: multiple runs may
// execute concurrently from different goroutines, grounded on the spec's
// "the runner is reentrant" requirement and on the teacher's stateless
// CodexRunner.Run (internal/runner/codex.go).
type Runner struct{}

// New creates a Runner.
func New() *Runner { return &Runner{} }

// Run executes one sandboxed program to completion and returns its
// structured outcome. A non-nil *LaunchError means the child never started;
// it is returned as an error, not as a Result, per the spec's contract.
func (r *Runner) Run(ctx context.Context, spec Spec) (*Result, error) {
	wall := spec.Limits.WallSeconds
	if wall <= 0 {
		wall = 60 // a run with no declared wall limit still gets a generous backstop
	}
	runCtx, cancel := context.WithTimeout(ctx, time.Duration(wall*float64(time.Second)))
	defer cancel()

	ch, err := startCmd(runCtx, spec)
	if err != nil {
		return nil, err
	}
	return ch.wait(time.Now()), nil
}

// cmdHandle owns a live *exec.Cmd plus the bookkeeping needed to close its
// sink files and classify its outcome once waited on.
type cmdHandle struct {
	cmd        *exec.Cmd
	ctx        context.Context
	spec       Spec
	closers    []io.Closer
	stdoutPath string
	stderrPath string
	diag       *launchDiagWriter
}

func startCmd(ctx context.Context, spec Spec) (*cmdHandle, error) {
	exe, argv := ulimitPrefix(spec.Limits, append([]string{spec.Executable}, spec.Argv...))

	cmd := exec.CommandContext(ctx, exe, argv...)
	cmd.Dir = spec.Dir
	cmd.Env = BuildEnv(spec.Env)
	setupProcessGroup(cmd)

	ch := &cmdHandle{cmd: cmd, ctx: ctx, spec: spec}

	if spec.Stdin.File != nil {
		// Caller-owned descriptor (the interactive-judge fifo pair): used
		// directly, not added to closers — the caller is responsible for
		// its lifetime since it's shared across two independently-started
		// children.
		cmd.Stdin = spec.Stdin.File
	} else {
		stdinFile, err := openStdin(spec.Stdin)
		if err != nil {
			return nil, &LaunchError{Executable: spec.Executable, Err: err}
		}
		if stdinFile != nil {
			ch.closers = append(ch.closers, stdinFile)
			cmd.Stdin = stdinFile
		} else if spec.Stdin.Inherit {
			cmd.Stdin = os.Stdin
		}
	}

	if spec.Stdout.File != nil {
		cmd.Stdout = spec.Stdout.File
	} else {
		stdoutFile, stdoutPath, err := openSink(spec.Stdout)
		if err != nil {
			return nil, &LaunchError{Executable: spec.Executable, Err: err}
		}
		ch.stdoutPath = stdoutPath
		if stdoutFile != nil {
			ch.closers = append(ch.closers, stdoutFile)
			cmd.Stdout = stdoutFile
		} else if spec.Stdout.Inherit {
			cmd.Stdout = os.Stdout
		}
	}

	stderrFile, stderrPath, err := openSink(spec.Stderr)
	if err != nil {
		return nil, &LaunchError{Executable: spec.Executable, Err: err}
	}
	ch.stderrPath = stderrPath
	diag := newLaunchDiagWriter(io.Discard)
	if stderrFile != nil {
		ch.closers = append(ch.closers, stderrFile)
		diag = newLaunchDiagWriter(stderrFile)
		cmd.Stderr = diag
	} else if spec.Stderr.Inherit {
		diag = newLaunchDiagWriter(os.Stderr)
		cmd.Stderr = diag
	} else {
		cmd.Stderr = diag
	}
	ch.diag = diag

	if err := cmd.Start(); err != nil {
		for _, c := range ch.closers {
			_ = c.Close()
		}
		return nil, &LaunchError{Executable: spec.Executable, Err: err}
	}
	return ch, nil
}

func (ch *cmdHandle) wait(start time.Time) *Result {
	defer func() {
		for _, c := range ch.closers {
			_ = c.Close()
		}
	}()

	waitErr := ch.cmd.Wait()
	wallTime := time.Since(start)

	var cpuTime time.Duration
	if ch.cmd.ProcessState != nil {
		cpuTime = ch.cmd.ProcessState.UserTime() + ch.cmd.ProcessState.SystemTime()
	}

	res := &Result{
		WallTime:   wallTime,
		CPUTime:    cpuTime,
		StdoutPath: ch.stdoutPath,
		StderrPath: ch.stderrPath,
	}

	switch {
	case waitErr == nil:
		res.Kind = OK
		res.Status = "exited 0"
	case ch.ctx.Err() == context.DeadlineExceeded:
		res.Kind = Timeout
		res.Status = "wall time limit exceeded"
	case ch.spec.Limits.CPUSeconds > 0 && cpuTime.Seconds() > ch.spec.Limits.CPUSeconds:
		res.Kind = Timeout
		res.Status = "cpu time limit exceeded"
	default:
		classifyFailure(res, waitErr, ch.diag.Reason())
	}

	return res
}

func classifyFailure(res *Result, waitErr error, diagReason string) {
	exitErr, ok := waitErr.(*exec.ExitError)
	if !ok {
		res.Kind = RuntimeError
		res.ReturnCode = -1
		if waitErr != nil {
			res.Status = waitErr.Error()
		}
		return
	}

	if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		sig := status.Signal()
		if sig == syscall.SIGXCPU {
			res.Kind = Timeout
			res.Status = "cpu time limit exceeded"
			return
		}
		res.Kind = RuntimeError
		res.ReturnCode = int(sig)
		res.Status = fmt.Sprintf("killed by signal %s", sig)
		return
	}

	res.Kind = RuntimeError
	res.ReturnCode = exitErr.ExitCode()
	res.Status = fmt.Sprintf("exited %d", exitErr.ExitCode())
	if diagReason != "" {
		res.Status += ": " + diagReason
	}
}

func openStdin(s Stdio) (*os.File, error) {
	if s.Path == "" {
		return nil, nil
	}
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open stdin %q: %w", s.Path, err)
	}
	return f, nil
}

func openSink(s Stdio) (*os.File, string, error) {
	if s.Path == "" {
		return nil, "", nil
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return nil, "", fmt.Errorf("create sink dir for %q: %w", s.Path, err)
	}
	f, err := os.Create(s.Path)
	if err != nil {
		return nil, "", fmt.Errorf("create sink %q: %w", s.Path, err)
	}
	return f, s.Path, nil
}
