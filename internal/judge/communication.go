//go:build !windows

package judge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/taskforge/benchkeep/internal/sandbox"
	"github.com/taskforge/benchkeep/internal/verdict"
)

// CMSCommunication drives an interactive task: the contestant's solution
// and a checker process are connected by two named pipes (solution stdout
// -> checker stdin, checker stdout -> solution stdin). Grounded on the
// teacher's single-fire cancel/Detected pattern (idle.go, ratelimit.go):
// here the fifo pair is torn down exactly once, as soon as either side
// exits, via sandbox.WaitPool's onFirstExit callback.
type CMSCommunication struct {
	Runner       *sandbox.Runner
	SolutionSpec sandbox.Spec
	CheckerSpec  sandbox.Spec
	FifoDir      string
	PointsPath   string
	LogPath      string
}

// sandboxVerdict maps a non-OK sandbox outcome for the solution side of an
// interactive run onto a Verdict: a sandbox timeout is a judged timeout, any
// other runtime failure is a judged error.
func sandboxVerdict(k sandbox.Kind) verdict.Verdict {
	if k == sandbox.Timeout {
		return verdict.Timeout
	}
	return verdict.Error
}

// Evaluate launches both children connected by freshly created fifos, then
// waits for the first to exit before tearing the pipes down for the other.
func (j CMSCommunication) Evaluate(ctx context.Context, _ string, _ string, _ string) (Result, error) {
	if err := os.MkdirAll(j.FifoDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("create fifo dir %s: %w", j.FifoDir, err)
	}
	toChecker := filepath.Join(j.FifoDir, "sol-to-checker")
	toSolution := filepath.Join(j.FifoDir, "checker-to-sol")
	for _, p := range []string{toChecker, toSolution} {
		_ = os.Remove(p) // a crashed prior run may have left the fifo behind
		if err := syscall.Mkfifo(p, 0o600); err != nil {
			return Result{}, fmt.Errorf("create fifo %s: %w", p, err)
		}
	}
	defer os.Remove(toChecker)
	defer os.Remove(toSolution)

	// A plain O_RDONLY/O_WRONLY open of a fifo blocks until a peer opens
	// the other end, and each child's startup needs exactly the opposite
	// end of the other child's — opening one side's read end only
	// resolves once the other side's write-open is *in progress*, which
	// itself needs its own read-open to have resolved first, and so on:
	// the two opens on each side are mutually gating, so no amount of
	// concurrency between starting the two children breaks the cycle.
	// Opening each fifo once as O_RDWR sidesteps this: on Linux a FIFO
	// opened for read-write never blocks (the opening process satisfies
	// both the reader and writer side by itself), so both descriptors are
	// ready immediately and shared as-is between the two children's
	// stdin/stdout.
	toCheckerFile, err := os.OpenFile(toChecker, os.O_RDWR, 0)
	if err != nil {
		return Result{}, fmt.Errorf("open fifo %s: %w", toChecker, err)
	}
	defer toCheckerFile.Close()
	toSolutionFile, err := os.OpenFile(toSolution, os.O_RDWR, 0)
	if err != nil {
		return Result{}, fmt.Errorf("open fifo %s: %w", toSolution, err)
	}
	defer toSolutionFile.Close()

	solSpec := j.SolutionSpec
	solSpec.Stdout = sandbox.Stdio{File: toCheckerFile}
	solSpec.Stdin = sandbox.Stdio{File: toSolutionFile}

	checkerSpec := j.CheckerSpec
	checkerSpec.Stdin = sandbox.Stdio{File: toCheckerFile}
	checkerSpec.Stdout = sandbox.Stdio{File: toSolutionFile}
	if checkerSpec.Stderr == (sandbox.Stdio{}) {
		checkerSpec.Stderr = sandbox.Stdio{Path: j.LogPath}
	}

	solHandle, err := j.Runner.Start(ctx, solSpec)
	if err != nil {
		return Result{}, fmt.Errorf("start solution: %w", err)
	}
	checkerHandle, err := j.Runner.Start(ctx, checkerSpec)
	if err != nil {
		solHandle.Wait()
		return Result{}, fmt.Errorf("start checker: %w", err)
	}

	results := sandbox.WaitPool([]*sandbox.Handle{solHandle, checkerHandle}, func() {
		// Closing this process's read-write descriptors leaves the
		// surviving child as the only holder of its fifos, so it sees EOF
		// (or EPIPE) instead of blocking until its wall limit.
		toCheckerFile.Close()
		toSolutionFile.Close()
		os.Remove(toChecker)
		os.Remove(toSolution)
	})

	solResult, checkerResult := results[0], results[1]
	cpu := solResult.CPUTime.Seconds()
	wall := solResult.WallTime.Seconds()
	if solResult.Kind != sandbox.OK {
		return Result{Verdict: sandboxVerdict(solResult.Kind), Message: solResult.Status, CPUSeconds: cpu, WallSeconds: wall}, nil
	}
	if checkerResult.Kind != sandbox.OK {
		return fatal(fmt.Sprintf("checker failed: %s", checkerResult.Status))
	}

	points, err := firstLinePoints(j.PointsPath)
	if err != nil {
		return fatal(err.Error())
	}
	message := firstLine(j.LogPath)

	switch {
	case points == 1:
		return Result{Verdict: verdict.OK, Points: points, Message: message, CPUSeconds: cpu, WallSeconds: wall}, nil
	case points == 0:
		return Result{Verdict: verdict.WrongAnswer, Points: points, Message: message, CPUSeconds: cpu, WallSeconds: wall}, nil
	default:
		return Result{Verdict: verdict.PartialOK, Points: points, Message: message, CPUSeconds: cpu, WallSeconds: wall}, nil
	}
}
