// Package judge implements spec.md §4.7: per-input judging, polymorphic
// over the out-check mode, grounded on original_source/pisek/judge.py's
// Judge/WhiteDiffJudge/CMSExternalJudge/KasiopeaExternalJudge hierarchy but
// reimplemented against exit-code and points-file conventions instead of
// Python subprocess calls.
package judge

import (
	"context"

	"github.com/taskforge/benchkeep/internal/verdict"
)

// Result is the outcome of judging one solution output.
type Result struct {
	Verdict verdict.Verdict
	Points  float64 // in [0, 1]; relative points within the testcase
	Message string

	// CPUSeconds/WallSeconds are the solution child's measured times, set
	// only by judges that run the solution themselves (cms-communication).
	// Batch judging leaves them zero; there the times come from the paired
	// run job's RunResult instead.
	CPUSeconds  float64
	WallSeconds float64
}

// Judge maps (input, correct output, solution output) to a Result.
type Judge interface {
	Evaluate(ctx context.Context, inputPath, correctOutputPath, solutionOutputPath string) (Result, error)
}

// JudgeError reports a judge that produced nonsensical output: an
// unexpected exit status, non-numeric points, or points outside [0,1]. It
// fails the enclosing judge job, cancelling everything downstream of that
// input — a wrong answer is a verdict, a broken judge is not.
type JudgeError struct {
	Msg string
}

func (e *JudgeError) Error() string { return "judge: " + e.Msg }

func fatal(msg string) (Result, error) {
	return Result{Verdict: verdict.Error, Message: msg}, &JudgeError{Msg: msg}
}
