package judge

import (
	"context"
	"fmt"
	"strconv"

	"github.com/taskforge/benchkeep/internal/sandbox"
	"github.com/taskforge/benchkeep/internal/verdict"
)

// Tokens judges via the bundled token judge (judge-token), grounded on
// original_source/pisek/task_jobs/judge.py's RunTokenJudge: fixed "-t"
// flag, optional "-n"/"-i" for newline/case insensitivity, and "-r -e REL
// -E ABS" when both float error tolerances are configured.
type Tokens struct {
	Runner         *sandbox.Runner
	Executable     string
	WorkDir        string
	Limits         sandbox.Limits
	IgnoreNewlines bool
	IgnoreCase     bool
	FloatRelError  *float64
	FloatAbsError  *float64
}

func (t Tokens) Evaluate(ctx context.Context, _ string, correctOutputPath, solutionOutputPath string) (Result, error) {
	argv := []string{"-t"}
	if t.IgnoreNewlines {
		argv = append(argv, "-n")
	}
	if t.IgnoreCase {
		argv = append(argv, "-i")
	}
	if t.FloatRelError != nil && t.FloatAbsError != nil {
		argv = append(argv, "-r", "-e", strconv.FormatFloat(*t.FloatRelError, 'g', -1, 64),
			"-E", strconv.FormatFloat(*t.FloatAbsError, 'g', -1, 64))
	}
	argv = append(argv, solutionOutputPath, correctOutputPath)

	res, err := t.Runner.Run(ctx, sandbox.Spec{
		Executable: t.Executable,
		Argv:       argv,
		Dir:        t.WorkDir,
		Limits:     t.Limits,
	})
	if err != nil {
		return Result{}, fmt.Errorf("run token judge: %w", err)
	}

	switch res.ReturnCode {
	case 42:
		return Result{Verdict: verdict.OK, Points: 1.0}, nil
	case 43:
		return Result{Verdict: verdict.WrongAnswer, Points: 0}, nil
	default:
		return fatal(fmt.Sprintf("token judge exited with status %d: %s", res.ReturnCode, res.Status))
	}
}
