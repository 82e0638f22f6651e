package judge

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/taskforge/benchkeep/internal/verdict"
)

// Diff judges by shelling out to "diff -Bbq", grounded on the teacher's
// pattern of shelling out to system tools (verifier.runMake) rather than
// reimplementing whitespace-insensitive comparison.
type Diff struct{}

func (Diff) Evaluate(ctx context.Context, _ string, correctOutputPath, solutionOutputPath string) (Result, error) {
	cmd := exec.CommandContext(ctx, "diff", "-Bbq", correctOutputPath, solutionOutputPath)
	err := cmd.Run()
	if err == nil {
		return Result{Verdict: verdict.OK, Points: 1.0}, nil
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		switch exitErr.ExitCode() {
		case 1:
			return Result{Verdict: verdict.WrongAnswer, Points: 0}, nil
		default:
			return fatal(fmt.Sprintf("diff exited with status %d", exitErr.ExitCode()))
		}
	}
	return Result{}, fmt.Errorf("run diff: %w", err)
}
