package judge

import (
	"context"
	"fmt"
	"strconv"

	"github.com/taskforge/benchkeep/internal/sandbox"
	"github.com/taskforge/benchkeep/internal/verdict"
)

// OpendataV1 invokes an external judge with argv=[test_index, seed],
// stdin=solution output, and TEST_INPUT/TEST_OUTPUT set in the
// environment when the judge declares it needs them.
type OpendataV1 struct {
	Runner        *sandbox.Runner
	Executable    string
	WorkDir       string
	Limits        sandbox.Limits
	TestIdx       int
	Seed          uint64
	JudgeNeedsIn  bool
	JudgeNeedsOut bool
}

func (j OpendataV1) Evaluate(ctx context.Context, inputPath, correctOutputPath, solutionOutputPath string) (Result, error) {
	env := map[string]string{}
	if j.JudgeNeedsIn {
		env["TEST_INPUT"] = inputPath
	}
	if j.JudgeNeedsOut {
		env["TEST_OUTPUT"] = correctOutputPath
	}

	res, err := j.Runner.Run(ctx, sandbox.Spec{
		Executable: j.Executable,
		Argv:       []string{strconv.Itoa(j.TestIdx), fmt.Sprintf("%x", j.Seed)},
		Dir:        j.WorkDir,
		Limits:     j.Limits,
		Stdin:      sandbox.Stdio{Path: solutionOutputPath},
		Env:        env,
	})
	if err != nil {
		return Result{}, fmt.Errorf("run opendata-v1 judge: %w", err)
	}

	switch res.ReturnCode {
	case 0:
		return Result{Verdict: verdict.OK, Points: 1.0}, nil
	case 1:
		return Result{Verdict: verdict.WrongAnswer, Points: 0}, nil
	default:
		return fatal(fmt.Sprintf("opendata-v1 judge exited with status %d: %s", res.ReturnCode, res.Status))
	}
}
