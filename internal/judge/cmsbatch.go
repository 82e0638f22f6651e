package judge

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/taskforge/benchkeep/internal/sandbox"
	"github.com/taskforge/benchkeep/internal/verdict"
)

// CMSBatch invokes a CMS-style batch judge: argv=[input, correct_output,
// solution_output], stdout redirected to a points file, stderr to a judge
// log. The points file's first line must parse as a decimal in [0,1].
type CMSBatch struct {
	Runner     *sandbox.Runner
	Executable string
	WorkDir    string
	Limits     sandbox.Limits
	PointsPath string
	LogPath    string
}

func (j CMSBatch) Evaluate(ctx context.Context, inputPath, correctOutputPath, solutionOutputPath string) (Result, error) {
	res, err := j.Runner.Run(ctx, sandbox.Spec{
		Executable: j.Executable,
		Argv:       []string{inputPath, correctOutputPath, solutionOutputPath},
		Dir:        j.WorkDir,
		Limits:     j.Limits,
		Stdout:     sandbox.Stdio{Path: j.PointsPath},
		Stderr:     sandbox.Stdio{Path: j.LogPath},
	})
	if err != nil {
		return Result{}, fmt.Errorf("run cms-batch judge: %w", err)
	}
	if res.Kind != sandbox.OK {
		return fatal(fmt.Sprintf("cms-batch judge failed to run: %s", res.Status))
	}

	points, err := firstLinePoints(j.PointsPath)
	if err != nil {
		return fatal(err.Error())
	}

	message := firstLine(j.LogPath)

	switch {
	case points == 1:
		return Result{Verdict: verdict.OK, Points: points, Message: message}, nil
	case points == 0:
		return Result{Verdict: verdict.WrongAnswer, Points: points, Message: message}, nil
	default:
		return Result{Verdict: verdict.PartialOK, Points: points, Message: message}, nil
	}
}

func firstLinePoints(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open points file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		return 0, fmt.Errorf("points file %s is empty", path)
	}
	line := strings.TrimSpace(scanner.Text())
	points, err := strconv.ParseFloat(line, 64)
	if err != nil {
		return 0, fmt.Errorf("points file %s: %q is not a decimal: %w", path, line, err)
	}
	if points < 0 || points > 1 {
		return 0, fmt.Errorf("points file %s: %v out of range [0,1]", path, points)
	}
	return points, nil
}

func firstLine(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	if scanner.Scan() {
		return scanner.Text()
	}
	return ""
}
