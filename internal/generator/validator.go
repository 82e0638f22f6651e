package generator

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/taskforge/benchkeep/internal/sandbox"
)

// readLogQuietly returns a log file's contents, or "" if it cannot be read
// (e.g. the run never produced one).
func readLogQuietly(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(data)
}

// ValidatorResult is the published outcome of a validator job.
type ValidatorResult struct {
	OK  bool
	Log string
}

// RunValidator invokes the validator executable against one input file per
// spec.md §4.6: argv=[test_index], stdin=input file, stderr captured to a
// log; nonzero exit fails with the log quoted.
func RunValidator(ctx context.Context, runner *sandbox.Runner, executable, workDir, inputPath string, testIdx int, limits sandbox.Limits, logPath string) (ValidatorResult, error) {
	res, err := runner.Run(ctx, sandbox.Spec{
		Executable: executable,
		Argv:       []string{strconv.Itoa(testIdx)},
		Dir:        workDir,
		Limits:     limits,
		Stdin:      sandbox.Stdio{Path: inputPath},
		Stderr:     sandbox.Stdio{Path: logPath},
	})
	if err != nil {
		return ValidatorResult{}, fmt.Errorf("run validator: %w", err)
	}
	log := readLogQuietly(logPath)
	if res.Kind != sandbox.OK {
		return ValidatorResult{OK: false, Log: log}, fmt.Errorf("validator rejected %s: %s", inputPath, log)
	}
	return ValidatorResult{OK: true, Log: log}, nil
}
