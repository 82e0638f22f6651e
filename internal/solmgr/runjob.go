package solmgr

import (
	"context"
	"fmt"

	"github.com/taskforge/benchkeep/internal/buildjob"
	"github.com/taskforge/benchkeep/internal/cache"
	"github.com/taskforge/benchkeep/internal/pipeline"
	"github.com/taskforge/benchkeep/internal/sandbox"
)

// RunResult is a RunJob's published result: what the sandboxed solution
// run did, independent of whether its output turns out correct. Skipped
// marks a run that never launched because its test group's outcome was
// already definitive; the paired judge job passes its aggregate through
// unchanged.
type RunResult struct {
	Kind        sandbox.Kind
	Status      string
	OutputPath  string
	StderrPath  string
	CPUSeconds  float64
	WallSeconds float64
	Skipped     bool
}

// RunJob invokes a compiled solution against one testcase's input under
// the configured limits, writing its stdout to outputPath. It implements
// pipeline.Job.
type RunJob struct {
	pipeline.GobCodec[RunResult]

	name           string
	taskRoot       string
	programName    string
	buildJobName   string
	prevAggJobName string
	maskChar       byte
	inputPath      string
	outputPath     string
	stderrPath     string
	limits         sandbox.Limits
	runner         *sandbox.Runner
}

// NewRunJob constructs a run job named name, depending on buildJobName's
// published buildjob.Result to locate the solution executable. The run's
// stderr is captured to stderrPath (discarded when empty).
// prevAggJobName names the previous link in the test group's judge chain;
// when that aggregate already makes the group's outcome definitive under
// maskChar, the sandbox run is skipped entirely.
func NewRunJob(name, taskRoot, programName, buildJobName, prevAggJobName string, maskChar byte, inputPath, outputPath, stderrPath string, limits sandbox.Limits, runner *sandbox.Runner) *RunJob {
	return &RunJob{
		name:           name,
		taskRoot:       taskRoot,
		programName:    programName,
		buildJobName:   buildJobName,
		prevAggJobName: prevAggJobName,
		maskChar:       maskChar,
		inputPath:      inputPath,
		outputPath:     outputPath,
		stderrPath:     stderrPath,
		limits:         limits,
		runner:         runner,
	}
}

func (j *RunJob) Name() string { return j.name }

func (j *RunJob) Prerequisites() []pipeline.Prerequisite {
	prereqs := []pipeline.Prerequisite{{Name: j.buildJobName, ResultName: "build"}}
	if j.prevAggJobName != "" {
		prereqs = append(prereqs, pipeline.Prerequisite{Name: j.prevAggJobName, ResultName: "prev_agg"})
	}
	return prereqs
}

func (j *RunJob) CacheInput() cache.Input {
	return cache.Input{
		Args:  []string{j.programName, j.inputPath, j.outputPath},
		Files: []string{j.inputPath},
	}
}

func (j *RunJob) Run(ctx context.Context, results map[string]any) (any, error) {
	if prev, ok := results["prev_agg"].(aggregate); ok && definitiveAggregate(prev, j.maskChar) {
		return RunResult{Skipped: true, Status: "skipped: group outcome already definitive"}, nil
	}

	build, ok := results["build"].(buildjob.Result)
	if !ok {
		return nil, fmt.Errorf("%s: missing build result", j.name)
	}
	executable := buildjob.ExecutablePath(j.taskRoot, j.programName, build)

	res, err := j.runner.Run(ctx, sandbox.Spec{
		Executable: executable,
		Dir:        j.taskRoot,
		Limits:     j.limits,
		Stdin:      sandbox.Stdio{Path: j.inputPath},
		Stdout:     sandbox.Stdio{Path: j.outputPath},
		Stderr:     sandbox.Stdio{Path: j.stderrPath},
	})
	if err != nil {
		return nil, fmt.Errorf("launch solution %s: %w", j.programName, err)
	}

	return RunResult{
		Kind:        res.Kind,
		Status:      res.Status,
		OutputPath:  j.outputPath,
		StderrPath:  j.stderrPath,
		CPUSeconds:  res.CPUTime.Seconds(),
		WallSeconds: res.WallTime.Seconds(),
	}, nil
}
