package solmgr

import (
	"context"
	"fmt"

	"github.com/taskforge/benchkeep/internal/buildjob"
	"github.com/taskforge/benchkeep/internal/cache"
	"github.com/taskforge/benchkeep/internal/pipeline"
)

// InteractiveJob fuses one interactive testcase's run and judging into a
// single pipeline job: the communication judge launches the solution and
// the checker itself, connected by a fifo pair, so there is no separate
// RunJob to pair a judge with. It implements pipeline.Job.
type InteractiveJob struct {
	pipeline.GobCodec[aggregate]

	name           string
	buildJobName   string
	prevAggJobName string
	maskChar       byte
	taskRoot       string
	programName    string
	factory        JudgeFactory
	tc             TestcaseRef
}

// NewInteractiveJob constructs an interactive run+judge job named name.
// The factory receives the built solution executable so it can hand the
// communication judge both children's specs.
func NewInteractiveJob(name, buildJobName, prevAggJobName string, maskChar byte, taskRoot, programName string, factory JudgeFactory, tc TestcaseRef) *InteractiveJob {
	return &InteractiveJob{
		name:           name,
		buildJobName:   buildJobName,
		prevAggJobName: prevAggJobName,
		maskChar:       maskChar,
		taskRoot:       taskRoot,
		programName:    programName,
		factory:        factory,
		tc:             tc,
	}
}

func (j *InteractiveJob) Name() string { return j.name }

func (j *InteractiveJob) Prerequisites() []pipeline.Prerequisite {
	return []pipeline.Prerequisite{
		{Name: j.buildJobName, ResultName: "build"},
		{Name: j.prevAggJobName, ResultName: "prev_agg"},
	}
}

func (j *InteractiveJob) CacheInput() cache.Input {
	return cache.Input{
		Args:   []string{j.name, j.programName},
		Kwargs: map[string]string{"testcase": j.tc.Name},
		Files:  []string{j.tc.InputPath},
	}
}

func (j *InteractiveJob) Run(ctx context.Context, results map[string]any) (any, error) {
	seed, _ := results["prev_agg"].(aggregate)
	if definitiveAggregate(seed, j.maskChar) {
		return seed, nil
	}

	build, ok := results["build"].(buildjob.Result)
	if !ok {
		return nil, fmt.Errorf("%s: missing build result", j.name)
	}
	executable := buildjob.ExecutablePath(j.taskRoot, j.programName, build)

	jg, err := j.factory(executable, j.tc)
	if err != nil {
		return nil, err
	}
	result, err := jg.Evaluate(ctx, j.tc.InputPath, j.tc.CorrectOutputPath, "")
	if err != nil {
		return nil, err
	}

	return seed.withJudged(InputOutcome{
		Name:        j.tc.Name,
		Verdict:     result.Verdict,
		Points:      result.Points * j.tc.Points,
		CPUSeconds:  result.CPUSeconds,
		WallSeconds: result.WallSeconds,
	}), nil
}
