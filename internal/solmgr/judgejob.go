package solmgr

import (
	"context"
	"fmt"

	"github.com/taskforge/benchkeep/internal/cache"
	"github.com/taskforge/benchkeep/internal/pipeline"
	"github.com/taskforge/benchkeep/internal/sandbox"
	"github.com/taskforge/benchkeep/internal/verdict"
)

// JudgeJob turns one solution run's outcome into a verdict and absolute
// points, and folds it into the running aggregate carried in from its
// "prev_agg" prerequisite (either the test group's seed, covering
// inherited predecessor results, or the previous testcase's JudgeJob in
// the same group's chain). It implements pipeline.Job.
//
// When the run itself did not finish OK, spec.md §4.7's rule applies
// verbatim: the judge is never invoked, and the verdict is error (timeout
// for a timed-out run) with zero points.
type JudgeJob struct {
	pipeline.GobCodec[aggregate]

	name            string
	runJobName      string
	prevAggJobName  string
	maskChar        byte
	factory         JudgeFactory
	tc              TestcaseRef
	expectedVerdict *verdict.Verdict
}

// NewJudgeJob constructs a judge job named name. prevAggJobName names the
// job (a seed job or the prior JudgeJob in this group's chain) whose
// published aggregate this job folds its own outcome into; once that
// aggregate is already definitive under maskChar, the input is not judged
// and the aggregate passes through unchanged.
func NewJudgeJob(name, runJobName, prevAggJobName string, maskChar byte, factory JudgeFactory, tc TestcaseRef, expectedVerdict *verdict.Verdict) *JudgeJob {
	return &JudgeJob{
		name:            name,
		runJobName:      runJobName,
		prevAggJobName:  prevAggJobName,
		maskChar:        maskChar,
		factory:         factory,
		tc:              tc,
		expectedVerdict: expectedVerdict,
	}
}

func (j *JudgeJob) Name() string { return j.name }

func (j *JudgeJob) Prerequisites() []pipeline.Prerequisite {
	return []pipeline.Prerequisite{
		{Name: j.runJobName, ResultName: "run"},
		{Name: j.prevAggJobName, ResultName: "prev_agg"},
	}
}

func (j *JudgeJob) CacheInput() cache.Input {
	kwargs := map[string]string{"testcase": j.tc.Name}
	if j.expectedVerdict != nil {
		kwargs["expected_verdict"] = j.expectedVerdict.String()
	}
	// The reference output is judged against but not produced by any
	// prerequisite of this job, so its content has to enter the signature
	// directly: re-generating it (a changed primary solution) must
	// invalidate every cached verdict that compared against it.
	return cache.Input{
		Args:   []string{j.name},
		Kwargs: kwargs,
		Files:  []string{j.tc.CorrectOutputPath},
	}
}

func (j *JudgeJob) Run(ctx context.Context, results map[string]any) (any, error) {
	run, ok := results["run"].(RunResult)
	if !ok {
		return nil, fmt.Errorf("%s: missing run result", j.name)
	}
	seed, _ := results["prev_agg"].(aggregate)

	// Once the group's outcome under its mask character is immutable,
	// this input is not judged at all: the aggregate passes through
	// unchanged so the group-final evaluation still sees the full chain.
	if definitiveAggregate(seed, j.maskChar) || run.Skipped {
		return seed, nil
	}

	if run.Kind != sandbox.OK {
		v := verdict.Error
		if run.Kind == sandbox.Timeout {
			v = verdict.Timeout
		}
		if j.expectedVerdict != nil && *j.expectedVerdict != v {
			return nil, fmt.Errorf("%s: run produced %s, expected %s", j.name, v, *j.expectedVerdict)
		}
		return seed.withJudged(InputOutcome{
			Name:        j.tc.Name,
			Verdict:     v,
			Points:      0,
			CPUSeconds:  run.CPUSeconds,
			WallSeconds: run.WallSeconds,
		}), nil
	}

	jg, err := j.factory("", j.tc)
	if err != nil {
		return nil, err
	}
	result, err := jg.Evaluate(ctx, j.tc.InputPath, j.tc.CorrectOutputPath, run.OutputPath)
	if err != nil {
		return nil, err
	}
	if j.expectedVerdict != nil && *j.expectedVerdict != result.Verdict {
		return nil, fmt.Errorf("%s: judge produced %s, expected %s", j.name, result.Verdict, *j.expectedVerdict)
	}

	return seed.withJudged(InputOutcome{
		Name:        j.tc.Name,
		Verdict:     result.Verdict,
		Points:      result.Points * j.tc.Points,
		CPUSeconds:  run.CPUSeconds,
		WallSeconds: run.WallSeconds,
	}), nil
}
