package solmgr

import (
	"context"
	"fmt"

	"github.com/taskforge/benchkeep/internal/cache"
	"github.com/taskforge/benchkeep/internal/pipeline"
	"github.com/taskforge/benchkeep/internal/verdict"
)

// TestGroupResult is one test group's final, published outcome: the
// merged aggregate (carried forward to descendant tests that declare this
// test as a direct predecessor) plus its evaluation against the
// solution's mask character for this test.
type TestGroupResult struct {
	TestIdx   int
	Agg       aggregate
	Verdict   verdict.Verdict
	Points    float64
	Satisfied bool
}

// seedJob merges the direct predecessors' published TestGroupResult
// aggregates into the starting aggregate for one test group, before any
// of that test's own testcases are judged. A test with no predecessors
// seeds from the empty aggregate.
type seedJob struct {
	pipeline.GobCodec[aggregate]
	name    string
	prereqs []pipeline.Prerequisite
}

func newSeedJob(name string, prereqs []pipeline.Prerequisite) *seedJob {
	return &seedJob{name: name, prereqs: prereqs}
}

func (j *seedJob) Name() string                          { return j.name }
func (j *seedJob) Prerequisites() []pipeline.Prerequisite { return j.prereqs }
func (j *seedJob) CacheInput() cache.Input                { return cache.Input{Args: []string{j.name}} }

func (j *seedJob) Run(_ context.Context, results map[string]any) (any, error) {
	var aggs []aggregate
	for _, pr := range j.prereqs {
		if pr.ResultName == "" {
			continue
		}
		if tgr, ok := results[pr.ResultName].(TestGroupResult); ok {
			aggs = append(aggs, tgr.Agg)
		}
	}
	return mergeAggregates(aggs...), nil
}

// groupFinalJob evaluates one test group's fully-merged aggregate against
// the solution's mask character for this test and publishes the
// TestGroupResult consumed by the manager's Summarize and by any
// descendant test's seedJob.
type groupFinalJob struct {
	pipeline.GobCodec[TestGroupResult]
	name      string
	testIdx   int
	chainName string
	maskChar  byte
}

func newGroupFinalJob(name string, testIdx int, chainName string, maskChar byte) *groupFinalJob {
	return &groupFinalJob{name: name, testIdx: testIdx, chainName: chainName, maskChar: maskChar}
}

func (j *groupFinalJob) Name() string { return j.name }

func (j *groupFinalJob) Prerequisites() []pipeline.Prerequisite {
	return []pipeline.Prerequisite{{Name: j.chainName, ResultName: "chain"}}
}

func (j *groupFinalJob) CacheInput() cache.Input {
	return cache.Input{Args: []string{j.name}, Kwargs: map[string]string{"mask_char": string([]byte{j.maskChar})}}
}

func (j *groupFinalJob) Run(_ context.Context, results map[string]any) (any, error) {
	agg, _ := results["chain"].(aggregate)

	// A group with no inputs at all (an empty test, or every input
	// inherited from a predecessor that itself had none) is vacuously
	// satisfied and contributes no points.
	if !agg.HasAny {
		return TestGroupResult{TestIdx: j.testIdx, Agg: agg, Verdict: verdict.OK, Points: 0, Satisfied: true}, nil
	}

	satisfied, err := verdict.Evaluate(agg.Verdicts, j.maskChar)
	if err != nil {
		return nil, err
	}
	result := TestGroupResult{
		TestIdx:   j.testIdx,
		Agg:       agg,
		Verdict:   verdict.MaxAll(agg.Verdicts),
		Points:    agg.Points,
		Satisfied: satisfied,
	}
	if !satisfied {
		if name := worstInputName(agg); name != "" {
			return nil, fmt.Errorf("test %d: input %s: verdicts do not satisfy mask %q (worst verdict %s)", j.testIdx, name, string(j.maskChar), result.Verdict)
		}
		return nil, fmt.Errorf("test %d: observed verdicts do not satisfy mask %q (worst verdict %s)", j.testIdx, string(j.maskChar), result.Verdict)
	}
	return result, nil
}

// worstInputName picks the input carrying the group's maximum-severity
// verdict, so an evaluation failure can point at a concrete file.
func worstInputName(agg aggregate) string {
	worst := verdict.MaxAll(agg.Verdicts)
	for _, in := range agg.Inputs {
		if in.Verdict == worst {
			return in.Name
		}
	}
	return ""
}
