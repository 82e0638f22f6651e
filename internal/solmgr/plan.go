// Package solmgr schedules one solution's test runs and judging as a
// pipeline.JobManager, grounded on spec.md §4.8. It owns per-test-group
// aggregation (minimum absolute points, maximum-severity verdict across a
// group's own and inherited inputs), definitive cancellation of a test
// group once its mask outcome can no longer change, and evaluation of the
// solution's declared expectation against the final per-group results.
//
// Resolving which testcases exist and feeding generated input/correct-
// output pairs is the caller's job: solmgr consumes an already-built
// TestPlan rather than invoking internal/generator or glob-matching
// internal/taskconfig itself, so its own scope stays to scheduling,
// aggregation, cancellation and evaluation.
package solmgr

import "github.com/taskforge/benchkeep/internal/judge"

// TestcaseRef is one generated testcase's on-disk locations, resolved by
// the caller from internal/generator's output and internal/taskconfig's
// glob lists.
type TestcaseRef struct {
	Name              string
	InputPath         string
	CorrectOutputPath string
	Seed              uint64  // meaningful only for opendata-v1 judging
	Points            float64 // this testcase's absolute point weight
}

// TestPlan maps a test index to the testcases newly introduced by that
// test — not the ones it inherits through DirectPredecessors. A testcase
// already covered by a predecessor test is listed only under the test
// that first introduces it: every descendant test reaches it by folding in
// its predecessor's final aggregate instead of re-running it.
type TestPlan map[int][]TestcaseRef

// JudgeFactory builds the judge.Judge used to evaluate one testcase's
// solution output, given the path to the already-built solution
// executable (resolved once the solution's build job has succeeded).
type JudgeFactory func(solutionExecutable string, tc TestcaseRef) (judge.Judge, error)
