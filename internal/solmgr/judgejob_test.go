package solmgr

import (
	"context"
	"testing"

	"github.com/taskforge/benchkeep/internal/judge"
	"github.com/taskforge/benchkeep/internal/sandbox"
	"github.com/taskforge/benchkeep/internal/verdict"
)

type fakeJudge struct {
	result judge.Result
	err    error
}

func (f fakeJudge) Evaluate(context.Context, string, string, string) (judge.Result, error) {
	return f.result, f.err
}

func factoryReturning(j judge.Judge) JudgeFactory {
	return func(string, TestcaseRef) (judge.Judge, error) { return j, nil }
}

func TestJudgeJobFoldsOKVerdictIntoSeed(t *testing.T) {
	j := NewJudgeJob("j", "run", "seed", '1', factoryReturning(fakeJudge{result: judge.Result{Verdict: verdict.OK, Points: 1}}), TestcaseRef{Name: "01", Points: 4}, nil)

	results := map[string]any{
		"run":      RunResult{Kind: sandbox.OK},
		"prev_agg": aggregate{},
	}
	out, err := j.Run(context.Background(), results)
	if err != nil {
		t.Fatal(err)
	}
	agg := out.(aggregate)
	if !agg.HasAny || agg.Points != 4 || agg.Verdicts[0] != verdict.OK {
		t.Errorf("agg = %+v, want points=4 verdict=ok", agg)
	}
}

func TestJudgeJobSkipsJudgeOnRuntimeError(t *testing.T) {
	calls := 0
	factory := func(string, TestcaseRef) (judge.Judge, error) {
		calls++
		return fakeJudge{result: judge.Result{Verdict: verdict.OK, Points: 1}}, nil
	}
	j := NewJudgeJob("j", "run", "seed", '1', factory, TestcaseRef{Name: "01", Points: 4}, nil)

	results := map[string]any{
		"run":      RunResult{Kind: sandbox.RuntimeError},
		"prev_agg": aggregate{},
	}
	out, err := j.Run(context.Background(), results)
	if err != nil {
		t.Fatal(err)
	}
	agg := out.(aggregate)
	if agg.Verdicts[0] != verdict.Error || agg.Points != 0 {
		t.Errorf("agg = %+v, want verdict=error points=0", agg)
	}
	if calls != 0 {
		t.Errorf("judge was invoked %d times, want 0 on a non-OK run", calls)
	}
}

func TestJudgeJobTimeoutMapsToTimeoutVerdict(t *testing.T) {
	j := NewJudgeJob("j", "run", "seed", 'T', factoryReturning(fakeJudge{}), TestcaseRef{Name: "01", Points: 1}, nil)
	results := map[string]any{
		"run":      RunResult{Kind: sandbox.Timeout},
		"prev_agg": aggregate{},
	}
	out, err := j.Run(context.Background(), results)
	if err != nil {
		t.Fatal(err)
	}
	agg := out.(aggregate)
	if agg.Verdicts[0] != verdict.Timeout {
		t.Errorf("verdict = %v, want timeout", agg.Verdicts[0])
	}
}

func TestJudgeJobExpectedVerdictMismatchFails(t *testing.T) {
	expected := verdict.WrongAnswer
	j := NewJudgeJob("j", "run", "seed", '1', factoryReturning(fakeJudge{result: judge.Result{Verdict: verdict.OK, Points: 1}}), TestcaseRef{Name: "01", Points: 1}, &expected)
	results := map[string]any{
		"run":      RunResult{Kind: sandbox.OK},
		"prev_agg": aggregate{},
	}
	if _, err := j.Run(context.Background(), results); err == nil {
		t.Fatal("expected a mismatch error")
	}
}

func TestJudgeJobPassesAggregateThroughOnceDefinitive(t *testing.T) {
	calls := 0
	factory := func(string, TestcaseRef) (judge.Judge, error) {
		calls++
		return fakeJudge{}, nil
	}
	j := NewJudgeJob("j2", "run2", "j1", '1', factory, TestcaseRef{Name: "02", Points: 4}, nil)

	// mask '1' is already definitively failed once a wrong_answer is seen:
	// this input is not judged, and the aggregate flows through unchanged.
	prev := aggregate{Verdicts: []verdict.Verdict{verdict.WrongAnswer}, HasAny: true}
	out, err := j.Run(context.Background(), map[string]any{
		"run":      RunResult{Kind: sandbox.OK},
		"prev_agg": prev,
	})
	if err != nil {
		t.Fatal(err)
	}
	agg := out.(aggregate)
	if len(agg.Verdicts) != 1 || agg.Verdicts[0] != verdict.WrongAnswer {
		t.Errorf("agg = %+v, want the previous aggregate unchanged", agg)
	}
	if calls != 0 {
		t.Errorf("judge was invoked %d times, want 0 once the group is definitive", calls)
	}
}

func TestRunJobSkipsOnceDefinitive(t *testing.T) {
	j := NewRunJob("run2", "/task", "solve", "build", "j1", '1', "in", "out", "", sandbox.Limits{WallSeconds: 1}, sandbox.New())

	out, err := j.Run(context.Background(), map[string]any{
		"prev_agg": aggregate{Verdicts: []verdict.Verdict{verdict.WrongAnswer}, HasAny: true},
	})
	if err != nil {
		t.Fatal(err)
	}
	rr := out.(RunResult)
	if !rr.Skipped {
		t.Errorf("rr = %+v, want a skipped run once the group is definitive", rr)
	}
}
