package solmgr

import (
	"context"
	"testing"

	"github.com/taskforge/benchkeep/internal/pipeline"
	"github.com/taskforge/benchkeep/internal/verdict"
)

func TestSeedJobMergesPredecessorAggregates(t *testing.T) {
	seed := newSeedJob("seed", []pipeline.Prerequisite{
		{Name: "a", ResultName: "pred:0"},
		{Name: "b", ResultName: "pred:1"},
	})
	out, err := seed.Run(context.Background(), map[string]any{
		"pred:0": TestGroupResult{Agg: aggregate{Verdicts: []verdict.Verdict{verdict.OK}, Points: 3, HasAny: true}},
		"pred:1": TestGroupResult{Agg: aggregate{Verdicts: []verdict.Verdict{verdict.PartialOK}, Points: 1, HasAny: true}},
	})
	if err != nil {
		t.Fatal(err)
	}
	agg := out.(aggregate)
	if !agg.HasAny || agg.Points != 1 || len(agg.Verdicts) != 2 {
		t.Errorf("agg = %+v, want points=1 (min) and 2 verdicts", agg)
	}
}

func TestGroupFinalJobSatisfiedAllOK(t *testing.T) {
	j := newGroupFinalJob("final", 2, "chain", '1')
	out, err := j.Run(context.Background(), map[string]any{
		"chain": aggregate{Verdicts: []verdict.Verdict{verdict.OK, verdict.OK}, Points: 5, HasAny: true},
	})
	if err != nil {
		t.Fatal(err)
	}
	res := out.(TestGroupResult)
	if !res.Satisfied || res.Points != 5 || res.Verdict != verdict.OK {
		t.Errorf("res = %+v, want satisfied points=5 verdict=ok", res)
	}
}

func TestGroupFinalJobFailsWhenMaskUnsatisfied(t *testing.T) {
	j := newGroupFinalJob("final", 2, "chain", '1')
	_, err := j.Run(context.Background(), map[string]any{
		"chain": aggregate{Verdicts: []verdict.Verdict{verdict.OK, verdict.WrongAnswer}, Points: 0, HasAny: true},
	})
	if err == nil {
		t.Fatal("expected mask-violation error")
	}
}

func TestGroupFinalJobVacuousGroupIsSatisfied(t *testing.T) {
	j := newGroupFinalJob("final", 0, "chain", '1')
	out, err := j.Run(context.Background(), map[string]any{})
	if err != nil {
		t.Fatal(err)
	}
	res := out.(TestGroupResult)
	if !res.Satisfied || res.Points != 0 {
		t.Errorf("res = %+v, want satisfied points=0 for an empty group", res)
	}
}
