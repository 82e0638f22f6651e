package solmgr

import "github.com/taskforge/benchkeep/internal/verdict"

// InputOutcome is one judged input's recorded outcome, carried inside the
// group aggregate so the manager's report (and the testing_log.json writer
// behind it) can attribute a verdict, points, and measured times to the
// concrete input that produced them.
type InputOutcome struct {
	Name        string
	Verdict     verdict.Verdict
	Points      float64
	CPUSeconds  float64
	WallSeconds float64
}

// aggregate is the running per-test-group outcome threaded through a
// JudgeJob chain and across direct-predecessor boundaries: every verdict
// observed so far (own testcases plus whatever a predecessor test already
// judged) and the minimum absolute points seen. Both folds — append and
// min — are idempotent, so folding the same predecessor's aggregate into
// more than one descendant (a diamond in the predecessor DAG) changes
// nothing: the duplicate verdict cannot move a max, and the duplicate
// points value cannot move a min; duplicate inputs are deduplicated by
// name on merge.
type aggregate struct {
	Verdicts []verdict.Verdict
	Inputs   []InputOutcome
	Points   float64
	HasAny   bool
}

func mergeAggregates(aggs ...aggregate) aggregate {
	var out aggregate
	seen := make(map[string]bool)
	for _, a := range aggs {
		if !a.HasAny {
			continue
		}
		out.Verdicts = append(out.Verdicts, a.Verdicts...)
		for _, in := range a.Inputs {
			if in.Name != "" && seen[in.Name] {
				continue
			}
			seen[in.Name] = true
			out.Inputs = append(out.Inputs, in)
		}
		if !out.HasAny || a.Points < out.Points {
			out.Points = a.Points
		}
		out.HasAny = true
	}
	return out
}

// definitiveAggregate reports whether a's verdicts already pin the group's
// outcome under maskChar, per spec.md §4.8's definitive-cancellation rule.
// An empty aggregate is never definitive.
func definitiveAggregate(a aggregate, maskChar byte) bool {
	if !a.HasAny {
		return false
	}
	definitive, err := verdict.Definitive(a.Verdicts, maskChar)
	return err == nil && definitive
}

// withJudged folds one newly judged input's outcome into a.
func (a aggregate) withJudged(in InputOutcome) aggregate {
	next := aggregate{
		Verdicts: append(append([]verdict.Verdict(nil), a.Verdicts...), in.Verdict),
		Inputs:   append(append([]InputOutcome(nil), a.Inputs...), in),
		Points:   in.Points,
		HasAny:   true,
	}
	if a.HasAny && a.Points < in.Points {
		next.Points = a.Points
	}
	return next
}
