// Package complete implements spec.md §4.10: the two global,
// cross-solution completeness invariants checked once every solution
// manager has finished. Grounded on original_source/pisek/visualize.py's
// "is every subtask guarded by a dedicated solution" report and on
// original_source/pisek/judge.py's CMS judge-log hygiene assumption (the
// first line of a judge's stderr is shown to contestants verbatim, so it
// must be exactly one non-empty line).
package complete

import (
	"fmt"
	"os"
	"strings"

	"github.com/taskforge/benchkeep/internal/solmgr"
	"github.com/taskforge/benchkeep/internal/verdict"
)

// Warning is one completeness-check finding. It is non-fatal by default;
// Escalate turns it into a hard error in strict mode, per spec.md §7's
// "Warning: non-fatal issues in non-strict mode... in strict mode every
// warning becomes an error."
type Warning struct {
	Msg string
}

func (w *Warning) Error() string { return "warning: " + w.Msg }

// Check runs both invariants over a finished run's solution reports.
// numTests is the task's total test count; predecessors[t] is test t's
// transitive predecessor set (taskconfig.TaskConfig's AllPredecessors).
// Test 0 is conventionally samples and is exempt from the dedicated-
// solution check. sampleJudgeLogPaths lists every judge stderr log
// produced while judging samples against the reference output.
func Check(reports []solmgr.Report, numTests int, predecessors [][]int, sampleJudgeLogPaths []string) []error {
	var warnings []error
	warnings = append(warnings, checkDedicatedSolutions(reports, numTests, predecessors)...)
	warnings = append(warnings, checkJudgeLogHygiene(sampleJudgeLogPaths)...)
	return warnings
}

// Escalate returns the first warning as a hard error when strict is true,
// and nil otherwise (the caller is expected to still have logged every
// warning through the status sink before calling this).
func Escalate(warnings []error, strict bool) error {
	if !strict || len(warnings) == 0 {
		return nil
	}
	return fmt.Errorf("strict mode: %w", warnings[0])
}

// checkDedicatedSolutions implements "for each non-sample test t, there
// must exist at least one solution whose per-test verdict is ok on t and
// all of t's predecessors and non-ok on every other non-sample test."
func checkDedicatedSolutions(reports []solmgr.Report, numTests int, predecessors [][]int) []error {
	var warnings []error
	for t := 1; t < numTests; t++ {
		dedicated := false
		for _, r := range reports {
			if solutionDedicatedTo(r, t, numTests, predecessors) {
				dedicated = true
				break
			}
		}
		if !dedicated {
			warnings = append(warnings, &Warning{
				Msg: fmt.Sprintf("no solution is dedicated to test %d (ok on it and its predecessors, non-ok on every other non-sample test)", t),
			})
		}
	}
	return warnings
}

func solutionDedicatedTo(r solmgr.Report, t, numTests int, predecessors [][]int) bool {
	own, ok := r.Groups[t]
	if !ok || own.Verdict != verdict.OK {
		return false
	}
	predSet := make(map[int]bool, len(predecessors[t]))
	for _, p := range predecessors[t] {
		predSet[p] = true
		pg, ok := r.Groups[p]
		if !ok || pg.Verdict != verdict.OK {
			return false
		}
	}
	for other := 1; other < numTests; other++ {
		if other == t || predSet[other] {
			continue
		}
		if g, ok := r.Groups[other]; ok && g.Verdict == verdict.OK {
			return false
		}
	}
	return true
}

// checkJudgeLogHygiene implements "every judge log file produced during
// sample judging must consist of exactly one non-empty line."
func checkJudgeLogHygiene(paths []string) []error {
	var warnings []error
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			warnings = append(warnings, &Warning{Msg: fmt.Sprintf("judge log %s: %v", p, err)})
			continue
		}
		trimmed := strings.TrimRight(string(data), "\n")
		lines := strings.Split(trimmed, "\n")
		if len(lines) != 1 || strings.TrimSpace(lines[0]) == "" {
			warnings = append(warnings, &Warning{
				Msg: fmt.Sprintf("judge log %s: expected exactly one non-empty line, got %d", p, len(lines)),
			})
		}
	}
	return warnings
}
