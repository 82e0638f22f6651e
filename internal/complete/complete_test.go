package complete

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/taskforge/benchkeep/internal/solmgr"
	"github.com/taskforge/benchkeep/internal/verdict"
)

func report(label string, groups map[int]solmgr.TestGroupResult) solmgr.Report {
	return solmgr.Report{Label: label, Groups: groups}
}

func group(v verdict.Verdict) solmgr.TestGroupResult {
	return solmgr.TestGroupResult{Verdict: v}
}

func TestCheckDedicatedSolutions_Satisfied(t *testing.T) {
	reports := []solmgr.Report{
		report("solve-sub1", map[int]solmgr.TestGroupResult{
			1: group(verdict.OK),
			2: group(verdict.WrongAnswer),
		}),
		report("solve-sub2", map[int]solmgr.TestGroupResult{
			1: group(verdict.OK),
			2: group(verdict.OK),
		}),
	}
	predecessors := [][]int{{}, {}, {1}}

	warnings := checkDedicatedSolutions(reports, 3, predecessors)
	if len(warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", warnings)
	}
}

func TestCheckDedicatedSolutions_Missing(t *testing.T) {
	reports := []solmgr.Report{
		report("solve-all", map[int]solmgr.TestGroupResult{
			1: group(verdict.OK),
			2: group(verdict.OK),
		}),
	}
	predecessors := [][]int{{}, {}, {}}

	warnings := checkDedicatedSolutions(reports, 3, predecessors)
	if len(warnings) != 2 {
		t.Fatalf("expected 2 warnings (no dedicated solution for test 1 or 2), got %d: %v", len(warnings), warnings)
	}
}

func TestCheckJudgeLogHygiene(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.log")
	bad := filepath.Join(dir, "bad.log")
	empty := filepath.Join(dir, "empty.log")

	writeFile(t, good, "Output is correct\n")
	writeFile(t, bad, "line one\nline two\n")
	writeFile(t, empty, "")

	warnings := checkJudgeLogHygiene([]string{good, bad, empty})
	if len(warnings) != 2 {
		t.Fatalf("expected 2 warnings (bad, empty), got %d: %v", len(warnings), warnings)
	}
}

func TestEscalate(t *testing.T) {
	warnings := []error{&Warning{Msg: "x"}}
	if err := Escalate(warnings, false); err != nil {
		t.Fatalf("non-strict mode must not escalate, got %v", err)
	}
	if err := Escalate(warnings, true); err == nil {
		t.Fatalf("strict mode must escalate the first warning")
	}
	if err := Escalate(nil, true); err != nil {
		t.Fatalf("no warnings must never escalate, got %v", err)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
