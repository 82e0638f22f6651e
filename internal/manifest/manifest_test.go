package manifest

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleYAML = `
task_name: sum-pairs
type: batch
out_check: diff
tests:
  - name: "0"
    points: 0
    in_globs: ["tests/_inputs/*.in"]
  - name: "1"
    points: 50
    in_globs: ["*1*.in"]
  - name: "2"
    points: 50
    in_globs: ["*2*.in"]
    predecessors: ["1"]
solutions:
  - label: sol
    primary: true
    mask: "111"
    program:
      sources: ["sol/sol.py"]
generator:
  protocol: pisek-v1
  program:
    sources: ["gen/gen.py"]
`

func writeManifest(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "task.yaml")
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAndToTaskConfig(t *testing.T) {
	path := writeManifest(t, sampleYAML)
	m, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	cfg, err := m.ToTaskConfig()
	if err != nil {
		t.Fatalf("ToTaskConfig: %v", err)
	}
	if cfg.TaskName != "sum-pairs" {
		t.Errorf("TaskName = %q", cfg.TaskName)
	}
	if len(cfg.Tests) != 3 {
		t.Fatalf("want 3 tests, got %d", len(cfg.Tests))
	}
	if got := cfg.Tests[2].DirectPredecessors; len(got) != 1 || got[0] != 1 {
		t.Errorf("test 2 predecessors = %v, want [1]", got)
	}
	if cfg.PrimarySolution() == nil {
		t.Error("expected a primary solution")
	}
}

func TestToTaskConfigRejectsUnknownPredecessor(t *testing.T) {
	path := writeManifest(t, `
task_name: broken
type: batch
out_check: diff
tests:
  - name: "1"
    points: 100
    in_globs: ["*.in"]
    predecessors: ["ghost"]
solutions:
  - label: sol
    primary: true
    mask: "1"
    program: {sources: ["sol.py"]}
generator:
  protocol: pisek-v1
  program: {sources: ["gen.py"]}
`)
	m, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := m.ToTaskConfig(); err == nil {
		t.Error("expected an error for an unknown predecessor name")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected an error for a missing manifest file")
	}
}

func TestSolutionLookup(t *testing.T) {
	path := writeManifest(t, sampleYAML)
	m, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, ok := m.Solution("sol"); !ok {
		t.Error("expected to find solution \"sol\"")
	}
	if _, ok := m.Solution("missing"); ok {
		t.Error("did not expect to find solution \"missing\"")
	}
}
