package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/taskforge/benchkeep/internal/cache"
)

// fakeJob is a minimal Job used across tests: Run just calls a closure.
type fakeJob struct {
	GobCodec[string]
	name    string
	prereqs []Prerequisite
	run     func(results map[string]any) (string, error)
	calls   *int
}

func (j *fakeJob) Name() string                   { return j.name }
func (j *fakeJob) Prerequisites() []Prerequisite   { return j.prereqs }
func (j *fakeJob) CacheInput() cache.Input         { return cache.Input{Args: []string{j.name}} }
func (j *fakeJob) Run(_ context.Context, results map[string]any) (any, error) {
	if j.calls != nil {
		*j.calls++
	}
	return j.run(results)
}

func TestLinearChainPublishesNamedResults(t *testing.T) {
	p := New(false, nil)

	if err := p.AddJob(&fakeJob{name: "gen", run: func(map[string]any) (string, error) { return "hello", nil }}); err != nil {
		t.Fatal(err)
	}
	if err := p.AddJob(&fakeJob{
		name:    "consume",
		prereqs: []Prerequisite{{Name: "gen", ResultName: "genResult"}},
		run: func(results map[string]any) (string, error) {
			got, _ := results["genResult"].(string)
			return got + " world", nil
		},
	}); err != nil {
		t.Fatal(err)
	}

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	result, ok := p.Result("consume")
	if !ok || result != "hello world" {
		t.Fatalf("Result(consume) = %v, %v; want 'hello world', true", result, ok)
	}
}

func TestFailurePropagatesCancellation(t *testing.T) {
	p := New(false, nil)

	p.AddJob(&fakeJob{name: "root", run: func(map[string]any) (string, error) {
		return "", fmt.Errorf("boom")
	}})
	p.AddJob(&fakeJob{
		name:    "child",
		prereqs: []Prerequisite{{Name: "root"}},
		run:     func(map[string]any) (string, error) { return "never", nil },
	})
	p.AddJob(&fakeJob{name: "unrelated", run: func(map[string]any) (string, error) { return "ok", nil }})

	if err := p.Run(context.Background()); err == nil {
		t.Fatal("expected an error from the failing root job")
	}

	st, _ := p.State("child")
	if st != Cancelled {
		t.Errorf("child state = %s, want cancelled", st)
	}
	st, _ = p.State("unrelated")
	if st != Succeeded {
		t.Errorf("unrelated state = %s, want succeeded (verbose-by-default unrelated subgraph)", st)
	}
}

func TestFailFastStopsScheduling(t *testing.T) {
	p := New(true, nil)

	p.AddJob(&fakeJob{name: "root", run: func(map[string]any) (string, error) {
		return "", fmt.Errorf("boom")
	}})
	ran := false
	p.AddJob(&fakeJob{name: "sibling", run: func(map[string]any) (string, error) {
		ran = true
		return "ok", nil
	}})

	if err := p.Run(context.Background()); err == nil {
		t.Fatal("expected an error")
	}
	if ran {
		t.Error("fail-fast should stop the loop before an independent sibling runs")
	}
}

func TestAdmissionPredicateCancelsJob(t *testing.T) {
	p := New(false, nil)

	p.AddJob(&fakeJob{name: "root", run: func(map[string]any) (string, error) { return "skip-me", nil }})
	p.AddJob(&fakeJob{
		name: "gated",
		prereqs: []Prerequisite{{
			Name:       "root",
			ResultName: "r",
			Admission:  func(results map[string]any) bool { return results["r"] != "skip-me" },
		}},
		run: func(map[string]any) (string, error) { return "should not run", nil },
	})

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	st, _ := p.State("gated")
	if st != Cancelled {
		t.Errorf("gated state = %s, want cancelled", st)
	}
}

func TestCacheShortCircuitsSecondRun(t *testing.T) {
	dir := t.TempDir()
	store, err := cache.Open(filepath.Join(dir, "cache.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	calls := 0
	build := func() *fakeJob {
		return &fakeJob{name: "once", run: func(map[string]any) (string, error) { return "built", nil }, calls: &calls}
	}

	p1 := New(false, store)
	p1.AddJob(build())
	if err := p1.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Fatalf("calls after first run = %d, want 1", calls)
	}

	p2 := New(false, store)
	p2.AddJob(build())
	if err := p2.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("calls after second run = %d, want 1 (cache hit should skip Run)", calls)
	}
	result, _ := p2.Result("once")
	if result != "built" {
		t.Errorf("cached result = %v, want 'built'", result)
	}
}

// fakeManager spawns a fixed set of jobs and sums their string lengths.
type fakeManager struct {
	name    string
	prereqs []Prerequisite
	jobs    func() []Job
}

func (m *fakeManager) Name() string                 { return m.name }
func (m *fakeManager) Prerequisites() []Prerequisite { return m.prereqs }
func (m *fakeManager) Spawn(map[string]any) ([]Job, error) {
	return m.jobs(), nil
}
func (m *fakeManager) Summarize(results []JobResult) (any, error) {
	total := 0
	for _, r := range results {
		if r.State == Succeeded {
			s, _ := r.Result.(string)
			total += len(s)
		}
	}
	return total, nil
}

func TestManagerSpawnsAndSummarizes(t *testing.T) {
	p := New(false, nil)

	mgr := &fakeManager{
		name: "mgr",
		jobs: func() []Job {
			return []Job{
				&fakeJob{name: "mgr/a", run: func(map[string]any) (string, error) { return "ab", nil }},
				&fakeJob{name: "mgr/b", run: func(map[string]any) (string, error) { return "cde", nil }},
			}
		},
	}
	if err := p.AddManager(mgr); err != nil {
		t.Fatal(err)
	}

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	result, ok := p.Result("mgr")
	if !ok || result != 5 {
		t.Fatalf("Result(mgr) = %v, %v; want 5, true", result, ok)
	}
}

func TestManagerDependentSeesSummary(t *testing.T) {
	p := New(false, nil)

	mgr := &fakeManager{
		name: "mgr",
		jobs: func() []Job {
			return []Job{&fakeJob{name: "mgr/a", run: func(map[string]any) (string, error) { return "abcd", nil }}}
		},
	}
	p.AddManager(mgr)
	p.AddJob(&fakeJob{
		name:    "after",
		prereqs: []Prerequisite{{Name: "mgr", ResultName: "total"}},
		run: func(results map[string]any) (string, error) {
			n, _ := results["total"].(int)
			return fmt.Sprintf("total=%d", n), nil
		},
	})

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	result, _ := p.Result("after")
	if result != "total=4" {
		t.Errorf("Result(after) = %v, want total=4", result)
	}
}

func TestUnknownPrerequisiteFailsBuild(t *testing.T) {
	p := New(false, nil)
	p.AddJob(&fakeJob{name: "a", prereqs: []Prerequisite{{Name: "ghost"}}})
	if err := p.Build(); err == nil {
		t.Fatal("expected an UnknownPrerequisiteError")
	}
}

func TestCycleFailsBuild(t *testing.T) {
	p := New(false, nil)
	p.AddJob(&fakeJob{name: "a", prereqs: []Prerequisite{{Name: "b"}}})
	p.AddJob(&fakeJob{name: "b", prereqs: []Prerequisite{{Name: "a"}}})
	if err := p.Build(); err == nil {
		t.Fatal("expected a CycleError")
	}
}
