package solmgr

import (
	"fmt"
	"sort"

	"github.com/taskforge/benchkeep/internal/buildjob"
	"github.com/taskforge/benchkeep/internal/buildjob/strategy"
	"github.com/taskforge/benchkeep/internal/pathmodel"
	"github.com/taskforge/benchkeep/internal/pipeline"
	"github.com/taskforge/benchkeep/internal/sandbox"
	"github.com/taskforge/benchkeep/internal/taskconfig"
	"github.com/taskforge/benchkeep/internal/verdict"
)

// Config describes everything one solution manager needs to schedule its
// solution's compile job and its per-test run/judge chains. Testcase
// resolution (generator output, glob matching) and judge construction are
// both supplied already-built, keeping the manager's own scope to
// scheduling, aggregation, cancellation and evaluation.
type Config struct {
	Label            string
	Solution         taskconfig.Solution
	Tests            []taskconfig.Test
	Plan             TestPlan
	BuildConfig      buildjob.Config
	TaskRoot         string
	Registry         *strategy.Registry
	JudgeFactory     JudgeFactory
	Runner           *sandbox.Runner
	Limits           sandbox.Limits
	ExpectedVerdicts map[string]verdict.Verdict // testcase name -> expected verdict, sample-verification mode only
	Interactive      bool                       // fuse run+judge into one InteractiveJob per testcase
}

// Manager implements pipeline.JobManager for one solution, grounded on
// spec.md §4.8.
type Manager struct {
	cfg Config
}

// NewManager constructs a solution manager from cfg.
func NewManager(cfg Config) *Manager { return &Manager{cfg: cfg} }

func (m *Manager) Name() string                          { return m.cfg.Label }
func (m *Manager) Prerequisites() []pipeline.Prerequisite { return nil }

// Spawn builds the compile job plus, for every test in predecessor-first
// order, a seed job, a chain of Run+Judge pairs over the test's own
// testcases, and a terminal group-final job.
func (m *Manager) Spawn(map[string]any) ([]pipeline.Job, error) {
	order, err := topoTestOrder(m.cfg.Tests)
	if err != nil {
		return nil, err
	}

	buildName := m.cfg.Label + ":build"
	jobs := []pipeline.Job{buildjob.New(buildName, m.cfg.BuildConfig, m.cfg.TaskRoot, m.cfg.Registry, nil)}

	finalName := make(map[int]string, len(order))
	for _, idx := range order {
		test := m.cfg.Tests[idx]

		seedName := fmt.Sprintf("%s:test:%d:seed", m.cfg.Label, idx)
		var seedPrereqs []pipeline.Prerequisite
		for _, p := range test.DirectPredecessors {
			seedPrereqs = append(seedPrereqs, pipeline.Prerequisite{
				Name: finalName[p], ResultName: fmt.Sprintf("pred:%d", p),
			})
		}
		jobs = append(jobs, newSeedJob(seedName, seedPrereqs))

		var maskChar byte
		if idx < len(m.cfg.Solution.Mask) {
			maskChar = m.cfg.Solution.Mask[idx]
		}

		chainName := seedName
		for i, tc := range m.cfg.Plan[idx] {
			judgeName := fmt.Sprintf("%s:test:%d:judge:%d", m.cfg.Label, idx, i)

			if m.cfg.Interactive {
				jobs = append(jobs, NewInteractiveJob(judgeName, buildName, chainName, maskChar, m.cfg.TaskRoot, m.cfg.Solution.RunRef, m.cfg.JudgeFactory, tc))
				chainName = judgeName
				continue
			}

			runName := fmt.Sprintf("%s:test:%d:run:%d", m.cfg.Label, idx, i)
			outputPath := pathmodel.OutputFile(m.cfg.Label, tc.Name).Abs(m.cfg.TaskRoot)
			stderrPath := pathmodel.SolutionLogFile(m.cfg.Label, tc.Name, m.cfg.Solution.RunRef).Abs(m.cfg.TaskRoot)

			jobs = append(jobs, NewRunJob(runName, m.cfg.TaskRoot, m.cfg.Solution.RunRef, buildName, chainName, maskChar, tc.InputPath, outputPath, stderrPath, m.cfg.Limits, m.cfg.Runner))

			var expected *verdict.Verdict
			if v, ok := m.cfg.ExpectedVerdicts[tc.Name]; ok {
				expected = &v
			}
			jobs = append(jobs, NewJudgeJob(judgeName, runName, chainName, maskChar, m.cfg.JudgeFactory, tc, expected))
			chainName = judgeName
		}

		final := fmt.Sprintf("%s:test:%d:final", m.cfg.Label, idx)
		jobs = append(jobs, newGroupFinalJob(final, idx, chainName, maskChar))
		finalName[idx] = final
	}

	return jobs, nil
}

// Report is a solution manager's published summary, consumed by
// internal/complete and by the CLI's reporting layer.
type Report struct {
	Label       string
	Groups      map[int]TestGroupResult
	TotalPoints float64
}

// Summarize folds every spawned job's terminal state into a Report and
// evaluates the solution's declared point expectation, per spec.md
// §4.8's final bullet.
func (m *Manager) Summarize(jobResults []pipeline.JobResult) (any, error) {
	groups := make(map[int]TestGroupResult)
	var firstFailure error

	for _, jr := range jobResults {
		tgr, ok := jr.Result.(TestGroupResult)
		if !ok {
			if jr.State == pipeline.Failed && firstFailure == nil {
				firstFailure = fmt.Errorf("%s: %v", jr.Name, jr.Err)
			}
			continue
		}
		groups[tgr.TestIdx] = tgr
	}
	if firstFailure != nil {
		return nil, firstFailure
	}

	var total float64
	for _, idx := range allTestIndices(groups) {
		total += groups[idx].Points
	}

	sol := m.cfg.Solution
	if sol.HasPoints && total != float64(sol.Points) {
		return nil, fmt.Errorf("solution %s: total points %v != declared %d", sol.Label, total, sol.Points)
	}
	if sol.HasPointsMin && total < float64(sol.PointsMin) {
		return nil, fmt.Errorf("solution %s: total points %v below declared minimum %d", sol.Label, total, sol.PointsMin)
	}
	if sol.HasPointsMax && total > float64(sol.PointsMax) {
		return nil, fmt.Errorf("solution %s: total points %v above declared maximum %d", sol.Label, total, sol.PointsMax)
	}

	return Report{Label: sol.Label, Groups: groups, TotalPoints: total}, nil
}

func allTestIndices(groups map[int]TestGroupResult) []int {
	out := make([]int, 0, len(groups))
	for idx := range groups {
		out = append(out, idx)
	}
	sort.Ints(out) // deterministic summation order
	return out
}

// topoTestOrder returns test indices in an order where every test follows
// all of its direct predecessors, matching taskconfig.Validate's own
// acyclicity check so a manager never needs to re-validate the graph.
func topoTestOrder(tests []taskconfig.Test) ([]int, error) {
	n := len(tests)
	state := make([]int, n) // 0 unvisited, 1 visiting, 2 done
	order := make([]int, 0, n)

	var visit func(i int) error
	visit = func(i int) error {
		switch state[i] {
		case 2:
			return nil
		case 1:
			return fmt.Errorf("cyclic test predecessors involving test %d", i)
		}
		state[i] = 1
		for _, p := range tests[i].DirectPredecessors {
			if err := visit(p); err != nil {
				return err
			}
		}
		state[i] = 2
		order = append(order, i)
		return nil
	}
	for i := range tests {
		if err := visit(i); err != nil {
			return nil, err
		}
	}
	return order, nil
}
