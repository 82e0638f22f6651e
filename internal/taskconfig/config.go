// Package taskconfig holds the pre-validated, immutable description of one
// contest task: its tests, solutions, limits, and formats. Grounded on
// original_source/pisek/config/task_config.py's TaskConfig dataclass.
// Loading and validating the on-disk ini-like config file is out of scope
// here — the pipeline always receives an already-built *TaskConfig.
package taskconfig

import (
	"fmt"

	"github.com/taskforge/benchkeep/internal/sandbox"
)

// TaskType distinguishes batch tasks (one solution run per input) from
// interactive ones (solution and judge talk over fifos).
type TaskType int

const (
	Batch TaskType = iota
	Interactive
)

func (t TaskType) String() string {
	if t == Interactive {
		return "interactive"
	}
	return "batch"
}

// OutCheck selects how a solution's output is checked against expectation.
type OutCheck int

const (
	CheckDiff OutCheck = iota
	CheckTokens
	CheckShuffle
	CheckJudge
)

// DataFormat bounds how strictly input/output text is validated.
type DataFormat int

const (
	FormatText DataFormat = iota
	FormatStrictText
	FormatBinary
)

// Limits bounds one program kind (solution, generator, judge, validator).
type Limits struct {
	TimeSeconds       float64
	ClockMultiplier   float64
	ClockFloorSeconds float64
	MemoryKB          int64
	MaxProcesses      int
}

// ToSandbox converts a task's declared limits into the engine's sandbox
// limits. Wall-clock time is derived from CPU time the same way
// original_source/pisek/config/task_config.py's ProgramLimits.time_limit
// does: max(cpu_seconds * clock_multiplier, clock_floor_seconds).
func (l Limits) ToSandbox() sandbox.Limits {
	wall := l.TimeSeconds * l.ClockMultiplier
	if l.ClockFloorSeconds > wall {
		wall = l.ClockFloorSeconds
	}
	return sandbox.Limits{
		CPUSeconds:   l.TimeSeconds,
		WallSeconds:  wall,
		MemoryKB:     l.MemoryKB,
		MaxProcesses: l.MaxProcesses,
	}
}

// Test is one numbered test (also called a subtask). Test 0 conventionally
// holds samples.
type Test struct {
	Index              int
	Name               string
	Points             int
	InGlobs            []string
	DirectPredecessors []int
}

// Solution describes one candidate program and its declared expectation.
type Solution struct {
	Label        string
	RunRef       string // how to invoke it: a build program name
	Primary      bool
	HasPoints    bool
	Points       int
	HasPointsMin bool
	PointsMin    int
	HasPointsMax bool
	PointsMax    int
	Mask         string // length must equal len(Tests)
}

// TaskConfig is the complete, validated description of one task.
type TaskConfig struct {
	TaskName   string
	Type       TaskType
	OutCheck   OutCheck
	Tests      []Test
	Solutions  []Solution
	Limits     map[string]Limits // keyed by program kind: "solution", "generator", "judge", "validator"
	InFormat   DataFormat
	OutFormat  DataFormat

	allPredecessors [][]int
	allGlobs        [][]string
}

// Validate checks the structural invariants spec.md §3 requires and
// precomputes AllPredecessors/AllGlobs. It must be called once after
// construction (by the loader, or by tests building fixtures directly)
// before the config is handed to the pipeline.
func (c *TaskConfig) Validate() error {
	if err := c.checkPredecessorsAcyclicAndInRange(); err != nil {
		return err
	}
	c.computeClosures()

	primaries := 0
	var primary *Solution
	for i := range c.Solutions {
		s := &c.Solutions[i]
		if len(s.Mask) != len(c.Tests) {
			return &ConfigError{Msg: fmt.Sprintf("solution %q: mask length %d != %d tests", s.Label, len(s.Mask), len(c.Tests))}
		}
		for _, ch := range s.Mask {
			if !validMaskChars[byte(ch)] {
				return &ConfigError{Msg: fmt.Sprintf("solution %q: invalid mask character %q", s.Label, ch)}
			}
		}
		if s.Primary {
			primaries++
			primary = s
		}
	}
	if len(c.Solutions) > 0 && primaries != 1 {
		return &ConfigError{Msg: fmt.Sprintf("exactly one solution must be primary, found %d", primaries)}
	}
	if primary != nil {
		for _, ch := range primary.Mask {
			if ch != '1' {
				return &ConfigError{Msg: fmt.Sprintf("primary solution %q mask must be all-1, got %q", primary.Label, primary.Mask)}
			}
		}
	}
	return nil
}

var validMaskChars = map[byte]bool{
	'1': true, '0': true, 'X': true, 'P': true, 'W': true, '!': true, 'T': true,
}

func (c *TaskConfig) checkPredecessorsAcyclicAndInRange() error {
	n := len(c.Tests)
	for _, t := range c.Tests {
		for _, p := range t.DirectPredecessors {
			if p < 0 || p >= n {
				return &ConfigError{Msg: fmt.Sprintf("test %q: predecessor index %d out of range", t.Name, p)}
			}
		}
	}

	state := make([]int, n) // 0=unvisited, 1=visiting, 2=done
	var visit func(i int) error
	visit = func(i int) error {
		switch state[i] {
		case 2:
			return nil
		case 1:
			return &ConfigError{Msg: fmt.Sprintf("cyclic test predecessors involving test %d", i)}
		}
		state[i] = 1
		for _, p := range c.Tests[i].DirectPredecessors {
			if err := visit(p); err != nil {
				return err
			}
		}
		state[i] = 2
		return nil
	}
	for i := range c.Tests {
		if err := visit(i); err != nil {
			return err
		}
	}
	return nil
}

func (c *TaskConfig) computeClosures() {
	n := len(c.Tests)
	c.allPredecessors = make([][]int, n)
	c.allGlobs = make([][]string, n)

	var resolve func(i int)
	resolved := make([]bool, n)
	resolve = func(i int) {
		if resolved[i] {
			return
		}
		seen := map[int]bool{}
		globSeen := map[string]bool{}
		var globs []string
		for _, g := range c.Tests[i].InGlobs {
			if !globSeen[g] {
				globSeen[g] = true
				globs = append(globs, g)
			}
		}
		var preds []int
		for _, p := range c.Tests[i].DirectPredecessors {
			resolve(p)
			if !seen[p] {
				seen[p] = true
				preds = append(preds, p)
			}
			for _, pp := range c.allPredecessors[p] {
				if !seen[pp] {
					seen[pp] = true
					preds = append(preds, pp)
				}
			}
			for _, g := range c.allGlobs[p] {
				if !globSeen[g] {
					globSeen[g] = true
					globs = append(globs, g)
				}
			}
		}
		c.allPredecessors[i] = preds
		c.allGlobs[i] = globs
		resolved[i] = true
	}
	for i := range c.Tests {
		resolve(i)
	}
}

// AllPredecessors returns the transitive closure of test t's direct
// predecessors. Validate must have been called first.
func (c *TaskConfig) AllPredecessors(t int) []int {
	return c.allPredecessors[t]
}

// AllGlobs returns test t's own input globs unioned with every
// predecessor's AllGlobs. Validate must have been called first.
func (c *TaskConfig) AllGlobs(t int) []string {
	return c.allGlobs[t]
}

// PrimarySolution returns the unique primary solution, if any exist.
func (c *TaskConfig) PrimarySolution() *Solution {
	for i := range c.Solutions {
		if c.Solutions[i].Primary {
			return &c.Solutions[i]
		}
	}
	return nil
}
