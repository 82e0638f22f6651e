// Package manifest is the ambient, YAML-backed on-disk description of one
// contest task that a real CLI invocation loads before it can hand the
// pipeline its *taskconfig.TaskConfig. spec.md treats that loader as an
// external collaborator delivering an already-validated value; this
// package is the concrete shell around that boundary, grounded on the
// teacher's own YAML-backed config.Settings loading pattern
// (internal/config) rather than on anything in original_source/ — the
// wire format is new, the loading idiom is the teacher's.
package manifest

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/taskforge/benchkeep/internal/buildjob"
	"github.com/taskforge/benchkeep/internal/taskconfig"
)

// ProgramSpec describes one buildable program: a generator, a validator, a
// judge, or a solution.
type ProgramSpec struct {
	SourceGlobs []string `yaml:"sources"`
	Extras      []string `yaml:"extras,omitempty"`
	Strategy    string   `yaml:"strategy,omitempty"` // auto, python, shell, c, cpp, pascal
	Entrypoint  string   `yaml:"entrypoint,omitempty"`
	CompArgs    []string `yaml:"comp_args,omitempty"`
}

// BuildConfig converts s into the buildjob.Config used to compile it under
// programName.
func (s ProgramSpec) BuildConfig(programName string) buildjob.Config {
	return buildjob.Config{
		ProgramName: programName,
		SourceGlobs: s.SourceGlobs,
		Extras:      s.Extras,
		Strategy:    s.Strategy,
		Entrypoint:  s.Entrypoint,
		CompArgs:    s.CompArgs,
	}
}

// TestSpec is one test's on-disk description. Predecessors names other
// tests by their Name field rather than by index, so manifests stay
// reorderable without renumbering.
type TestSpec struct {
	Name         string   `yaml:"name"`
	Points       int      `yaml:"points"`
	InGlobs      []string `yaml:"in_globs"`
	Predecessors []string `yaml:"predecessors,omitempty"`
}

// SolutionSpec is one candidate solution's declared expectation plus the
// program that builds it.
type SolutionSpec struct {
	Label        string      `yaml:"label"`
	Program      ProgramSpec `yaml:"program"`
	Primary      bool        `yaml:"primary,omitempty"`
	Points       *int        `yaml:"points,omitempty"`
	PointsMin    *int        `yaml:"points_min,omitempty"`
	PointsMax    *int        `yaml:"points_max,omitempty"`
	Mask         string      `yaml:"mask"`
}

// GeneratorSpec names the generator program and the protocol it speaks.
type GeneratorSpec struct {
	Protocol string      `yaml:"protocol"` // opendata-v1, cms-old, pisek-v1
	Program  ProgramSpec `yaml:"program"`
}

// JudgeSpec configures the external judge program. Program/Kind are
// meaningful only when OutCheck is "judge"; IgnoreNewlines/IgnoreCase/
// FloatRelError/FloatAbsError are meaningful only when OutCheck is
// "tokens" or "shuffle" (both route through judge.Tokens; there is no
// separate shuffle judge).
type JudgeSpec struct {
	Program        ProgramSpec `yaml:"program"`
	Kind           string      `yaml:"kind,omitempty"` // opendata-v1 (default), cms-batch
	JudgeNeedsIn   bool        `yaml:"judge_needs_in,omitempty"`
	JudgeNeedsOut  bool        `yaml:"judge_needs_out,omitempty"`
	IgnoreNewlines bool        `yaml:"ignore_newlines,omitempty"`
	IgnoreCase     bool        `yaml:"ignore_case,omitempty"`
	FloatRelError  *float64    `yaml:"float_rel_error,omitempty"`
	FloatAbsError  *float64    `yaml:"float_abs_error,omitempty"`
}

// Manifest is the top-level task.yaml shape.
type Manifest struct {
	TaskName  string                    `yaml:"task_name"`
	Type      string                    `yaml:"type"`       // batch, interactive
	OutCheck  string                    `yaml:"out_check"`  // diff, tokens, shuffle, judge
	InFormat  string                    `yaml:"in_format,omitempty"`
	OutFormat string                    `yaml:"out_format,omitempty"`
	Tests     []TestSpec                `yaml:"tests"`
	Solutions []SolutionSpec            `yaml:"solutions"`
	Generator GeneratorSpec             `yaml:"generator"`
	Judge     JudgeSpec                 `yaml:"judge,omitempty"`
	Validator *ProgramSpec              `yaml:"validator,omitempty"`
	Limits    map[string]taskconfig.Limits `yaml:"limits,omitempty"`
}

// Load reads and parses a manifest from path. It does not validate
// cross-references (test predecessor names, mask lengths); call ToTaskConfig
// for that.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	return &m, nil
}

// ToTaskConfig resolves test-name predecessor references into indices and
// builds a *taskconfig.TaskConfig, calling Validate before returning it —
// the manifest's entire reason for existing is to produce the
// already-validated value the pipeline expects.
func (m *Manifest) ToTaskConfig() (*taskconfig.TaskConfig, error) {
	outCheck, err := parseOutCheck(m.OutCheck)
	if err != nil {
		return nil, err
	}
	taskType, err := parseTaskType(m.Type)
	if err != nil {
		return nil, err
	}

	byName := make(map[string]int, len(m.Tests))
	for i, t := range m.Tests {
		if _, dup := byName[t.Name]; dup {
			return nil, fmt.Errorf("manifest: duplicate test name %q", t.Name)
		}
		byName[t.Name] = i
	}

	tests := make([]taskconfig.Test, len(m.Tests))
	for i, t := range m.Tests {
		preds := make([]int, 0, len(t.Predecessors))
		for _, name := range t.Predecessors {
			idx, ok := byName[name]
			if !ok {
				return nil, fmt.Errorf("manifest: test %q: unknown predecessor %q", t.Name, name)
			}
			preds = append(preds, idx)
		}
		tests[i] = taskconfig.Test{
			Index:              i,
			Name:               t.Name,
			Points:             t.Points,
			InGlobs:            t.InGlobs,
			DirectPredecessors: preds,
		}
	}

	solutions := make([]taskconfig.Solution, len(m.Solutions))
	for i, s := range m.Solutions {
		sol := taskconfig.Solution{
			Label:   s.Label,
			RunRef:  s.Label,
			Primary: s.Primary,
			Mask:    s.Mask,
		}
		if s.Points != nil {
			sol.HasPoints = true
			sol.Points = *s.Points
		}
		if s.PointsMin != nil {
			sol.HasPointsMin = true
			sol.PointsMin = *s.PointsMin
		}
		if s.PointsMax != nil {
			sol.HasPointsMax = true
			sol.PointsMax = *s.PointsMax
		}
		solutions[i] = sol
	}

	inFormat, err := parseDataFormat(m.InFormat)
	if err != nil {
		return nil, err
	}
	outFormat, err := parseDataFormat(m.OutFormat)
	if err != nil {
		return nil, err
	}

	cfg := &taskconfig.TaskConfig{
		TaskName:  m.TaskName,
		Type:      taskType,
		OutCheck:  outCheck,
		Tests:     tests,
		Solutions: solutions,
		Limits:    m.Limits,
		InFormat:  inFormat,
		OutFormat: outFormat,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Solution looks up a solution spec by label.
func (m *Manifest) Solution(label string) (SolutionSpec, bool) {
	for _, s := range m.Solutions {
		if s.Label == label {
			return s, true
		}
	}
	return SolutionSpec{}, false
}

func parseTaskType(s string) (taskconfig.TaskType, error) {
	switch s {
	case "", "batch":
		return taskconfig.Batch, nil
	case "interactive":
		return taskconfig.Interactive, nil
	default:
		return 0, fmt.Errorf("manifest: unknown task type %q", s)
	}
}

func parseOutCheck(s string) (taskconfig.OutCheck, error) {
	switch s {
	case "", "diff":
		return taskconfig.CheckDiff, nil
	case "tokens":
		return taskconfig.CheckTokens, nil
	case "shuffle":
		return taskconfig.CheckShuffle, nil
	case "judge":
		return taskconfig.CheckJudge, nil
	default:
		return 0, fmt.Errorf("manifest: unknown out_check %q", s)
	}
}

func parseDataFormat(s string) (taskconfig.DataFormat, error) {
	switch s {
	case "", "text":
		return taskconfig.FormatText, nil
	case "strict-text":
		return taskconfig.FormatStrictText, nil
	case "binary":
		return taskconfig.FormatBinary, nil
	default:
		return 0, fmt.Errorf("manifest: unknown data format %q", s)
	}
}
