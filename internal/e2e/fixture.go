// Package e2e drives full benchkeep pipeline runs against small on-disk
// task fixtures, exercising the properties spec.md §8 calls out end to
// end rather than at any single package's unit-test boundary.
package e2e

import (
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/taskforge/benchkeep/internal/manifest"
	"github.com/taskforge/benchkeep/internal/taskconfig"
)

// fixtureSolution names one buildable shell solution to stage.
type fixtureSolution struct {
	label   string
	script  string // shell body, without the shebang line
	primary bool
	points  *int
	minPts  *int
	maxPts  *int
	mask    string
}

// fixtureTest names one test group to declare in task.yaml.
type fixtureTest struct {
	name    string
	points  int
	inGlobs []string
}

// fixtureGenerator names a shell generator script to stage, speaking the
// opendata-v1 protocol (argv = [test_index, seed_hex], testcase on stdout).
type fixtureGenerator struct {
	script string // shell body, without the shebang line
}

// fixture describes everything writeFixture needs to stage a runnable task.
type fixture struct {
	outCheck  string
	tests     []fixtureTest
	solutions []fixtureSolution
	inputs    map[string]string // static input file name -> contents
	generator *fixtureGenerator
	limits    map[string]taskconfig.Limits // keyed "solution", "generator", "validator", "judge"
}

// writeFixture stages one task under t.TempDir() and returns its root.
func writeFixture(t *testing.T, f fixture) string {
	t.Helper()
	root := t.TempDir()

	if err := os.MkdirAll(filepath.Join(root, "tests", "_inputs"), 0o755); err != nil {
		t.Fatal(err)
	}
	for name, contents := range f.inputs {
		if err := os.WriteFile(filepath.Join(root, "tests", "_inputs", name), []byte(contents), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	for _, sol := range f.solutions {
		path := filepath.Join(root, sol.label+".sh")
		body := "#!/bin/sh\n" + sol.script
		if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
			t.Fatal(err)
		}
	}

	m := manifest.Manifest{
		TaskName: "fixture",
		Type:     "batch",
		OutCheck: f.outCheck,
		Generator: manifest.GeneratorSpec{
			Protocol: "opendata-v1",
		},
		Limits: f.limits,
	}

	if f.generator != nil {
		genPath := filepath.Join(root, "gen.sh")
		body := "#!/bin/sh\n" + f.generator.script
		if err := os.WriteFile(genPath, []byte(body), 0o755); err != nil {
			t.Fatal(err)
		}
		m.Generator.Program = manifest.ProgramSpec{
			SourceGlobs: []string{"gen.sh"},
			Strategy:    "shell",
		}
	}
	for _, test := range f.tests {
		m.Tests = append(m.Tests, manifest.TestSpec{
			Name:    test.name,
			Points:  test.points,
			InGlobs: test.inGlobs,
		})
	}
	for _, sol := range f.solutions {
		m.Solutions = append(m.Solutions, manifest.SolutionSpec{
			Label: sol.label,
			Program: manifest.ProgramSpec{
				SourceGlobs: []string{sol.label + ".sh"},
				Strategy:    "shell",
			},
			Primary:   sol.primary,
			Points:    sol.points,
			PointsMin: sol.minPts,
			PointsMax: sol.maxPts,
			Mask:      sol.mask,
		})
	}

	data, err := yaml.Marshal(&m)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "task.yaml"), data, 0o644); err != nil {
		t.Fatal(err)
	}

	return root
}

func intPtr(n int) *int { return &n }
