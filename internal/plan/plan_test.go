package plan

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/taskforge/benchkeep/internal/generator"
	"github.com/taskforge/benchkeep/internal/pathmodel"
	"github.com/taskforge/benchkeep/internal/sandbox"
	"github.com/taskforge/benchkeep/internal/taskconfig"
)

func writeExecutable(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatal(err)
	}
}

func TestResolveStaticInputsOnly(t *testing.T) {
	root := t.TempDir()
	staticDir := pathmodel.New(pathmodel.StaticDir).Abs(root)
	if err := os.MkdirAll(staticDir, 0o755); err != nil {
		t.Fatal(err)
	}
	os.WriteFile(filepath.Join(staticDir, "01.in"), []byte("1 2\n"), 0o644)
	os.WriteFile(filepath.Join(staticDir, "02.in"), []byte("3 4\n"), 0o644)

	cfg := &taskconfig.TaskConfig{
		Tests: []taskconfig.Test{
			{Index: 0, Name: "0", Points: 0, InGlobs: []string{"tests/_inputs/*.in"}},
		},
	}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}

	r := &Resolver{TaskRoot: root, Config: cfg}
	plan, err := r.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(plan[0]) != 2 {
		t.Fatalf("want 2 testcases, got %d: %+v", len(plan[0]), plan[0])
	}
}

func TestUnusedStaticInputsFlagsUnmatchedFiles(t *testing.T) {
	root := t.TempDir()
	staticDir := pathmodel.New(pathmodel.StaticDir).Abs(root)
	if err := os.MkdirAll(staticDir, 0o755); err != nil {
		t.Fatal(err)
	}
	os.WriteFile(filepath.Join(staticDir, "01.in"), []byte("1\n"), 0o644)
	os.WriteFile(filepath.Join(staticDir, "stray.in"), []byte("2\n"), 0o644)
	os.WriteFile(filepath.Join(staticDir, "01.out"), []byte("1\n"), 0o644)

	cfg := &taskconfig.TaskConfig{
		Tests: []taskconfig.Test{
			{Index: 0, Name: "samples", Points: 0, InGlobs: []string{"01.in"}},
			{Index: 1, Name: "main", Points: 10, InGlobs: []string{"0?.in"}, DirectPredecessors: []int{0}},
		},
	}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}

	unused, err := UnusedStaticInputs(root, cfg)
	if err != nil {
		t.Fatalf("UnusedStaticInputs: %v", err)
	}
	// stray.in matches no glob closure; 01.out is an answer file, not an
	// input, and is never flagged.
	if len(unused) != 1 || unused[0] != "stray.in" {
		t.Errorf("unused = %v, want [stray.in]", unused)
	}
}

func TestResolveGeneratesMissingSeededInputs(t *testing.T) {
	root := t.TempDir()
	// A pisek-v1 generator: called with no args, lists testcases on stdout;
	// called with name+seed, prints the generated input.
	genScript := filepath.Join(root, "gen.sh")
	writeExecutable(t, genScript, `if [ "$#" -eq 0 ]; then
  echo "1"
else
  echo "$1 $2"
fi
`)

	gen, err := generator.New(generator.PisekV1, genScript, root, sandbox.New(), sandbox.Limits{WallSeconds: 5})
	if err != nil {
		t.Fatal(err)
	}

	cfg := &taskconfig.TaskConfig{
		Tests: []taskconfig.Test{
			{Index: 0, Name: "1", Points: 100, InGlobs: []string{"*.in"}},
		},
	}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}

	r := &Resolver{TaskRoot: root, Config: cfg, Gen: gen, GenLimits: sandbox.Limits{WallSeconds: 5}, Runner: sandbox.New()}

	plan, err := r.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(plan[0]) != 1 {
		t.Fatalf("want 1 testcase, got %d: %+v", len(plan[0]), plan[0])
	}
	if _, err := os.Stat(plan[0][0].InputPath); err != nil {
		t.Errorf("expected generated input to exist on disk: %v", err)
	}
}

func TestResolveSkipsGenerationWhenInputAlreadyExists(t *testing.T) {
	root := t.TempDir()
	genScript := filepath.Join(root, "gen.sh")
	// Generation must never run: exits nonzero if ever invoked with args.
	writeExecutable(t, genScript, `if [ "$#" -eq 0 ]; then
  echo "1"
else
  echo "should not run" >&2
  exit 1
fi
`)

	destDir := pathmodel.DataPath(pathmodel.GeneratedDir).Abs(root)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		t.Fatal(err)
	}
	seed, err := generator.DeriveSeed(0, 0, "1")
	if err != nil {
		t.Fatal(err)
	}
	staged := pathmodel.GeneratedInputFile("1", seed).Name()
	os.WriteFile(filepath.Join(destDir, staged), []byte("cached\n"), 0o644)

	gen, err := generator.New(generator.PisekV1, genScript, root, sandbox.New(), sandbox.Limits{WallSeconds: 5})
	if err != nil {
		t.Fatal(err)
	}

	cfg := &taskconfig.TaskConfig{
		Tests: []taskconfig.Test{
			{Index: 0, Name: "1", Points: 100, InGlobs: []string{"*.in"}},
		},
	}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}

	r := &Resolver{TaskRoot: root, Config: cfg, Gen: gen, GenLimits: sandbox.Limits{WallSeconds: 5}, Runner: sandbox.New()}
	plan, err := r.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	data, err := os.ReadFile(plan[0][0].InputPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "cached\n" {
		t.Errorf("expected the pre-existing input to be left untouched, got %q", data)
	}
}
