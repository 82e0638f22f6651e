package e2e

import (
	"context"
	"errors"
	"testing"

	"github.com/taskforge/benchkeep/internal/cli"
	"github.com/taskforge/benchkeep/internal/generator"
)

// TestNondeterministicGeneratorFails is S4: the generator ignores its seed
// argument and emits different bytes on every invocation. The resolver's
// determinism check must catch this on the first seeded testcase it
// produces and fail the run with a *generator.GenerationError, before any
// solution ever runs.
func TestNondeterministicGeneratorFails(t *testing.T) {
	root := writeFixture(t, fixture{
		outCheck: "diff",
		tests: []fixtureTest{
			{name: "samples", points: 0},
			{name: "random", points: 10},
		},
		generator: &fixtureGenerator{
			script: "od -An -N4 -tu4 /dev/urandom\n",
		},
	})

	err := cli.Invoke(context.Background(), root, ".benchkeep.yml", cli.RunRequest{})
	if err == nil {
		t.Fatal("expected a determinism failure")
	}
	var genErr *generator.GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("expected a *generator.GenerationError, got %v", err)
	}
}
