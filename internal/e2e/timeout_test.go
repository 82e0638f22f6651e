package e2e

import (
	"context"
	"testing"

	"github.com/taskforge/benchkeep/internal/cli"
	"github.com/taskforge/benchkeep/internal/taskconfig"
)

// TestTimeoutExpectedSucceeds is S3: a correct primary establishes the
// reference output, and a second solution sleeps past the test's
// wall-clock limit on its only input. The second solution's mask ("T")
// expects exactly that outcome and it declares zero points, so the run
// must still succeed.
func TestTimeoutExpectedSucceeds(t *testing.T) {
	root := writeFixture(t, fixture{
		outCheck: "diff",
		tests: []fixtureTest{
			{name: "samples", points: 10, inGlobs: []string{"01.in"}},
		},
		inputs: map[string]string{
			"01.in":  "1 2\n",
			"01.out": "3\n",
		},
		solutions: []fixtureSolution{
			{
				label:   "solve",
				script:  "read a b\necho $((a + b))\n",
				primary: true,
				points:  intPtr(10),
				mask:    "1",
			},
			{
				label:   "slow",
				script:  "sleep 2\nread a b\necho $((a + b))\n",
				points:  intPtr(0),
				mask:    "T",
			},
		},
		limits: map[string]taskconfig.Limits{
			"solution": {TimeSeconds: 1, ClockMultiplier: 1},
		},
	})

	if err := cli.Invoke(context.Background(), root, ".benchkeep.yml", cli.RunRequest{}); err != nil {
		t.Fatalf("run: %v", err)
	}
}
