//go:build !windows

package judge

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/taskforge/benchkeep/internal/sandbox"
	"github.com/taskforge/benchkeep/internal/verdict"
)

func TestCMSCommunicationEchoesThroughFifos(t *testing.T) {
	dir := t.TempDir()
	sol := writeExitScript(t, dir, "solution.sh", `read line
echo "got:$line"
`)
	checker := writeExitScript(t, dir, "checker.sh", `echo "hello"
read line
echo "1.0" > "$POINTS"
echo "$line" >&2
`)

	pointsPath := filepath.Join(dir, "points")
	logPath := filepath.Join(dir, "log")

	j := CMSCommunication{
		Runner:       sandbox.New(),
		SolutionSpec: sandbox.Spec{Executable: sol, Dir: dir, Limits: sandbox.Limits{WallSeconds: 5}},
		CheckerSpec: sandbox.Spec{
			Executable: checker, Dir: dir, Limits: sandbox.Limits{WallSeconds: 5},
			Env: map[string]string{"POINTS": pointsPath},
		},
		FifoDir:    dir,
		PointsPath: pointsPath,
		LogPath:    logPath,
	}

	res, err := j.Evaluate(context.Background(), "", "", "")
	if err != nil {
		t.Fatal(err)
	}
	if res.Verdict != verdict.OK || res.Points != 1.0 {
		t.Errorf("res = %+v, want OK/1.0", res)
	}
}

func TestCMSCommunicationFifosAreRemovedAfterRun(t *testing.T) {
	dir := t.TempDir()
	sol := writeExitScript(t, dir, "solution.sh", `read line
echo done
`)
	checker := writeExitScript(t, dir, "checker.sh", `read line
echo "1.0" > "$POINTS"
echo "ok"
`)

	pointsPath := filepath.Join(dir, "points")
	j := CMSCommunication{
		Runner:       sandbox.New(),
		SolutionSpec: sandbox.Spec{Executable: sol, Dir: dir, Limits: sandbox.Limits{WallSeconds: 5}},
		CheckerSpec: sandbox.Spec{
			Executable: checker, Dir: dir, Limits: sandbox.Limits{WallSeconds: 5},
			Env: map[string]string{"POINTS": pointsPath},
		},
		FifoDir:    dir,
		PointsPath: pointsPath,
		LogPath:    filepath.Join(dir, "log"),
	}
	if _, err := j.Evaluate(context.Background(), "", "", ""); err != nil {
		t.Fatal(err)
	}

	for _, p := range []string{"sol-to-checker", "checker-to-sol"} {
		if _, err := os.Stat(filepath.Join(dir, p)); !os.IsNotExist(err) {
			t.Errorf("expected fifo %s to be removed after the run", p)
		}
	}
}
