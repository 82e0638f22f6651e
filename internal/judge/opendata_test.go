package judge

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/taskforge/benchkeep/internal/sandbox"
	"github.com/taskforge/benchkeep/internal/verdict"
)

func writeExitScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestOpendataV1OKExitCode(t *testing.T) {
	dir := t.TempDir()
	script := writeExitScript(t, dir, "judge.sh", `cat >/dev/null
exit 0
`)
	j := OpendataV1{Runner: sandbox.New(), Executable: script, WorkDir: dir, Limits: sandbox.Limits{WallSeconds: 5}, TestIdx: 1, Seed: 7}
	solOut := filepath.Join(dir, "sol.out")
	os.WriteFile(solOut, []byte("42\n"), 0o644)

	res, err := j.Evaluate(context.Background(), "in", "correct", solOut)
	if err != nil {
		t.Fatal(err)
	}
	if res.Verdict != verdict.OK {
		t.Errorf("res = %+v, want OK", res)
	}
}

func TestOpendataV1WrongAnswerExitCode(t *testing.T) {
	dir := t.TempDir()
	script := writeExitScript(t, dir, "judge.sh", `cat >/dev/null
exit 1
`)
	j := OpendataV1{Runner: sandbox.New(), Executable: script, WorkDir: dir, Limits: sandbox.Limits{WallSeconds: 5}, TestIdx: 1, Seed: 7}
	solOut := filepath.Join(dir, "sol.out")
	os.WriteFile(solOut, []byte("42\n"), 0o644)

	res, err := j.Evaluate(context.Background(), "in", "correct", solOut)
	if err != nil {
		t.Fatal(err)
	}
	if res.Verdict != verdict.WrongAnswer {
		t.Errorf("res = %+v, want WrongAnswer", res)
	}
}

func TestOpendataV1PassesTestInputOutputEnv(t *testing.T) {
	dir := t.TempDir()
	script := writeExitScript(t, dir, "judge.sh", `cat >/dev/null
if [ "$TEST_INPUT" != "the-input" ] || [ "$TEST_OUTPUT" != "the-output" ]; then
  exit 2
fi
exit 0
`)
	inPath := "the-input"
	outPath := "the-output"
	j := OpendataV1{
		Runner: sandbox.New(), Executable: script, WorkDir: dir, Limits: sandbox.Limits{WallSeconds: 5},
		TestIdx: 1, Seed: 7, JudgeNeedsIn: true, JudgeNeedsOut: true,
	}
	solOut := filepath.Join(dir, "sol.out")
	os.WriteFile(solOut, []byte("42\n"), 0o644)

	res, err := j.Evaluate(context.Background(), inPath, outPath, solOut)
	if err != nil {
		t.Fatal(err)
	}
	if res.Verdict != verdict.OK {
		t.Errorf("res = %+v, want OK (env vars not threaded through)", res)
	}
}
