package judge

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/taskforge/benchkeep/internal/sandbox"
	"github.com/taskforge/benchkeep/internal/verdict"
)

func writeJudgeScript(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "judge.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCMSBatchFullPoints(t *testing.T) {
	dir := t.TempDir()
	script := writeJudgeScript(t, dir, `echo 1.0
echo "exact match" >&2
`)
	j := CMSBatch{
		Runner:     sandbox.New(),
		Executable: script,
		WorkDir:    dir,
		Limits:     sandbox.Limits{WallSeconds: 5},
		PointsPath: filepath.Join(dir, "points"),
		LogPath:    filepath.Join(dir, "log"),
	}
	res, err := j.Evaluate(context.Background(), "in", "correct", "sol")
	if err != nil {
		t.Fatal(err)
	}
	if res.Verdict != verdict.OK || res.Points != 1.0 || res.Message != "exact match" {
		t.Errorf("res = %+v", res)
	}
}

func TestCMSBatchPartialPoints(t *testing.T) {
	dir := t.TempDir()
	script := writeJudgeScript(t, dir, `echo 0.5
`)
	j := CMSBatch{
		Runner:     sandbox.New(),
		Executable: script,
		WorkDir:    dir,
		Limits:     sandbox.Limits{WallSeconds: 5},
		PointsPath: filepath.Join(dir, "points"),
		LogPath:    filepath.Join(dir, "log"),
	}
	res, err := j.Evaluate(context.Background(), "in", "correct", "sol")
	if err != nil {
		t.Fatal(err)
	}
	if res.Verdict != verdict.PartialOK || res.Points != 0.5 {
		t.Errorf("res = %+v", res)
	}
}

func TestCMSBatchZeroPoints(t *testing.T) {
	dir := t.TempDir()
	script := writeJudgeScript(t, dir, `echo 0
`)
	j := CMSBatch{
		Runner:     sandbox.New(),
		Executable: script,
		WorkDir:    dir,
		Limits:     sandbox.Limits{WallSeconds: 5},
		PointsPath: filepath.Join(dir, "points"),
		LogPath:    filepath.Join(dir, "log"),
	}
	res, err := j.Evaluate(context.Background(), "in", "correct", "sol")
	if err != nil {
		t.Fatal(err)
	}
	if res.Verdict != verdict.WrongAnswer {
		t.Errorf("res = %+v", res)
	}
}

func TestCMSBatchFatalOnMalformedPoints(t *testing.T) {
	dir := t.TempDir()
	script := writeJudgeScript(t, dir, `echo "not-a-number"
`)
	j := CMSBatch{
		Runner:     sandbox.New(),
		Executable: script,
		WorkDir:    dir,
		Limits:     sandbox.Limits{WallSeconds: 5},
		PointsPath: filepath.Join(dir, "points"),
		LogPath:    filepath.Join(dir, "log"),
	}
	_, err := j.Evaluate(context.Background(), "in", "correct", "sol")
	var je *JudgeError
	if !errors.As(err, &je) {
		t.Errorf("err = %v, want a *JudgeError", err)
	}
}

func TestCMSBatchFatalOnOutOfRangePoints(t *testing.T) {
	dir := t.TempDir()
	script := writeJudgeScript(t, dir, `echo 1.5
`)
	j := CMSBatch{
		Runner:     sandbox.New(),
		Executable: script,
		WorkDir:    dir,
		Limits:     sandbox.Limits{WallSeconds: 5},
		PointsPath: filepath.Join(dir, "points"),
		LogPath:    filepath.Join(dir, "log"),
	}
	_, err := j.Evaluate(context.Background(), "in", "correct", "sol")
	var je *JudgeError
	if !errors.As(err, &je) {
		t.Errorf("err = %v, want a *JudgeError", err)
	}
}
