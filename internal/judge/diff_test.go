package judge

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/taskforge/benchkeep/internal/verdict"
)

func TestDiffAcceptsIdenticalFiles(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.out")
	b := filepath.Join(dir, "b.out")
	os.WriteFile(a, []byte("42\n"), 0o644)
	os.WriteFile(b, []byte("42\n"), 0o644)

	res, err := Diff{}.Evaluate(context.Background(), "", a, b)
	if err != nil {
		t.Fatal(err)
	}
	if res.Verdict != verdict.OK || res.Points != 1.0 {
		t.Errorf("res = %+v, want OK/1.0", res)
	}
}

func TestDiffRejectsDifferentFiles(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.out")
	b := filepath.Join(dir, "b.out")
	os.WriteFile(a, []byte("42\n"), 0o644)
	os.WriteFile(b, []byte("43\n"), 0o644)

	res, err := Diff{}.Evaluate(context.Background(), "", a, b)
	if err != nil {
		t.Fatal(err)
	}
	if res.Verdict != verdict.WrongAnswer || res.Points != 0 {
		t.Errorf("res = %+v, want WrongAnswer/0", res)
	}
}

func TestDiffIgnoresWhitespaceDifferences(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.out")
	b := filepath.Join(dir, "b.out")
	os.WriteFile(a, []byte("1  2   3\n"), 0o644)
	os.WriteFile(b, []byte("1 2 3\n"), 0o644)

	res, err := Diff{}.Evaluate(context.Background(), "", a, b)
	if err != nil {
		t.Fatal(err)
	}
	if res.Verdict != verdict.OK {
		t.Errorf("expected -Bbq to ignore whitespace, got %+v", res)
	}
}

func TestDiffFatalOnMissingFile(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.out")
	os.WriteFile(a, []byte("42\n"), 0o644)

	_, err := Diff{}.Evaluate(context.Background(), "", a, filepath.Join(dir, "missing.out"))
	var je *JudgeError
	if !errors.As(err, &je) {
		t.Errorf("err = %v, want a *JudgeError", err)
	}
}
