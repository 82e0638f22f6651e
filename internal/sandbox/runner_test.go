package sandbox

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestRunOK(t *testing.T) {
	dir := t.TempDir()
	outPath := filepath.Join(dir, "out.txt")

	r := New()
	res, err := r.Run(context.Background(), Spec{
		Executable: "echo",
		Argv:       []string{"hello"},
		Limits:     Limits{WallSeconds: 5},
		Stdout:     Stdio{Path: outPath},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Kind != OK {
		t.Fatalf("expected OK, got %s (%s)", res.Kind, res.Status)
	}

	got, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read stdout: %v", err)
	}
	if string(got) != "hello\n" {
		t.Errorf("stdout = %q, want %q", got, "hello\n")
	}
}

func TestRunNonzeroExit(t *testing.T) {
	r := New()
	res, err := r.Run(context.Background(), Spec{
		Executable: "sh",
		Argv:       []string{"-c", "exit 3"},
		Limits:     Limits{WallSeconds: 5},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Kind != RuntimeError {
		t.Fatalf("expected RuntimeError, got %s", res.Kind)
	}
	if res.ReturnCode != 3 {
		t.Errorf("ReturnCode = %d, want 3", res.ReturnCode)
	}
}

func TestRunWallTimeout(t *testing.T) {
	r := New()
	start := time.Now()
	res, err := r.Run(context.Background(), Spec{
		Executable: "sh",
		Argv:       []string{"-c", "sleep 30"},
		Limits:     Limits{WallSeconds: 0.2},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Kind != Timeout {
		t.Fatalf("expected Timeout, got %s (%s)", res.Kind, res.Status)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("took too long to report timeout: %v", elapsed)
	}
}

func TestRunCPUTimeout(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("no /bin/sh available")
	}
	r := New()
	res, err := r.Run(context.Background(), Spec{
		Executable: "sh",
		Argv:       []string{"-c", "while true; do :; done"},
		Limits:     Limits{CPUSeconds: 1, WallSeconds: 10},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Kind != Timeout {
		t.Fatalf("expected Timeout from cpu limit, got %s (%s)", res.Kind, res.Status)
	}
}

func TestRunMissingExecutable(t *testing.T) {
	r := New()
	_, err := r.Run(context.Background(), Spec{
		Executable: "definitely-not-a-real-binary-xyz",
		Limits:     Limits{WallSeconds: 5},
	})
	if err == nil {
		t.Fatal("expected a LaunchError, got nil")
	}
	var launchErr *LaunchError
	if !asLaunchError(err, &launchErr) {
		t.Fatalf("expected *LaunchError, got %T: %v", err, err)
	}
}

func TestRunStdinFromFile(t *testing.T) {
	dir := t.TempDir()
	inPath := filepath.Join(dir, "in.txt")
	outPath := filepath.Join(dir, "out.txt")
	if err := os.WriteFile(inPath, []byte("42\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := New()
	res, err := r.Run(context.Background(), Spec{
		Executable: "cat",
		Limits:     Limits{WallSeconds: 5},
		Stdin:      Stdio{Path: inPath},
		Stdout:     Stdio{Path: outPath},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Kind != OK {
		t.Fatalf("expected OK, got %s", res.Kind)
	}
	got, _ := os.ReadFile(outPath)
	if string(got) != "42\n" {
		t.Errorf("stdout = %q, want %q", got, "42\n")
	}
}

func TestRunParentContextCancel(t *testing.T) {
	// A parent-initiated cancellation (e.g. a pipeline abandoning the rest
	// of a job group) is not a limit the sandbox itself enforced, so it
	// surfaces as a killed-by-signal RuntimeError rather than Timeout.
	ctx, cancel := context.WithCancel(context.Background())
	r := New()

	done := make(chan struct{})
	var res *Result
	go func() {
		res, _ = r.Run(ctx, Spec{
			Executable: "sh",
			Argv:       []string{"-c", "sleep 30"},
			Limits:     Limits{WallSeconds: 30},
		})
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after parent context cancellation")
	}
	if res.Kind != RuntimeError {
		t.Errorf("expected RuntimeError after parent cancel, got %s (%s)", res.Kind, res.Status)
	}
}

// asLaunchError is a small helper so the test doesn't need errors.As'
// boilerplate inline.
func asLaunchError(err error, target **LaunchError) bool {
	le, ok := err.(*LaunchError)
	if !ok {
		return false
	}
	*target = le
	return true
}
