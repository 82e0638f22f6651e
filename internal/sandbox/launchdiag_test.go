package sandbox

import (
	"bytes"
	"io"
	"testing"
)

func TestLaunchDiagWriterDetectsKnownPattern(t *testing.T) {
	var buf bytes.Buffer
	d := newLaunchDiagWriter(&buf)

	msg := "sh: 1: ./a.out: not found: no such file or directory\n"
	if _, err := d.Write([]byte(msg)); err != nil {
		t.Fatal(err)
	}

	if d.Reason() != "missing executable or interpreter" {
		t.Errorf("Reason() = %q, want %q", d.Reason(), "missing executable or interpreter")
	}
	if buf.String() != msg {
		t.Errorf("passthrough mismatch: got %q", buf.String())
	}
}

func TestLaunchDiagWriterFirstMatchSticks(t *testing.T) {
	var buf bytes.Buffer
	d := newLaunchDiagWriter(&buf)

	_, _ = d.Write([]byte("permission denied\n"))
	_, _ = d.Write([]byte("exec format error\n"))

	if d.Reason() != "executable is not runnable" {
		t.Errorf("Reason() = %q, want the first match to stick", d.Reason())
	}
}

func TestLaunchDiagWriterNoMatch(t *testing.T) {
	d := newLaunchDiagWriter(io.Discard)
	_, _ = d.Write([]byte("ordinary program output\n"))
	if d.Reason() != "" {
		t.Errorf("Reason() = %q, want empty", d.Reason())
	}
}
