package sandbox

import (
	"io"
	"strings"
	"sync"
)

// launchPattern maps a stderr substring that typically comes from the
// shell/loader failing to start a program to a human-readable reason.
// Grounded on internal/runner/health.go's connectivityPattern table: same
// "wrap the writer, classify on known substrings" idiom, repointed from
// network-connectivity diagnostics to exec-launch diagnostics.
type launchPattern struct {
	pattern string
	reason  string
}

var launchPatterns = []launchPattern{
	{"no such file or directory", "missing executable or interpreter"},
	{"permission denied", "executable is not runnable"},
	{"exec format error", "executable has an unrecognized format"},
	{"text file busy", "executable is still being written"},
}

// launchDiagWriter wraps a stderr destination and, on first detection of a
// known launch-failure substring, records a friendlier reason that
// classifyFailure appends to a nonzero-exit Result's Status. A LaunchError
// (the child never started) does not carry it.
type launchDiagWriter struct {
	w        io.Writer
	mu       sync.Mutex
	detected bool
	reason   string
}

func newLaunchDiagWriter(w io.Writer) *launchDiagWriter {
	return &launchDiagWriter{w: w}
}

func (d *launchDiagWriter) Write(p []byte) (int, error) {
	n, err := d.w.Write(p)

	d.mu.Lock()
	if !d.detected {
		lower := strings.ToLower(string(p))
		for _, lp := range launchPatterns {
			if strings.Contains(lower, lp.pattern) {
				d.detected = true
				d.reason = lp.reason
				break
			}
		}
	}
	d.mu.Unlock()

	return n, err
}

func (d *launchDiagWriter) Reason() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reason
}
