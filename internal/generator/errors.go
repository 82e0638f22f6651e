package generator

import "fmt"

// GenerationError reports that a generator invocation failed before its
// output could be trusted as a testcase input: a refused listing, a
// malformed protocol line, or a failed determinism check. It fails only
// the one testcase; other testcases and other tests are unaffected.
type GenerationError struct {
	Testcase string
	Msg      string
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation error for %q: %s", e.Testcase, e.Msg)
}
