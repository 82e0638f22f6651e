//go:build windows

package judge

import (
	"context"
	"fmt"

	"github.com/taskforge/benchkeep/internal/sandbox"
)

// CMSCommunication is unsupported on Windows: the protocol requires named
// pipes created with syscall.Mkfifo, which has no Windows equivalent.
type CMSCommunication struct {
	Runner       *sandbox.Runner
	SolutionSpec sandbox.Spec
	CheckerSpec  sandbox.Spec
	FifoDir      string
	PointsPath   string
	LogPath      string
}

func (j CMSCommunication) Evaluate(_ context.Context, _, _, _ string) (Result, error) {
	return Result{}, fmt.Errorf("interactive (cms-communication) judging is not supported on windows")
}
