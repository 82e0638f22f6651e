package pipeline

import (
	"github.com/taskforge/benchkeep/internal/taskconfig"
)

// Env is the run's environment value, built once at CLI startup and
// threaded explicitly through the pipeline — job code never reads a
// package-level var. It carries the task root, the config accessor and the
// color and strictness settings; the pipeline lock and the cache store are
// not part of it (the run holds the lock itself and hands the store to New).
type Env struct {
	TaskRoot string
	Accessor *taskconfig.Accessor
	Color    bool
	Strict   bool
}
