package solmgr

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// InputRegistry deduplicates testcase-input generation across every
// solution manager sharing a pipeline run: the first manager to claim a
// testcase owns its generation job, and every later manager is handed a
// symlink into its own per-solution directory instead of re-generating
// the file. Grounded on spec.md §4.8's "input reuse" bullet.
type InputRegistry struct {
	mu    sync.Mutex
	owner map[string]string // testcase name -> path of the owning, already-generated file
}

// NewInputRegistry creates an empty registry.
func NewInputRegistry() *InputRegistry {
	return &InputRegistry{owner: make(map[string]string)}
}

// Claim registers name as generated at path if no manager has claimed it
// yet, reporting ownership either way. The first caller for a given name
// is the owner and should proceed with generation; later callers must not
// generate and should use LinkInto to obtain their own reference.
func (r *InputRegistry) Claim(name, path string) (owner bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.owner[name]; exists {
		return false
	}
	r.owner[name] = path
	return true
}

// LinkInto creates (or replaces) a symlink at linkPath pointing at the
// registered owner of name, for a manager that lost the Claim race.
func (r *InputRegistry) LinkInto(name, linkPath string) error {
	r.mu.Lock()
	target, ok := r.owner[name]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("input registry: %q was never claimed", name)
	}

	if err := os.MkdirAll(filepath.Dir(linkPath), 0o755); err != nil {
		return err
	}
	_ = os.Remove(linkPath)
	rel, err := filepath.Rel(filepath.Dir(linkPath), target)
	if err != nil {
		rel = target
	}
	return os.Symlink(rel, linkPath)
}
