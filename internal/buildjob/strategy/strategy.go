// Package strategy provides pluggable build backends for buildjob.Job,
// grounded on the teacher's internal/runner.Runner interface: one small
// interface, one concrete type per backend, dispatched by name from a
// registry the same way internal/cli wires codex/claude/gemini/opencode
// runners.
package strategy

import "fmt"

// Strategy turns a set of staged sources into a runnable artifact.
type Strategy interface {
	// Name is the strategy tag used in config and CLI overrides.
	Name() string
	// Applicable reports whether this strategy can build the given set of
	// source paths (staged, relative to the workspace).
	Applicable(sources []string) bool
	// Build compiles or stages sources into workspace and returns the
	// path, relative to workspace, of the produced artifact. entrypoint
	// designates the file a multi-file script bundle should run; compiled
	// strategies ignore it.
	Build(workspace string, sources, extras []string, entrypoint string, compArgs []string) (artifact string, err error)
}

// Registry resolves a strategy by name, or picks the unique applicable one
// for "auto".
type Registry struct {
	strategies map[string]Strategy
	order      []string // registration order, used to break "auto" ties deterministically in error messages
}

// NewRegistry builds a registry from the given strategies.
func NewRegistry(strategies ...Strategy) *Registry {
	r := &Registry{strategies: make(map[string]Strategy, len(strategies))}
	for _, s := range strategies {
		r.strategies[s.Name()] = s
		r.order = append(r.order, s.Name())
	}
	return r
}

// Resolve returns the strategy for tag. When tag is "auto" (or empty), it
// returns the unique strategy whose Applicable(sources) is true; zero or
// two-or-more matches is an error.
func (r *Registry) Resolve(tag string, sources []string) (Strategy, error) {
	if tag != "" && tag != "auto" {
		s, ok := r.strategies[tag]
		if !ok {
			return nil, fmt.Errorf("unknown build strategy %q", tag)
		}
		return s, nil
	}

	var matched []Strategy
	for _, name := range r.order {
		s := r.strategies[name]
		if s.Applicable(sources) {
			matched = append(matched, s)
		}
	}
	switch len(matched) {
	case 0:
		return nil, fmt.Errorf("no build strategy applies to sources %v", sources)
	case 1:
		return matched[0], nil
	default:
		names := make([]string, len(matched))
		for i, s := range matched {
			names[i] = s.Name()
		}
		return nil, fmt.Errorf("ambiguous build strategy for sources %v: matches %v", sources, names)
	}
}
