package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/taskforge/benchkeep/internal/cache"
)

type itemKind int

const (
	kindJob itemKind = iota
	kindManager
)

// node is the pipeline's internal bookkeeping for one job or manager.
type node struct {
	name string
	kind itemKind

	job     Job
	manager JobManager

	prereqs        []Prerequisite
	pendingPrereqs int
	dependents     []string
	inbox          map[string]any

	state   State
	result  any
	failMsg string

	// manager-spawned-job bookkeeping
	parentManager string
	spawnedJobs   []string
	spawnPending  int
	jobResults    []JobResult
}

// Event is published to Pipeline's OnUpdate callback after every state
// transition, feeding a status sink (internal/reporter) without the
// pipeline itself knowing anything about rendering.
type Event struct {
	Name  string
	State State
	Err   error
}

// Pipeline is a single-threaded, dependency-ordered scheduler over jobs and
// job-managers. Construct with New, register items with AddJob/AddManager,
// call Build once, then Run.
type Pipeline struct {
	nodes map[string]*node
	order []string // Build's topological order; Run consumes a working copy

	deque        []string
	managerQueue []string

	failFast bool
	cache    *cache.Store
	env      *Env
	onUpdate func(Event)

	built   bool
	stopped bool
	failure error
}

// New creates an empty pipeline. store may be nil to disable caching
// (every job always runs) — used by callers exercising jobs in isolation.
func New(failFast bool, store *cache.Store) *Pipeline {
	return &Pipeline{
		nodes:    make(map[string]*node),
		failFast: failFast,
		cache:    store,
	}
}

// OnUpdate registers a callback invoked after every item's state changes.
func (p *Pipeline) OnUpdate(f func(Event)) { p.onUpdate = f }

// UseEnv attaches the run's environment value. Every configuration field
// recorded by env.Accessor is folded into each job's cache signature, so a
// changed limit or out-check mode invalidates prior results.
func (p *Pipeline) UseEnv(env *Env) { p.env = env }

// AddJob registers a job. Must be called before Build.
func (p *Pipeline) AddJob(j Job) error {
	return p.addNode(&node{name: j.Name(), kind: kindJob, job: j, prereqs: j.Prerequisites(), inbox: map[string]any{}})
}

// AddManager registers a job-manager. Must be called before Build.
func (p *Pipeline) AddManager(m JobManager) error {
	return p.addNode(&node{name: m.Name(), kind: kindManager, manager: m, prereqs: m.Prerequisites(), inbox: map[string]any{}})
}

func (p *Pipeline) addNode(n *node) error {
	if _, exists := p.nodes[n.name]; exists {
		return &DuplicateNameError{Name: n.name}
	}
	p.nodes[n.name] = n
	return nil
}

// addDynamicJob registers a job spawned at runtime by a manager. It is
// wired with an implicit dependency on its parent manager (already
// satisfied by construction) and pushed at the front of the deque.
func (p *Pipeline) addDynamicJob(j Job, parentManager string) (*node, error) {
	if _, exists := p.nodes[j.Name()]; exists {
		return nil, &DuplicateNameError{Name: j.Name()}
	}
	n := &node{
		name:          j.Name(),
		kind:          kindJob,
		job:           j,
		prereqs:       j.Prerequisites(),
		inbox:         map[string]any{},
		parentManager: parentManager,
	}
	p.nodes[n.name] = n

	for _, pr := range n.prereqs {
		dep, ok := p.nodes[pr.Name]
		if !ok {
			return nil, &UnknownPrerequisiteError{Item: n.name, Prerequisite: pr.Name}
		}
		switch dep.state {
		case Succeeded:
			if pr.ResultName != "" {
				n.inbox[pr.ResultName] = dep.result
			}
		case Failed, Cancelled:
			n.state = Cancelled
		default:
			n.pendingPrereqs++
			dep.dependents = append(dep.dependents, n.name)
		}
	}
	return n, nil
}

// Build computes the initial topological order (Kahn's algorithm, same
// shape as the teacher's internal/task/graph.go) and wires the reverse
// dependents edges. Call once, after every static AddJob/AddManager.
func (p *Pipeline) Build() error {
	for name, n := range p.nodes {
		for _, pr := range n.prereqs {
			dep, ok := p.nodes[pr.Name]
			if !ok {
				return &UnknownPrerequisiteError{Item: name, Prerequisite: pr.Name}
			}
			dep.dependents = append(dep.dependents, name)
			n.pendingPrereqs++
		}
	}

	order, err := p.topoSort()
	if err != nil {
		return err
	}
	p.order = order
	p.deque = append([]string(nil), order...)
	p.built = true
	return nil
}

func (p *Pipeline) topoSort() ([]string, error) {
	pending := make(map[string]int, len(p.nodes))
	names := make([]string, 0, len(p.nodes))
	for name, n := range p.nodes {
		pending[name] = n.pendingPrereqs
		names = append(names, name)
	}
	sort.Strings(names)

	var ready []string
	for _, name := range names {
		if pending[name] == 0 {
			ready = append(ready, name)
		}
	}

	var order []string
	for len(ready) > 0 {
		sort.Strings(ready)
		name := ready[0]
		ready = ready[1:]
		order = append(order, name)

		for _, dep := range p.nodes[name].dependents {
			pending[dep]--
			if pending[dep] == 0 {
				ready = append(ready, dep)
			}
		}
	}

	if len(order) != len(p.nodes) {
		var remaining []string
		for name, c := range pending {
			if c > 0 {
				remaining = append(remaining, name)
			}
		}
		sort.Strings(remaining)
		return nil, &CycleError{Remaining: remaining}
	}
	return order, nil
}

// Run drains the deque: pops the head, runs it (or skips it if already
// cancelled), finalizes it, and drains the manager queue. Returns the
// first failure's wrapped error in fail-fast mode, or the first failure
// seen overall in verbose mode (every independent item still runs).
func (p *Pipeline) Run(ctx context.Context) error {
	if !p.built {
		if err := p.Build(); err != nil {
			return err
		}
	}

	for len(p.deque) > 0 {
		if p.failFast && p.stopped {
			break
		}
		name := p.deque[0]
		p.deque = p.deque[1:]

		n := p.nodes[name]
		if n.state == Cancelled {
			p.notify(n, nil)
			continue
		}

		switch n.kind {
		case kindJob:
			p.runJob(ctx, n)
		case kindManager:
			p.runManager(n)
		}

		p.drainManagerQueue()
	}

	return p.failure
}

func (p *Pipeline) runJob(ctx context.Context, n *node) {
	for _, pr := range n.prereqs {
		if pr.Admission != nil && !pr.Admission(n.inbox) {
			p.cancelRecursive(n, "admission predicate declined")
			return
		}
	}

	n.state = Running
	p.notify(n, nil)

	in := n.job.CacheInput()
	if p.env != nil && p.env.TaskRoot != "" {
		// Jobs may declare task-root-relative files; hash them there, not
		// relative to the process's working directory.
		files := make([]string, len(in.Files))
		for i, f := range in.Files {
			if !filepath.IsAbs(f) {
				f = filepath.Join(p.env.TaskRoot, f)
			}
			files[i] = f
		}
		in.Files = files
	}
	in.Prereqs = mergeMaps(in.Prereqs, n.inbox)
	if p.env != nil && p.env.Accessor != nil {
		in.Env = mergeEnv(in.Env, p.env.Accessor.Accessed())
	}

	sig, sigErr := cache.Compute(in)
	if sigErr != nil {
		p.finishJob(n, nil, sigErr)
		return
	}

	if p.cache != nil {
		if stored, ok, lookupErr := p.cache.Lookup(n.name, sig); lookupErr == nil && ok {
			result, decErr := n.job.DecodeResult(stored)
			if decErr == nil {
				p.finishJob(n, result, nil)
				return
			}
		}
	}

	result, err := n.job.Run(ctx, n.inbox)
	if err != nil {
		p.finishJob(n, nil, err)
		return
	}

	if p.cache != nil {
		// Recompute the signature after the run: the entry must reflect
		// file contents as they were at run time, and a file deleted
		// mid-run fails the write (the job re-runs next time) without
		// failing the job itself.
		if storeSig, storeErr := cache.Compute(in); storeErr == nil {
			if encoded, encErr := n.job.EncodeResult(result); encErr == nil {
				p.cache.Put(n.name, storeSig, encoded)
			}
		}
	}

	p.finishJob(n, result, nil)
}

func (p *Pipeline) finishJob(n *node, result any, err error) {
	if err != nil {
		n.state = Failed
		n.failMsg = err.Error()
		p.notify(n, err)
		p.recordFailure(n, err)
		p.cancelDependents(n)
	} else {
		n.state = Succeeded
		n.result = result
		p.notify(n, nil)
		p.publishToDependents(n)
	}

	if n.parentManager != "" {
		mgr := p.nodes[n.parentManager]
		mgr.jobResults = append(mgr.jobResults, JobResult{Name: n.name, State: n.state, Result: n.result, Err: err})
		mgr.spawnPending--
	}
}

func (p *Pipeline) runManager(n *node) {
	n.state = Running
	p.notify(n, nil)

	jobs, err := n.manager.Spawn(n.inbox)
	if err != nil {
		n.state = Failed
		n.failMsg = err.Error()
		p.notify(n, err)
		p.recordFailure(n, err)
		p.cancelDependents(n)
		return
	}

	n.spawnPending = len(jobs)
	if len(jobs) == 0 {
		p.managerQueue = append(p.managerQueue, n.name)
		return
	}

	names := make([]string, 0, len(jobs))
	for _, j := range jobs {
		child, err := p.addDynamicJob(j, n.name)
		if err != nil {
			n.state = Failed
			n.failMsg = err.Error()
			p.notify(n, err)
			p.recordFailure(n, err)
			p.cancelDependents(n)
			return
		}
		n.spawnedJobs = append(n.spawnedJobs, child.name)
		names = append(names, child.name)
	}

	p.deque = append(append([]string(nil), names...), p.deque...)
	p.managerQueue = append(p.managerQueue, n.name)
}

// drainManagerQueue finalizes every manager at the front of the queue
// whose spawned jobs have all reached a terminal state, in order.
func (p *Pipeline) drainManagerQueue() {
	for len(p.managerQueue) > 0 {
		name := p.managerQueue[0]
		n := p.nodes[name]
		if n.spawnPending > 0 {
			return
		}
		p.managerQueue = p.managerQueue[1:]

		summary, err := n.manager.Summarize(n.jobResults)
		if err != nil {
			n.state = Failed
			n.failMsg = err.Error()
			p.notify(n, err)
			p.recordFailure(n, err)
			p.cancelDependents(n)
			continue
		}
		n.state = Succeeded
		n.result = summary
		p.notify(n, nil)
		p.publishToDependents(n)
	}
}

func (p *Pipeline) publishToDependents(n *node) {
	for _, depName := range n.dependents {
		dep := p.nodes[depName]
		if dep.state == Cancelled {
			continue
		}
		for _, pr := range dep.prereqs {
			if pr.Name == n.name && pr.ResultName != "" {
				dep.inbox[pr.ResultName] = n.result
			}
		}
		dep.pendingPrereqs--
	}
}

func (p *Pipeline) cancelDependents(n *node) {
	for _, depName := range n.dependents {
		p.cancelRecursive(p.nodes[depName], fmt.Sprintf("prerequisite %q failed", n.name))
	}
}

func (p *Pipeline) cancelRecursive(n *node, reason string) {
	if n.state == Cancelled || n.state == Succeeded || n.state == Failed {
		return
	}
	n.state = Cancelled
	n.failMsg = reason
	p.notify(n, nil)
	if n.parentManager != "" {
		mgr := p.nodes[n.parentManager]
		mgr.jobResults = append(mgr.jobResults, JobResult{Name: n.name, State: Cancelled})
		mgr.spawnPending--
	}
	for _, depName := range n.dependents {
		p.cancelRecursive(p.nodes[depName], reason)
	}
}

func (p *Pipeline) recordFailure(n *node, err error) {
	wrapped := &ItemError{Name: n.name, Err: err}
	if p.failure == nil {
		p.failure = wrapped
	}
	if p.failFast {
		p.stopped = true
	}
}

func (p *Pipeline) notify(n *node, err error) {
	if p.onUpdate != nil {
		p.onUpdate(Event{Name: n.name, State: n.state, Err: err})
	}
}

// State reports a named item's current state, mainly for tests and the
// status sink's initial render.
func (p *Pipeline) State(name string) (State, bool) {
	n, ok := p.nodes[name]
	if !ok {
		return 0, false
	}
	return n.state, true
}

// Result returns a named item's published result, if it succeeded.
func (p *Pipeline) Result(name string) (any, bool) {
	n, ok := p.nodes[name]
	if !ok || n.state != Succeeded {
		return nil, false
	}
	return n.result, true
}

func mergeEnv(base, extra map[string]string) map[string]string {
	if len(extra) == 0 {
		return base
	}
	out := make(map[string]string, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

func mergeMaps(base map[string]any, extra map[string]any) map[string]any {
	if len(extra) == 0 {
		return base
	}
	out := make(map[string]any, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
