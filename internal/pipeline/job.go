// Package pipeline is the generic dependency-ordered scheduler described in
// spec.md §4.4: a single-threaded deque of jobs and job-managers, backed by
// the content-addressed cache package, with recursive cancellation on
// failure. Grounded on the teacher's internal/task/graph.go (topological
// Kahn's-algorithm sort) and internal/task/scheduler.go (OnUpdate
// notification callback), reshaped from parallel-worker dispatch into the
// spec's single-threaded cooperative model — parallelism is confined to
// the sandbox runner (internal/sandbox).
package pipeline

import (
	"bytes"
	"context"
	"encoding/gob"

	"github.com/taskforge/benchkeep/internal/cache"
)

// State is a pipeline item's lifecycle stage. Transitions are monotone
// except that cancellation can preempt InQueue from any reachable state.
type State int

const (
	InQueue State = iota
	Running
	Succeeded
	Failed
	Cancelled
)

func (s State) String() string {
	switch s {
	case InQueue:
		return "in_queue"
	case Running:
		return "running"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Prerequisite names another pipeline item this one depends on. ResultName,
// when non-empty, causes the predecessor's result to be published into the
// dependent's results map under that name before it runs, and folds it
// into the dependent's cache signature. An empty ResultName imposes
// ordering only. Admission, when non-nil, is evaluated once the
// predecessor succeeds; a false result cancels this item instead of
// running it — used for conditional scheduling (e.g. "only judge an
// output if the solution run itself succeeded").
type Prerequisite struct {
	Name       string
	ResultName string
	Admission  func(results map[string]any) bool
}

// Job is one unit of cacheable work. CacheInput must return everything the
// job itself contributes to its signature (positional/keyword args,
// accessed env, accessed files); the pipeline fills in Prereqs from named
// Prerequisite results automatically.
type Job interface {
	Name() string
	Prerequisites() []Prerequisite
	CacheInput() cache.Input
	Run(ctx context.Context, results map[string]any) (any, error)
	EncodeResult(result any) ([]byte, error)
	DecodeResult(data []byte) (any, error)
}

// JobResult is what a JobManager sees for each job it spawned, regardless
// of outcome, so it can aggregate successes alongside failures (e.g. the
// solution manager's per-test min/max aggregation).
type JobResult struct {
	Name   string
	State  State
	Result any
	Err    error
}

// JobManager produces a batch of jobs once its own prerequisites are
// satisfied, then — once every spawned job reaches a terminal state —
// folds their results into a single summary result published to its own
// dependents under its name.
type JobManager interface {
	Name() string
	Prerequisites() []Prerequisite
	Spawn(results map[string]any) ([]Job, error)
	Summarize(jobResults []JobResult) (any, error)
}

// GobCodec implements Job's EncodeResult/DecodeResult for a concrete
// result type T via encoding/gob, so individual job types do not need to
// hand-write serialization. Embed it in a job struct:
//
//	type runJob struct{ pipeline.GobCodec[RunResult]; ... }
type GobCodec[T any] struct{}

func (GobCodec[T]) EncodeResult(result any) ([]byte, error) {
	var buf bytes.Buffer
	v, _ := result.(T)
	if err := gob.NewEncoder(&buf).Encode(&v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (GobCodec[T]) DecodeResult(data []byte) (any, error) {
	var v T
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}
