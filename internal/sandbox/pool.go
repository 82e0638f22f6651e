package sandbox

import (
	"context"
	"time"
)

// Handle is a started sandboxed process, used by interactive (two-child)
// runs where both children must be launched before either is awaited. A
// goroutine started alongside the child reaps it via cmd.Wait as soon as
// it exits and closes done, so liveness is observed through the real wait
// syscall rather than polled with signal(0) (which a zombie still answers
// to until its parent reaps it). Grounded on the teacher's pool-wide
// single-fire callback idiom (internal/runner/idle.go, ratelimit.go): here
// the callback fires once across the whole pool instead of once per
// reader.
type Handle struct {
	spec   Spec
	cmd    *cmdHandle
	start  time.Time
	cancel context.CancelFunc
	done   chan struct{}
	result *Result
}

// Start launches spec without waiting for it to finish. A background
// goroutine reaps the child the moment it exits; the caller calls Wait to
// retrieve its Result (blocking only if the child hasn't exited yet).
func (r *Runner) Start(ctx context.Context, spec Spec) (*Handle, error) {
	wall := spec.Limits.WallSeconds
	if wall <= 0 {
		wall = 60
	}
	runCtx, cancel := context.WithTimeout(ctx, time.Duration(wall*float64(time.Second)))

	ch, err := startCmd(runCtx, spec)
	if err != nil {
		cancel()
		return nil, err
	}
	h := &Handle{spec: spec, cmd: ch, start: time.Now(), cancel: cancel, done: make(chan struct{})}
	go func() {
		h.result = h.cmd.wait(h.start)
		close(h.done)
	}()
	return h, nil
}

// Pid returns the child's process ID, valid after Start succeeds.
func (h *Handle) Pid() int { return h.cmd.cmd.Process.Pid }

// Alive reports whether the reaping goroutine started in Start has
// observed this process's exit yet.
func (h *Handle) Alive() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

// Wait blocks until the process exits and returns its Result. Safe to
// call more than once and from more than one goroutine; every caller
// observes the same Result once the reaping goroutine closes done.
func (h *Handle) Wait() *Result {
	<-h.done
	h.cancel()
	return h.result
}

// WaitPool blocks until at least one handle in the pool exits, invokes
// onFirstExit exactly once, then waits for and returns the results of
// every handle in pool order. Grounded on the spec's pool contract: "a
// callback fired exactly once when any member of the pool first observes
// its child terminated" (§4.2), used by the interactive judge run to tear
// down shared fifos as soon as either side finishes so the other does not
// deadlock on them. Exit detection comes from each Handle's own reaping
// goroutine (see Start), not polling, so it can't be fooled by a zombie
// still answering signal(0).
func WaitPool(handles []*Handle, onFirstExit func()) []*Result {
	firstExit := make(chan struct{}, len(handles))
	for _, h := range handles {
		h := h
		go func() {
			<-h.done
			firstExit <- struct{}{}
		}()
	}
	<-firstExit
	if onFirstExit != nil {
		onFirstExit()
	}

	results := make([]*Result, len(handles))
	for i, h := range handles {
		results[i] = h.Wait()
	}
	return results
}
