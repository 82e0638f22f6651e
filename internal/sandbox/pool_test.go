package sandbox

import (
	"context"
	"testing"
)

func TestWaitPoolFiresOnFirstExit(t *testing.T) {
	r := New()

	fast, err := r.Start(context.Background(), Spec{
		Executable: "sh",
		Argv:       []string{"-c", "exit 0"},
		Limits:     Limits{WallSeconds: 5},
	})
	if err != nil {
		t.Fatalf("Start fast: %v", err)
	}

	slow, err := r.Start(context.Background(), Spec{
		Executable: "sh",
		Argv:       []string{"-c", "sleep 0.3; exit 0"},
		Limits:     Limits{WallSeconds: 5},
	})
	if err != nil {
		t.Fatalf("Start slow: %v", err)
	}

	fired := 0
	results := WaitPool([]*Handle{fast, slow}, func() { fired++ })

	if fired != 1 {
		t.Errorf("onFirstExit fired %d times, want 1", fired)
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	for i, res := range results {
		if res.Kind != OK {
			t.Errorf("results[%d].Kind = %s, want OK (%s)", i, res.Kind, res.Status)
		}
	}
}

func TestHandlePidAndAlive(t *testing.T) {
	r := New()
	h, err := r.Start(context.Background(), Spec{
		Executable: "sh",
		Argv:       []string{"-c", "sleep 0.2"},
		Limits:     Limits{WallSeconds: 5},
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if h.Pid() <= 0 {
		t.Fatalf("Pid() = %d, want positive", h.Pid())
	}
	if !h.Alive() {
		t.Error("expected process to be alive immediately after start")
	}

	res := h.Wait()
	if res.Kind != OK {
		t.Errorf("Wait().Kind = %s, want OK", res.Kind)
	}
	if h.Alive() {
		t.Error("expected process to be dead after Wait")
	}
}
