package core

import (
	"context"
	"errors"
	"testing"
)

func TestRunGate_SingleFlight(t *testing.T) {
	g := NewRunGate()

	if err := g.Acquire(); err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}
	if !g.Active() {
		t.Fatalf("gate should be active")
	}
	if err := g.Acquire(); !errors.Is(err, ErrRunActive) {
		t.Fatalf("second acquire should fail with ErrRunActive, got %v", err)
	}

	g.Release()

	if err := g.Acquire(); err != nil {
		t.Fatalf("acquire after release failed: %v", err)
	}
	if g.Runs() != 2 {
		t.Fatalf("runs = %d, want 2", g.Runs())
	}
}

func TestRunContext_Basics(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	rc := NewRunContext(ctx, "run-id", "local", "/tmp/sweep", RunOptions{}, NewRunGate(), nil)

	if rc.Logger() == nil {
		t.Fatalf("nil logger must be replaced with a no-op logger")
	}
	if rc.Err() != nil {
		t.Fatalf("fresh context reports error: %v", rc.Err())
	}

	cancel()
	<-rc.Done()

	if rc.Err() == nil {
		t.Fatalf("cancelled context must report an error")
	}
}

// recordingLogger captures messages so tests can assert log flow.
type recordingLogger struct {
	msgs []string
}

func (r *recordingLogger) Debug(msg string, args ...any) { r.msgs = append(r.msgs, "debug "+msg) }
func (r *recordingLogger) Info(msg string, args ...any)  { r.msgs = append(r.msgs, "info "+msg) }
func (r *recordingLogger) Warn(msg string, args ...any)  { r.msgs = append(r.msgs, "warn "+msg) }
func (r *recordingLogger) Error(msg string, args ...any) { r.msgs = append(r.msgs, "error "+msg) }

func TestRunContext_LogsThroughSuppliedLogger(t *testing.T) {
	rl := &recordingLogger{}
	rc := NewRunContext(context.Background(), "run-id", "local", "/tmp/sweep", RunOptions{}, NewRunGate(), rl)

	rc.LogInfo("dispatching", "batch", 0)
	rc.LogWarn("slow batch", "batch", 1)

	want := []string{"info dispatching", "warn slow batch"}
	if len(rl.msgs) != len(want) {
		t.Fatalf("captured %v, want %v", rl.msgs, want)
	}
	for i := range want {
		if rl.msgs[i] != want[i] {
			t.Fatalf("captured %v, want %v", rl.msgs, want)
		}
	}
}

func TestFailBatch_MarksEveryUnit(t *testing.T) {
	e1, _ := NewEntry(map[string]any{"x": 1})
	e2, _ := NewEntry(map[string]any{"x": 2})
	b := Batch{Seq: 3, Units: []Unit{
		{Name: "run0", Entry: e1, Dir: "/r/run0"},
		{Name: "run1", Entry: e2, Dir: "/r/run1"},
	}}

	boom := errors.New("submission refused")
	out := FailBatch(b, boom)

	if out.Seq != 3 || out.Err != boom {
		t.Fatalf("outcome header wrong: %+v", out)
	}
	if len(out.Results) != 2 {
		t.Fatalf("want 2 results, got %d", len(out.Results))
	}
	for _, r := range out.Results {
		if r.Status != UnitFailed || r.ExitCode != -1 || !errors.Is(r.Err, boom) {
			t.Fatalf("unit result not failed correctly: %+v", r)
		}
	}
}
