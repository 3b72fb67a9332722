package testutil

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/hupe1980/gridsweep/core"
)

// Compile time check to ensure ScriptedBackend satisfies the core.Backend interface.
var _ core.Backend = (*ScriptedBackend)(nil)

// ScriptedBackend is a core.Backend test double whose per-batch behavior is
// scripted through a decide function. The default decision creates each
// unit's directory and reports success, mimicking a healthy run without
// spawning processes.
type ScriptedBackend struct {
	// BackendName overrides the reported name. Defaults to "scripted".
	BackendName string

	// Decide maps each dispatched batch to its outcome. Nil means
	// SucceedBatch.
	Decide func(batch core.Batch) core.BatchOutcome

	// SubmitErr, when set, is returned from Execute before any work starts.
	SubmitErr error

	mu       sync.Mutex
	executed []core.Batch
	opts     []core.ExecOptions
}

// Name identifies the backend in run reports.
func (s *ScriptedBackend) Name() string {
	if s.BackendName != "" {
		return s.BackendName
	}
	return "scripted"
}

// Execute records the dispatched batches and streams each batch's scripted
// outcome on the returned channel.
func (s *ScriptedBackend) Execute(ctx context.Context, batches []core.Batch, opts core.ExecOptions) (<-chan core.BatchOutcome, error) {
	if s.SubmitErr != nil {
		return nil, s.SubmitErr
	}

	s.mu.Lock()
	s.executed = append(s.executed, batches...)
	s.opts = append(s.opts, opts)
	s.mu.Unlock()

	decide := s.Decide
	if decide == nil {
		decide = SucceedBatch
	}

	out := make(chan core.BatchOutcome, len(batches))

	go func() {
		defer close(out)

		for _, batch := range batches {
			out <- decide(batch)
		}
	}()

	return out, nil
}

// Executed returns the batches Execute received, in submission order.
func (s *ScriptedBackend) Executed() []core.Batch {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Batch(nil), s.executed...)
}

// ExecOptions returns the options of every Execute call, in call order.
func (s *ScriptedBackend) ExecOptions() []core.ExecOptions {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.ExecOptions(nil), s.opts...)
}

// SucceedBatch builds the all-units-succeeded outcome for a batch, creating
// each unit's directory the way a real backend would.
func SucceedBatch(batch core.Batch) core.BatchOutcome {
	out := core.BatchOutcome{Seq: batch.Seq, Results: make([]core.UnitResult, 0, len(batch.Units))}

	for _, u := range batch.Units {
		if err := os.MkdirAll(u.Dir, 0o755); err != nil {
			panic(fmt.Sprintf("testutil: creating unit dir: %v", err))
		}
		out.Results = append(out.Results, core.UnitResult{
			Name:   u.Name,
			Key:    u.Entry.Key(),
			Dir:    u.Dir,
			Status: core.UnitSucceeded,
		})
	}

	return out
}

// FailUnit builds an outcome where the named unit failed with the given exit
// code and diagnostic while its batch siblings succeeded.
func FailUnit(batch core.Batch, unitName string, exitCode int, diagnostic string) core.BatchOutcome {
	out := SucceedBatch(batch)

	for i := range out.Results {
		if out.Results[i].Name != unitName {
			continue
		}
		out.Results[i].Status = core.UnitFailed
		out.Results[i].ExitCode = exitCode
		out.Results[i].Diagnostic = diagnostic
	}

	return out
}
