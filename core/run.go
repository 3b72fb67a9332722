package core

import (
	"context"
	"time"

	"github.com/hupe1980/gridsweep/logging"
)

// EntryStatus is the per-entry outcome of an orchestration run.
type EntryStatus string

const (
	// EntryIndexed marks an entry that executed and was committed to the index.
	EntryIndexed EntryStatus = "indexed"
	// EntryFailed marks an entry whose execution failed or that was never
	// dispatched before the run ended.
	EntryFailed EntryStatus = "failed"
	// EntrySkippedDuplicate marks an entry whose canonical key was already
	// indexed and that was therefore not re-run.
	EntrySkippedDuplicate EntryStatus = "skipped-duplicate"
)

// EntryReport pairs one collection entry with its terminal status. Reason
// carries diagnostic text for failures and the colliding key's origin for
// skips.
type EntryReport struct {
	Name   string      `json:"name"`
	Key    Key         `json:"key"`
	Status EntryStatus `json:"status"`
	Dir    string      `json:"dir,omitempty"`
	Reason string      `json:"reason,omitempty"`
}

// RunReport is the complete account of one orchestration run: exactly one
// entry report per collection entry, in collection order. No entry is ever
// silently dropped.
type RunReport struct {
	RunID    string        `json:"run_id"`
	Backend  string        `json:"backend"`
	Root     string        `json:"root"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
	Entries  []EntryReport `json:"entries"`
	Indexed  int           `json:"indexed"`
	Failed   int           `json:"failed"`
	Skipped  int           `json:"skipped"`
}

// RunOptions configures a single orchestration run.
type RunOptions struct {
	// Exec is handed to the backend unchanged: command, post command,
	// renderer, per-batch timeout, resource request.
	Exec ExecOptions

	// BatchSize groups this many entries per dispatched batch. Zero means
	// the engine default (one entry per batch; cluster profiles usually
	// raise it to keep per-job wall clock above a practical minimum).
	BatchSize int

	// Overwrite re-runs entries whose key is already indexed and replaces
	// their mapping instead of skipping them.
	Overwrite bool
}

// RunContext carries the execution scope of one orchestration run:
//
//   - The ambient cancellation Context
//   - Identifiers (RunID, backend name) and the collection root
//   - The options in effect and the single-flight gate held for the run
//
// Backends never see it; it is handed to engine callbacks so cross-cutting
// hooks can log and correlate without reaching into engine internals.
type RunContext struct {
	Context context.Context
	RunID   string
	Backend string
	Root    string
	Options RunOptions
	Gate    *RunGate
	Started time.Time

	*loggerAdapter
}

// NewRunContext constructs a RunContext stamped with the current time.
func NewRunContext(
	ctx context.Context,
	runID, backend, root string,
	opts RunOptions,
	gate *RunGate,
	logger logging.Logger,
) *RunContext {
	return &RunContext{
		Context:       ctx,
		RunID:         runID,
		Backend:       backend,
		Root:          root,
		Options:       opts,
		Gate:          gate,
		Started:       time.Now(),
		loggerAdapter: newLoggerAdapter(logger),
	}
}

// Done returns a channel closed when the underlying context is cancelled.
func (rc *RunContext) Done() <-chan struct{} { return rc.Context.Done() }

// Err returns the cancellation error (if any) from the underlying context.
func (rc *RunContext) Err() error { return rc.Context.Err() }

// Elapsed returns the time since the run started.
func (rc *RunContext) Elapsed() time.Duration { return time.Since(rc.Started) }
