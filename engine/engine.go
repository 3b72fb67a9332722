package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/gridsweep/core"
	"github.com/hupe1980/gridsweep/logging"
)

// State names the phase an engine is in. Exactly one run moves through the
// phases at a time; a second Run call fails fast with ErrRunActive.
type State string

const (
	// StateIdle means no run is in progress.
	StateIdle State = "idle"
	// StatePreparing covers run ID minting, duplicate pre-scan and batch
	// forming.
	StatePreparing State = "preparing"
	// StateDispatching covers handing batches to the backend.
	StateDispatching State = "dispatching"
	// StateCommitting covers folding outcomes into the index.
	StateCommitting State = "committing"
)

// Config defines tuning parameters for the engine's run behavior.
//
// This configuration focuses on dispatch and durability:
//   - Batching: how many entries share one unit of backend work
//   - Timeouts: how long one batch may take
//   - Durability: whether partial progress is persisted per batch
//
// Per-run overrides (overwrite mode, exec options) travel in
// core.RunOptions instead of this struct, so one engine can serve runs with
// different commands and resource requests.
type Config struct {
	// BatchSize groups this many entries per dispatched batch. The default
	// of 1 suits the local backend; cluster profiles usually raise it so a
	// job's wall clock stays above the scheduler's practical minimum.
	BatchSize int

	// BatchTimeout bounds one batch's execution. Zero means no bound.
	// Timeouts are per batch, never per run.
	BatchTimeout time.Duration

	// PersistEachBatch writes the index after every committed batch
	// outcome, so a crash mid-run loses at most one batch of bookkeeping.
	// Disabling it trades crash safety for fewer writes on large sweeps.
	PersistEachBatch bool
}

// DefaultConfig provides production-ready defaults: one entry per batch, no
// timeout, index persisted after every batch.
var DefaultConfig = Config{
	BatchSize:        1,
	PersistEachBatch: true,
}

// Options configures an Engine instance using the functional options pattern.
//
// Example:
//
//	eng := engine.New(be, idx,
//	    func(o *engine.Options) {
//	        o.Config.BatchSize = 10
//	        o.Logger = logger
//	    },
//	)
type Options struct {
	// Config contains operational parameters for run behavior.
	// Defaults to DefaultConfig if not specified.
	Config Config

	// Logger provides structured logging for run progress.
	// Defaults to a no-op logger if nil.
	Logger logging.Logger

	// Callbacks receives lifecycle hooks around batches and commits.
	// Defaults to an empty manager if nil.
	Callbacks *CallbackManager
}

// Engine orchestrates one parameter sweep at a time: it consumes a
// ConfigCollection, dispatches its entries through an execution backend and
// commits the results into a ResultIndex.
//
// Responsibilities:
//   - Duplicate pre-scan: entries already indexed (or repeated within the
//     collection) are skipped before any compute is spent, unless the run
//     is in overwrite mode.
//   - Dispatch: entries are folded into batches and handed to the backend,
//     which streams outcomes back in completion order.
//   - Commit: a single reader goroutine-free loop folds outcomes into the
//     index as they arrive and persists after every batch, so partial
//     progress survives a crash.
//   - Accounting: the run report carries exactly one terminal status per
//     collection entry; nothing is dropped silently.
//
// Failure model: execution failures are recorded per entry and never abort
// the run; a failed index persist is structural and does abort it, returning
// the report accumulated so far together with an ErrIndexPersist-wrapped
// error. Canceling the run context stops launching new batches while
// in-flight work completes and is still committed.
type Engine struct {
	backend   core.Backend
	idx       core.ResultIndex
	config    Config
	logger    logging.Logger
	callbacks *CallbackManager
	gate      *core.RunGate

	mu    sync.RWMutex
	state State
}

// New creates an engine bound to one backend and one index.
//
// The engine does not take ownership of either: callers remain responsible
// for loading the index beforehand and for whatever lifecycle the backend
// needs. The returned engine is safe for concurrent use; concurrent Run
// calls are serialized by failing all but the first with ErrRunActive.
func New(backend core.Backend, idx core.ResultIndex, optFns ...func(o *Options)) *Engine {
	opts := Options{
		Config:    DefaultConfig,
		Logger:    logging.NoOpLogger{},
		Callbacks: NewCallbackManager(),
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Config.BatchSize < 1 {
		opts.Config.BatchSize = 1
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Callbacks == nil {
		opts.Callbacks = NewCallbackManager()
	}

	return &Engine{
		backend:   backend,
		idx:       idx,
		config:    opts.Config,
		logger:    opts.Logger,
		callbacks: opts.Callbacks,
		gate:      core.NewRunGate(),
		state:     StateIdle,
	}
}

// State returns the engine's current phase.
func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// Index returns the result index the engine commits into.
func (e *Engine) Index() core.ResultIndex { return e.idx }

// Backend returns the execution backend.
func (e *Engine) Backend() core.Backend { return e.backend }

func (e *Engine) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
	e.logger.Debug("Engine state changed", "state", string(s))
}

// runState tracks one Run invocation's mutable bookkeeping.
type runState struct {
	entries  []*core.ConfigEntry
	reports  []core.EntryReport
	position map[string]int // unit name -> collection position

	indexed int
	failed  int
	skipped int
}

// Run executes the collection on the engine's backend and commits results
// into its index.
//
// The run walks four phases. Preparing mints the run ID, pre-scans entries
// against the index and folds the remainder into batches. Dispatching hands
// the batches to the backend; a submission-time failure aborts the run with
// that error. Committing folds outcomes into the index in completion order,
// persisting after every batch; a commit-time duplicate downgrades the entry
// to skipped rather than failing it. Finalizing persists once more and
// returns to idle.
//
// An empty collection is a complete no-op: no directories, no index writes,
// an empty report and a nil error.
//
// The returned report lists every collection entry with exactly one of
// EntryIndexed, EntryFailed or EntrySkippedDuplicate. When the error is
// non-nil because persistence failed, the report still describes everything
// committed before the failure.
func (e *Engine) Run(ctx context.Context, col *core.ConfigCollection, optFns ...func(o *core.RunOptions)) (*core.RunReport, error) {
	if e.backend == nil || e.idx == nil {
		return nil, fmt.Errorf("engine requires a backend and an index")
	}
	if col == nil {
		return nil, fmt.Errorf("%w: nil collection", core.ErrInvalidParameter)
	}

	opts := core.RunOptions{BatchSize: e.config.BatchSize}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.BatchSize < 1 {
		opts.BatchSize = e.config.BatchSize
	}
	if opts.Exec.BatchTimeout == 0 {
		opts.Exec.BatchTimeout = e.config.BatchTimeout
	}

	if err := e.gate.Acquire(); err != nil {
		return nil, err
	}
	defer e.gate.Release()
	defer e.setState(StateIdle)

	started := time.Now()
	runID := uuid.NewString()
	root := e.idx.Root()

	report := &core.RunReport{
		RunID:   runID,
		Backend: e.backend.Name(),
		Root:    root,
		Started: started,
	}

	if col.Len() == 0 {
		e.logger.Info("Empty collection, nothing to run", "run_id", runID)
		return report, nil
	}

	e.setState(StatePreparing)
	e.idx.SetProvenance(core.Provenance{Library: "gridsweep", Version: core.Version, RunID: runID})
	if info := col.Info(); info != "" {
		e.idx.SetInfo(info)
	}

	st, batches := e.prepare(col, opts, root)
	runCtx := core.NewRunContext(ctx, runID, e.backend.Name(), root, opts, e.gate, e.logger)

	e.logger.Info("Run prepared",
		"run_id", runID,
		"entries", col.Len(),
		"skipped", st.skipped,
		"batches", len(batches),
		"batch_size", opts.BatchSize,
	)

	for i := range batches {
		if err := e.callbacks.ExecuteCallbacks(ctx, CallbackBeforeBatch, &CallbackContext{
			RunContext:   runCtx,
			Batch:        &batches[i],
			CallbackType: CallbackBeforeBatch,
		}); err != nil {
			return nil, fmt.Errorf("before-batch callback rejected batch %d: %w", batches[i].Seq, err)
		}
	}

	e.setState(StateDispatching)
	outcomes, err := e.backend.Execute(ctx, batches, opts.Exec)
	if err != nil {
		return nil, fmt.Errorf("dispatching %d batches: %w", len(batches), err)
	}

	e.setState(StateCommitting)
	commitErr := e.commit(ctx, runCtx, st, outcomes, opts.Overwrite)

	// dispatched entries that never produced an outcome still need a
	// terminal status
	for i := range st.reports {
		if st.reports[i].Status != "" {
			continue
		}
		st.reports[i].Status = core.EntryFailed
		st.failed++
		switch {
		case commitErr != nil:
			st.reports[i].Reason = "not committed: index persistence failed"
		case ctx.Err() != nil:
			st.reports[i].Reason = fmt.Sprintf("run canceled: %v", ctx.Err())
		default:
			st.reports[i].Reason = "no outcome received from backend"
		}
	}

	if commitErr == nil {
		if err := e.idx.Persist(); err != nil {
			commitErr = err
		}
	}

	report.Duration = time.Since(started)
	report.Entries = st.reports
	report.Indexed = st.indexed
	report.Failed = st.failed
	report.Skipped = st.skipped

	if commitErr != nil {
		return report, fmt.Errorf("run %s: %w", runID, commitErr)
	}

	e.logger.Info("Run completed",
		"run_id", runID,
		"indexed", report.Indexed,
		"failed", report.Failed,
		"skipped", report.Skipped,
		"duration_ms", report.Duration.Milliseconds(),
	)
	return report, nil
}

// prepare pre-scans the collection against the index and folds the entries
// that survive into batches. An entry is skipped when its canonical key is
// already indexed or appeared earlier in the same collection, unless the run
// is in overwrite mode.
func (e *Engine) prepare(col *core.ConfigCollection, opts core.RunOptions, root string) (*runState, []core.Batch) {
	entries := col.Entries()
	st := &runState{
		entries:  entries,
		reports:  make([]core.EntryReport, len(entries)),
		position: make(map[string]int, len(entries)),
	}

	seen := make(map[core.Key]int, len(entries))
	units := make([]core.Unit, 0, len(entries))

	for i, entry := range entries {
		name := col.Name(i)
		key := entry.Key()
		st.reports[i] = core.EntryReport{Name: name, Key: key}

		if !opts.Overwrite {
			if first, dup := seen[key]; dup {
				st.reports[i].Status = core.EntrySkippedDuplicate
				st.reports[i].Reason = fmt.Sprintf("duplicate of %s in the same collection", col.Name(first))
				st.skipped++
				continue
			}
			if e.idx.Has(key) {
				st.reports[i].Status = core.EntrySkippedDuplicate
				st.reports[i].Reason = "canonical key already indexed"
				st.skipped++
				continue
			}
		}

		seen[key] = i
		st.position[name] = i
		units = append(units, core.Unit{Name: name, Entry: entry, Dir: filepath.Join(root, name)})
	}

	return st, formBatches(units, opts.BatchSize)
}

// commit is the single reader folding outcomes into the index in completion
// order. After a persist failure it keeps draining the channel without
// committing, so backend goroutines never leak.
func (e *Engine) commit(ctx context.Context, runCtx *core.RunContext, st *runState, outcomes <-chan core.BatchOutcome, overwrite bool) error {
	var commitErr error

	for outcome := range outcomes {
		if err := e.callbacks.ExecuteCallbacks(ctx, CallbackAfterBatch, &CallbackContext{
			RunContext:   runCtx,
			Outcome:      &outcome,
			CallbackType: CallbackAfterBatch,
		}); err != nil {
			e.logger.Warn("After-batch callback failed", "batch", outcome.Seq, "error", err)
		}

		if commitErr != nil {
			continue
		}

		touched := e.commitOutcome(st, outcome, overwrite)

		if e.config.PersistEachBatch {
			if err := e.idx.Persist(); err != nil {
				commitErr = err
				e.logger.Error("Index persist failed, aborting commits", "batch", outcome.Seq, "error", err)
				if cbErr := e.callbacks.ExecuteCallbacks(ctx, CallbackOnError, &CallbackContext{
					RunContext:   runCtx,
					Outcome:      &outcome,
					Err:          err,
					CallbackType: CallbackOnError,
				}); cbErr != nil {
					e.logger.Warn("On-error callback failed", "error", cbErr)
				}
				continue
			}
		}

		if err := e.callbacks.ExecuteCallbacks(ctx, CallbackAfterCommit, &CallbackContext{
			RunContext:   runCtx,
			Outcome:      &outcome,
			Reports:      touched,
			CallbackType: CallbackAfterCommit,
		}); err != nil {
			e.logger.Warn("After-commit callback failed", "batch", outcome.Seq, "error", err)
		}
	}

	return commitErr
}

// commitOutcome folds one batch outcome into the index and the per-entry
// reports, returning the reports it touched.
func (e *Engine) commitOutcome(st *runState, outcome core.BatchOutcome, overwrite bool) []core.EntryReport {
	touched := make([]core.EntryReport, 0, len(outcome.Results))

	for _, res := range outcome.Results {
		i, ok := st.position[res.Name]
		if !ok {
			e.logger.Warn("Outcome for unknown unit", "unit", res.Name, "batch", outcome.Seq)
			continue
		}
		rep := &st.reports[i]
		if rep.Status != "" {
			continue
		}

		switch res.Status {
		case core.UnitSucceeded:
			var putOpts []func(o *core.PutOptions)
			if overwrite {
				putOpts = append(putOpts, core.WithOverwrite())
			}
			err := e.idx.Put(st.entries[i], res.Name, res.Dir, putOpts...)
			switch {
			case errors.Is(err, core.ErrDuplicateKey):
				rep.Status = core.EntrySkippedDuplicate
				rep.Reason = "canonical key already indexed at commit time"
				st.skipped++
			case err != nil:
				rep.Status = core.EntryFailed
				rep.Reason = fmt.Sprintf("index put: %v", err)
				st.failed++
			default:
				rep.Status = core.EntryIndexed
				rep.Dir = res.Dir
				st.indexed++
			}
		default:
			rep.Status = core.EntryFailed
			rep.Reason = failureReason(res)
			st.failed++
		}

		touched = append(touched, *rep)
	}

	return touched
}

// failureReason distills a unit result into report text.
func failureReason(res core.UnitResult) string {
	if res.Err != nil {
		return res.Err.Error()
	}
	if res.Diagnostic != "" {
		return res.Diagnostic
	}
	return fmt.Sprintf("unit %s failed with exit code %d", res.Name, res.ExitCode)
}

// formBatches chunks units in collection order into batches of the given
// size, numbering them sequentially from zero.
func formBatches(units []core.Unit, size int) []core.Batch {
	if size < 1 {
		size = 1
	}

	batches := make([]core.Batch, 0, (len(units)+size-1)/size)
	for start := 0; start < len(units); start += size {
		end := start + size
		if end > len(units) {
			end = len(units)
		}
		batches = append(batches, core.Batch{Seq: len(batches), Units: units[start:end]})
	}
	return batches
}
