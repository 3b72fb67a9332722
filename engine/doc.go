// Package engine implements the orchestration layer for GridSweep.
//
// The Engine is the coordination hub that turns a validated ConfigCollection
// into committed results: it pre-scans entries against the index, folds the
// survivors into batches, hands the batches to an execution backend and
// commits the streamed outcomes into a ResultIndex. It bridges the gap
// between high-level sweep definitions and low-level process execution.
//
// # Core Responsibilities
//
// Duplicate Avoidance:
//   - Canonical-key pre-scan against the index before any compute is spent
//   - In-collection duplicate detection with a pointer to the first occurrence
//   - Overwrite mode for intentional re-runs
//
// Dispatch Orchestration:
//   - Collection-order batching with a configurable batch size
//   - Single-flight gating so exactly one run mutates the index at a time
//   - Context-aware cancellation that stops launches but commits in-flight work
//
// Result Commitment:
//   - Outcomes folded into the index in completion order
//   - Per-batch persistence so a crash loses at most one batch of bookkeeping
//   - Per-entry terminal accounting; no entry is ever dropped silently
//
// Service Integration:
//   - Backend abstraction covering local pools and cluster schedulers
//   - ResultIndex coordination for durable key-to-directory mappings
//   - Extensible callback system for cross-cutting concerns
//
// # Architecture
//
// The engine follows a layered architecture with clear separation of concerns:
//
//	┌─────────────────────────────────────────────────────────┐
//	│                    Client Layer                         │
//	├─────────────────────────────────────────────────────────┤
//	│                  Engine Interface                       │
//	│  ┌─────────────┐ ┌─────────────┐ ┌─────────────────┐   │
//	│  │     Run     │ │    State    │ │  Index/Backend  │   │
//	│  └─────────────┘ └─────────────┘ └─────────────────┘   │
//	├─────────────────────────────────────────────────────────┤
//	│                 Orchestration Layer                     │
//	│  ┌─────────────┐ ┌─────────────┐ ┌─────────────────┐   │
//	│  │   Prepare   │ │   Commit    │ │   Callbacks     │   │
//	│  │  (pre-scan) │ │   (fold)    │ │    Manager      │   │
//	│  └─────────────┘ └─────────────┘ └─────────────────┘   │
//	├─────────────────────────────────────────────────────────┤
//	│                   Service Layer                         │
//	│  ┌─────────────┐ ┌─────────────┐ ┌─────────────────┐   │
//	│  │   Backend   │ │ ResultIndex │ │    Run Gate     │   │
//	│  │ (local/HPC) │ │ (persisted) │ │ (single-flight) │   │
//	│  └─────────────┘ └─────────────┘ └─────────────────┘   │
//	└─────────────────────────────────────────────────────────┘
//
// # Run Lifecycle
//
// A run moves through four observable states:
//
//   - Preparing: run ID minting, duplicate pre-scan, batch forming
//   - Dispatching: batches handed to the backend
//   - Committing: outcomes folded into the index and persisted
//   - Idle: report assembled, gate released
//
// A second Run call while any of the active states is held fails fast with
// core.ErrRunActive instead of queueing.
//
// # Usage Patterns
//
// Basic Engine Setup:
//
//	eng := engine.New(backend, idx,
//	    func(o *engine.Options) {
//	        o.Config.BatchSize = 10
//	        o.Logger = logger
//	    },
//	)
//
// Running a Sweep:
//
//	report, err := eng.Run(ctx, col, func(o *core.RunOptions) {
//	    o.Exec.Command = []string{"simulate", "--config", "config.json"}
//	})
//	if err != nil {
//	    return err
//	}
//	for _, entry := range report.Entries {
//	    fmt.Printf("%s: %s\n", entry.Name, entry.Status)
//	}
//
// Lifecycle Hooks:
//
//	cm := engine.NewCallbackManager()
//	cm.RegisterCallback(engine.NewFunctionCallback(
//	    engine.CallbackAfterCommit,
//	    func(ctx context.Context, cc *engine.CallbackContext) error {
//	        log.Printf("batch %d committed", cc.Outcome.Seq)
//	        return nil
//	    },
//	))
//	eng := engine.New(backend, idx, func(o *engine.Options) { o.Callbacks = cm })
//
// # Error Handling
//
// The engine distinguishes execution failures from structural ones:
//
//   - Unit failures: recorded per entry in the report, never abort the run
//   - Commit-time duplicates: downgraded to skipped, never failed
//   - Dispatch refusal: returned immediately, nothing committed
//   - Index persist failure: aborts further commits and returns the report
//     accumulated so far together with an ErrIndexPersist-wrapped error
//
// # Concurrency Model
//
// Run is serialized by a single-flight gate; the commit loop is the only
// reader of the backend's outcome channel, so index writes are never
// concurrent. Backends own whatever parallelism happens below the batch
// boundary. After a persist failure the commit loop keeps draining outcomes
// without committing them, so backend goroutines never leak.
package engine
