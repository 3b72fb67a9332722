// Package gridsweep provides a high-level façade over the sweep engine and
// its collaborators (execution backends, the result index and logging),
// enabling rapid construction of simulation parameter sweeps. Most
// applications interact with this package by:
//  1. Creating a GridSweep via New() (optionally overriding the backend, index or logger)
//  2. Building a ConfigCollection (directly, via core constructors, or from an HCL manifest)
//  3. Running it with Run or RunCollection and consuming the per-entry report
//
// The façade delegates orchestration to engine.Engine while keeping setup and
// usage ergonomics concise. All defaults are safe for local development and
// testing: a bounded local process pool and a JSON index in the working
// directory. Cluster deployments supply a scheduler-backed backend and a
// structured logger.
package gridsweep

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/gridsweep/backend"
	"github.com/hupe1980/gridsweep/core"
	"github.com/hupe1980/gridsweep/engine"
	"github.com/hupe1980/gridsweep/index"
	"github.com/hupe1980/gridsweep/logging"
)

// Options configures the GridSweep instance.
type Options struct {
	// RootDir is where unit directories and the index artifact live.
	// Defaults to the working directory. Ignored when Index is supplied.
	RootDir string

	// Engine configuration (batching, timeouts, durability)
	EngineConfig engine.Config

	// Backend executes batches (defaults to the local process pool).
	Backend core.Backend

	// Index is the result index to commit into. Defaults to the index
	// artifact found at RootDir, or a fresh one when none exists yet.
	Index core.ResultIndex

	// Callbacks receives run lifecycle hooks (defaults to none).
	Callbacks *engine.CallbackManager

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// GridSweep is the high-level façade aggregating the engine and its services.
type GridSweep struct {
	opts   Options
	engine *engine.Engine
}

// New creates a new GridSweep instance with optional overrides. Without an
// explicit index the root directory is probed: an existing artifact is
// loaded so repeated runs extend one result collection, a missing one
// starts empty.
func New(optFns ...func(o *Options)) (*GridSweep, error) {
	opts := Options{
		RootDir:      ".",
		EngineConfig: engine.DefaultConfig,
		Logger:       logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	idx := opts.Index
	if idx == nil {
		loaded, err := index.Load(opts.RootDir, func(o *index.Options) { o.Logger = opts.Logger })
		switch {
		case err == nil:
			idx = loaded
		case errors.Is(err, core.ErrNotFound):
			idx = index.New(opts.RootDir, func(o *index.Options) { o.Logger = opts.Logger })
		default:
			return nil, fmt.Errorf("opening index at %s: %w", opts.RootDir, err)
		}
		opts.Index = idx
	}

	be := opts.Backend
	if be == nil {
		be = backend.NewLocal(func(o *backend.LocalOptions) { o.Logger = opts.Logger })
		opts.Backend = be
	}

	eng := engine.New(be, idx, func(o *engine.Options) {
		o.Config = opts.EngineConfig
		o.Logger = opts.Logger
		o.Callbacks = opts.Callbacks
	})

	return &GridSweep{opts: opts, engine: eng}, nil
}

// Index returns the result index runs commit into.
func (g *GridSweep) Index() core.ResultIndex { return g.engine.Index() }

// Backend returns the execution backend.
func (g *GridSweep) Backend() core.Backend { return g.engine.Backend() }

// Engine returns the underlying engine for state inspection.
func (g *GridSweep) Engine() *engine.Engine { return g.engine }

// RunCollection executes the collection and commits its results, returning
// the per-entry report.
func (g *GridSweep) RunCollection(ctx context.Context, col *core.ConfigCollection, optFns ...func(o *core.RunOptions)) (*core.RunReport, error) {
	return g.engine.Run(ctx, col, optFns...)
}

// Run is a convenience helper that folds raw parameter maps into a
// collection of permissive entries and runs it. Sweeps needing strict
// validation, phases or seed fields should build the collection themselves
// and use RunCollection.
func (g *GridSweep) Run(ctx context.Context, info string, paramSets []map[string]any, optFns ...func(o *core.RunOptions)) (*core.RunReport, error) {
	col := core.NewCollection(info)
	for i, params := range paramSets {
		entry, err := core.NewEntry(params)
		if err != nil {
			return nil, fmt.Errorf("parameter set %d: %w", i, err)
		}
		if _, err := col.Append(entry); err != nil {
			return nil, fmt.Errorf("parameter set %d: %w", i, err)
		}
	}

	return g.engine.Run(ctx, col, optFns...)
}
