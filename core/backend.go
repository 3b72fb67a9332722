package core

import (
	"context"
	"time"
)

// Resources describes the per-job resource request passed to a cluster
// scheduler. Zero values mean "scheduler default".
type Resources struct {
	MemoryMB  int    `json:"memory_mb,omitempty"`  // memory per CPU, in MB
	TimeLimit string `json:"time_limit,omitempty"` // scheduler wall-clock syntax, e.g. "12:00:00"
	CPUs      int    `json:"cpus,omitempty"`       // CPUs per job
}

// ExecOptions carries everything a backend needs to turn batches into running
// work. Command is the simulation executable; each unit invocation appends
// the unit's working directory as the single positional argument.
type ExecOptions struct {
	// Command is the simulation executable and its fixed arguments.
	Command []string

	// PostCommand is an optional post-processing step with the same
	// single-argument contract, run after Command in the same directory.
	PostCommand []string

	// Renderer writes collaborator config files into each unit directory
	// before execution. Nil means only config.json is written.
	Renderer Renderer

	// BatchTimeout bounds one batch's wall clock. Zero means none. Timeouts
	// are scoped per batch, never per run, so one slow batch cannot hold up
	// reporting the rest.
	BatchTimeout time.Duration

	// Resources is the cluster resource request. Ignored by local execution.
	Resources Resources
}

// Backend turns batches into completed work. Implementations stream outcomes
// in completion order on the returned channel and close it when every batch
// has reported. Cancelling ctx stops launching new work; in-flight work runs
// to completion on a detached context and still reports its outcome.
//
// A backend receiving zero batches returns an already-closed channel and
// performs no side effects.
type Backend interface {
	// Name identifies the execution strategy ("local", "cluster").
	Name() string

	// Execute dispatches the batches. The error return covers submission-time
	// failures only; per-batch failures travel inside BatchOutcome.
	Execute(ctx context.Context, batches []Batch, opts ExecOptions) (<-chan BatchOutcome, error)
}
