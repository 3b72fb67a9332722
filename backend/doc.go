// Package backend provides the execution backends that turn batches of
// configuration entries into completed result directories.
//
// Both backends implement core.Backend and share the same preparation step:
// each unit gets a working directory containing its serialized entry
// (config.json) and any collaborator files produced by the optional
// core.Renderer. What differs is where the simulation processes run.
//
//   - Local runs units as OS processes on the calling host, bounded by a
//     worker pool. Each process lives in its own process group with output
//     captured to log.out / log.err in the unit directory, so timeouts kill
//     whole process trees and failures stay diagnosable.
//
//   - Cluster hands batches to an external batch scheduler through the
//     core.Scheduler contract: one job script per batch written under the
//     run root's .submit directory, submitted with resource requests and
//     polled until terminal. The calling host does no simulation work.
//
// Outcomes stream on the channel returned by Execute in completion order,
// which is generally not submission order. Execution failures are captured
// in unit results rather than propagated: one diverging simulation must not
// cost the rest of a parameter sweep.
//
//	be := backend.NewLocal(func(o *backend.LocalOptions) {
//		o.Workers = 4
//	})
//	outcomes, err := be.Execute(ctx, batches, core.ExecOptions{
//		Command: []string{"fieldsim"},
//	})
package backend
