// Package core provides the foundational domain types, interfaces and
// contracts used by GridSweep. It defines the core abstractions for:
//
//   - ConfigEntry / ConfigCollection (validated parameter records and the
//     ordered grids built from them)
//   - Canonical keys (order-independent configuration identity)
//   - Batches, units and their outcomes (executable work and its results)
//   - Backend / Scheduler / Renderer (pluggable execution strategies and
//     external collaborator contracts)
//   - ResultIndex (the persistent configuration-to-directory mapping)
//
// The package intentionally keeps implementation concerns (persistence,
// process pools, scheduler bindings) out of scope, exposing small interfaces
// to enable custom backends and extensions. All exported identifiers include
// concise documentation to aid discoverability and external consumption.
package core
