package testutil

import (
	"fmt"

	"github.com/hupe1980/gridsweep/core"
)

// EntryBuilder provides a fluent helper for constructing config entries in tests.
// Example:
//
//	e := NewEntryBuilder().Param("x", 1).Param("mode", "fast").Seeds("seed").Build()
//
// Chain only the parts you need; sensible defaults are applied. Build panics
// on validation errors, so tests exercising validation failures should call
// core.NewEntry directly.
type EntryBuilder struct {
	params  map[string]any
	phase   string
	seeds   []string
	allowed []string
	strict  bool
	source  core.SeedSource
}

// NewEntryBuilder creates a builder with an empty parameter set.
func NewEntryBuilder() *EntryBuilder { return &EntryBuilder{params: map[string]any{}} }

// Param sets a single parameter on the resulting entry (chainable).
func (b *EntryBuilder) Param(name string, value any) *EntryBuilder {
	b.params[name] = value
	return b
}

// Params merges a parameter map into the entry (chainable).
func (b *EntryBuilder) Params(params map[string]any) *EntryBuilder {
	for name, value := range params {
		b.params[name] = value
	}
	return b
}

// Phase sets the mode discriminator folded into the canonical key (chainable).
func (b *EntryBuilder) Phase(phase string) *EntryBuilder { b.phase = phase; return b }

// Seeds declares seed fields to auto-fill when the caller supplies no value (chainable).
func (b *EntryBuilder) Seeds(names ...string) *EntryBuilder {
	b.seeds = append(b.seeds, names...)
	return b
}

// Strict restricts parameter names to the given allowed set (chainable).
func (b *EntryBuilder) Strict(allowed ...string) *EntryBuilder {
	b.strict = true
	b.allowed = allowed
	return b
}

// SeedSource overrides the clock-derived seed generator, mainly for tests
// where deterministic keys matter (chainable).
func (b *EntryBuilder) SeedSource(src core.SeedSource) *EntryBuilder {
	b.source = src
	return b
}

// Build constructs the core.ConfigEntry value.
func (b *EntryBuilder) Build() *core.ConfigEntry {
	optFn := func(o *core.EntryOptions) {
		o.Phase = b.phase
		o.SeedFields = append([]string(nil), b.seeds...)
		if b.source != nil {
			o.SeedSource = b.source
		}
	}

	var (
		entry *core.ConfigEntry
		err   error
	)

	if b.strict {
		entry, err = core.NewStrictEntry(b.allowed, b.params, optFn)
	} else {
		entry, err = core.NewEntry(b.params, optFn)
	}

	if err != nil {
		panic(fmt.Sprintf("testutil: building entry: %v", err))
	}

	return entry
}

// CounterSeeds returns a deterministic seed source counting up from start.
// Inject it wherever distinct but reproducible auto-filled seeds are needed.
func CounterSeeds(start uint32) core.SeedSource {
	next := start
	return func() uint32 {
		next++
		return next
	}
}

// CollectionBuilder helps construct collections with fluent chaining for tests.
// Example:
//
//	col := NewCollectionBuilder("smoke sweep").
//	    Entry(map[string]any{"x": 1}).
//	    Entry(map[string]any{"x": 2}).
//	    Build()
//
// Every entry shares the builder's phase and seed declarations, matching the
// collection invariant that entries agree on names and phase.
type CollectionBuilder struct {
	info    string
	phase   string
	seeds   []string
	source  core.SeedSource
	entries []map[string]any
}

// NewCollectionBuilder creates a new builder for a collection with the given
// info text. Use chainable methods (Phase, Seeds, Entry) then call Build.
func NewCollectionBuilder(info string) *CollectionBuilder {
	return &CollectionBuilder{info: info}
}

// Phase sets the phase shared by every entry (chainable).
func (b *CollectionBuilder) Phase(phase string) *CollectionBuilder { b.phase = phase; return b }

// Seeds declares seed fields shared by every entry (chainable).
func (b *CollectionBuilder) Seeds(names ...string) *CollectionBuilder {
	b.seeds = append(b.seeds, names...)
	return b
}

// SeedSource overrides the seed generator shared by every entry (chainable).
func (b *CollectionBuilder) SeedSource(src core.SeedSource) *CollectionBuilder {
	b.source = src
	return b
}

// Entry appends one entry's parameters (chainable).
func (b *CollectionBuilder) Entry(params map[string]any) *CollectionBuilder {
	b.entries = append(b.entries, params)
	return b
}

// Build returns a *core.ConfigCollection with all entries appended in order.
func (b *CollectionBuilder) Build() *core.ConfigCollection {
	col := core.NewCollection(b.info)

	for _, params := range b.entries {
		eb := NewEntryBuilder().Params(params).Phase(b.phase).Seeds(b.seeds...)
		if b.source != nil {
			eb = eb.SeedSource(b.source)
		}
		if _, err := col.Append(eb.Build()); err != nil {
			panic(fmt.Sprintf("testutil: appending entry: %v", err))
		}
	}

	return col
}
