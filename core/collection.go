package core

import (
	"fmt"
	"sort"
)

// ConfigCollection is an ordered, append-only list of ConfigEntry plus
// free-text metadata. The sequence position i of an entry is stable for the
// collection's lifetime and names its output directory (run0, run1, ...).
type ConfigCollection struct {
	info    string
	entries []*ConfigEntry

	axes      map[string][]Value
	axesDirty bool
}

// NewCollection creates an empty collection. The info text is free-form
// metadata recorded in the result index.
func NewCollection(info string) *ConfigCollection {
	return &ConfigCollection{info: info}
}

// Append adds a copy of the entry and returns its stable unit name. Entries
// are never removed or reordered afterwards. Every entry must share the first
// entry's parameter-name set and phase; violations fail with
// ErrInvalidParameter. Amortized O(1): the varying-axes set is recomputed
// lazily on the next read, not here.
func (c *ConfigCollection) Append(e *ConfigEntry) (string, error) {
	if e == nil {
		return "", fmt.Errorf("%w: nil entry", ErrInvalidParameter)
	}
	if len(c.entries) > 0 {
		first := c.entries[0]
		if e.phase != first.phase {
			return "", fmt.Errorf("%w: phase %q does not match collection phase %q", ErrInvalidParameter, e.phase, first.phase)
		}
		if !sameNames(first.params, e.params) {
			return "", fmt.Errorf("%w: parameter names do not match the collection's", ErrInvalidParameter)
		}
	}

	c.entries = append(c.entries, e.clone())
	c.axesDirty = true

	return c.Name(len(c.entries) - 1), nil
}

// Name returns the stable unit name for sequence position i.
func (c *ConfigCollection) Name(i int) string { return fmt.Sprintf("run%d", i) }

// Len returns the number of entries.
func (c *ConfigCollection) Len() int { return len(c.entries) }

// Info returns the free-text metadata.
func (c *ConfigCollection) Info() string { return c.info }

// Phase returns the collection's phase discriminator ("" when unset or the
// collection is empty). All entries share it.
func (c *ConfigCollection) Phase() string {
	if len(c.entries) == 0 {
		return ""
	}
	return c.entries[0].phase
}

// Entry returns the entry at sequence position i.
func (c *ConfigCollection) Entry(i int) (*ConfigEntry, bool) {
	if i < 0 || i >= len(c.entries) {
		return nil, false
	}
	return c.entries[i], true
}

// Entries returns the entries in insertion order. Entries are immutable; the
// returned slice is a copy.
func (c *ConfigCollection) Entries() []*ConfigEntry {
	return append([]*ConfigEntry(nil), c.entries...)
}

// VaryingAxes returns the parameter names whose value differs across entries,
// each with its sorted de-duplicated values. Auto-filled seed fields are not
// axes even though their values differ. The set is computed lazily on the
// first read after an append and cached until the next append.
func (c *ConfigCollection) VaryingAxes() map[string][]Value {
	if c.axesDirty || c.axes == nil {
		c.axes = computeAxes(c.entries)
		c.axesDirty = false
	}

	out := make(map[string][]Value, len(c.axes))
	for name, vs := range c.axes {
		out[name] = append([]Value(nil), vs...)
	}
	return out
}

// sameNames reports whether two sets carry exactly the same parameter names.
func sameNames(a, b ParamSet) bool {
	if len(a) != len(b) {
		return false
	}
	for name := range a {
		if _, ok := b[name]; !ok {
			return false
		}
	}
	return true
}

// computeAxes collects the sorted unique values of every parameter that takes
// more than one value across the entries, skipping auto-filled seeds.
func computeAxes(entries []*ConfigEntry) map[string][]Value {
	axes := make(map[string][]Value)
	if len(entries) == 0 {
		return axes
	}

	skip := make(map[string]struct{})
	for _, e := range entries {
		for _, name := range e.generated {
			skip[name] = struct{}{}
		}
	}

	for _, name := range entries[0].params.Names() {
		if _, ok := skip[name]; ok {
			continue
		}
		var uniq []Value
		for _, e := range entries {
			v, ok := e.params[name]
			if !ok {
				continue
			}
			seen := false
			for _, u := range uniq {
				if u.Equal(v) {
					seen = true
					break
				}
			}
			if !seen {
				uniq = append(uniq, v)
			}
		}
		if len(uniq) > 1 {
			sort.Slice(uniq, func(i, j int) bool { return uniq[i].Less(uniq[j]) })
			axes[name] = uniq
		}
	}

	return axes
}
