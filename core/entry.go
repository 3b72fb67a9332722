package core

import (
	"encoding/json"
	"fmt"
	"sort"
)

// EntryOptions configures construction of a ConfigEntry.
type EntryOptions struct {
	// Phase is an optional mode discriminator recorded with the entry and
	// folded into its canonical key.
	Phase string

	// SeedFields names parameters that receive a fresh seed value when the
	// caller does not supply one. A caller-supplied (pinned) seed is part of
	// the experiment design and enters the canonical key; auto-filled seeds
	// do not.
	SeedFields []string

	// SeedSource overrides the clock-derived seed generator.
	SeedSource SeedSource
}

// ConfigEntry is one immutable, validated point of the parameter grid.
// Entries are constructed once and never mutated; collections copy on append,
// so the canonical key computed here stays valid for the entry's lifetime.
type ConfigEntry struct {
	params    ParamSet
	phase     string
	generated []string // seed fields filled by us, sorted
	key       Key
}

// NewEntry creates a permissive entry: any parameter name is accepted.
func NewEntry(params map[string]any, optFns ...func(o *EntryOptions)) (*ConfigEntry, error) {
	return newEntry(nil, params, optFns)
}

// NewStrictEntry creates an entry whose parameter names must come from the
// allowed set. Declared seed fields are implicitly allowed. An unknown name
// fails with ErrInvalidParameter.
func NewStrictEntry(allowed []string, params map[string]any, optFns ...func(o *EntryOptions)) (*ConfigEntry, error) {
	if allowed == nil {
		allowed = []string{}
	}
	return newEntry(allowed, params, optFns)
}

func newEntry(allowed []string, params map[string]any, optFns []func(o *EntryOptions)) (*ConfigEntry, error) {
	opts := EntryOptions{SeedSource: clockSeed}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.SeedSource == nil {
		opts.SeedSource = clockSeed
	}

	ps, err := ParamSetFromAny(params)
	if err != nil {
		return nil, err
	}

	if allowed != nil {
		permitted := make(map[string]struct{}, len(allowed)+len(opts.SeedFields))
		for _, name := range allowed {
			permitted[name] = struct{}{}
		}
		for _, name := range opts.SeedFields {
			permitted[name] = struct{}{}
		}
		for name := range ps {
			if _, ok := permitted[name]; !ok {
				return nil, fmt.Errorf("%w: unknown parameter %q", ErrInvalidParameter, name)
			}
		}
	}

	var generated []string
	for _, name := range opts.SeedFields {
		if _, ok := ps[name]; ok {
			continue // pinned by the caller
		}
		ps[name] = NumberVal(float64(opts.SeedSource()))
		generated = append(generated, name)
	}
	sort.Strings(generated)

	return &ConfigEntry{
		params:    ps,
		phase:     opts.Phase,
		generated: generated,
		key:       KeyOf(opts.Phase, ps, generated...),
	}, nil
}

// Key returns the entry's canonical key, computed once at construction.
func (e *ConfigEntry) Key() Key { return e.key }

// Phase returns the mode discriminator, or "" when unset.
func (e *ConfigEntry) Phase() string { return e.phase }

// Params returns an independent copy of the parameter set.
func (e *ConfigEntry) Params() ParamSet { return e.params.Clone() }

// Value looks up a single parameter.
func (e *ConfigEntry) Value(name string) (Value, bool) {
	v, ok := e.params[name]
	return v, ok
}

// GeneratedSeeds returns the names of seed fields that were auto-filled at
// construction, sorted. Pinned seeds are not listed.
func (e *ConfigEntry) GeneratedSeeds() []string {
	return append([]string(nil), e.generated...)
}

// clone returns an independent copy; collections use it for copy-on-add.
func (e *ConfigEntry) clone() *ConfigEntry {
	return &ConfigEntry{
		params:    e.params.Clone(),
		phase:     e.phase,
		generated: append([]string(nil), e.generated...),
		key:       e.key,
	}
}

// entryJSON is the serialized form written to each unit's config.json and
// embedded in index records.
type entryJSON struct {
	Phase          string   `json:"phase,omitempty"`
	Params         ParamSet `json:"params"`
	GeneratedSeeds []string `json:"generated_seeds,omitempty"`
}

// MarshalJSON encodes the entry including which seeds were auto-filled, so a
// reloaded entry reproduces the same canonical key.
func (e *ConfigEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal(entryJSON{
		Phase:          e.phase,
		Params:         e.params,
		GeneratedSeeds: e.generated,
	})
}

// UnmarshalJSON decodes an entry and recomputes its canonical key.
func (e *ConfigEntry) UnmarshalJSON(data []byte) error {
	var raw entryJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Params == nil {
		raw.Params = ParamSet{}
	}
	sort.Strings(raw.GeneratedSeeds)
	e.params = raw.Params
	e.phase = raw.Phase
	e.generated = raw.GeneratedSeeds
	e.key = KeyOf(raw.Phase, raw.Params, raw.GeneratedSeeds...)
	return nil
}
