package core

import "time"

// Provenance is the version/run tag recorded when an index is written.
type Provenance struct {
	Library   string    `json:"library"`
	Version   string    `json:"version"`
	RunID     string    `json:"run_id,omitempty"`
	WrittenAt time.Time `json:"written_at"`
}

// IndexRecord is one committed configuration-to-directory mapping. Dir is
// stored relative to the index root when the directory lives under it, so a
// moved tree keeps resolving.
type IndexRecord struct {
	Key            Key       `json:"key"`
	Name           string    `json:"name"`
	Phase          string    `json:"phase,omitempty"`
	Params         ParamSet  `json:"params"`
	GeneratedSeeds []string  `json:"generated_seeds,omitempty"`
	Dir            string    `json:"dir"`
	RunID          string    `json:"run_id,omitempty"`
	AddedAt        time.Time `json:"added_at"`
}

// PutOptions modifies a single index write.
type PutOptions struct {
	// Overwrite replaces an existing mapping instead of failing with
	// ErrDuplicateKey. Intentional re-runs only: silent overwrite would
	// corrupt the record of which inputs produced which outputs.
	Overwrite bool
}

// WithOverwrite enables overwrite for one Put or Merge call.
func WithOverwrite() func(o *PutOptions) {
	return func(o *PutOptions) { o.Overwrite = true }
}

// ResultIndex is the system of record for what has been computed and where: a
// persistent map from canonical key to result directory plus collection-level
// metadata. Implementations must be safe for concurrent use. Iteration order
// is insertion order, preserving the grid structure of the originating
// collection for downstream consumers.
type ResultIndex interface {
	// Root returns the directory the index artifact lives in. Stored record
	// paths resolve relative to it.
	Root() string

	// Len returns the number of committed records.
	Len() int

	// Has reports whether key is present.
	Has(key Key) bool

	// Put records entry's directory under its canonical key. Fails with
	// ErrDuplicateKey on collision unless overwrite is enabled; overwriting
	// keeps the key's original insertion position.
	Put(entry *ConfigEntry, name, dir string, optFns ...func(o *PutOptions)) error

	// Get resolves parameters to the absolute result directory. ErrNotFound
	// when no such configuration was recorded; ErrStaleIndex when it was
	// recorded but the directory no longer exists on disk. Lookups consider
	// each phase recorded in the index, in first-recorded order.
	Get(params map[string]any) (string, error)

	// GetNearest is Get with numeric axis snapping: each varying-axis value
	// in params is replaced by the nearest recorded one before the exact
	// lookup. Non-numeric and non-axis parameters must match exactly.
	GetNearest(params map[string]any) (string, error)

	// Range iterates (parameters, absolute directory) pairs in insertion
	// order until fn returns false. Each call starts fresh; fn receives a
	// copy of the stored params.
	Range(fn func(params ParamSet, dir string) bool)

	// Records returns copies of all records in insertion order, in stored
	// (relative where possible) form.
	Records() []IndexRecord

	// Merge folds other's records in, following Put's duplicate policy.
	// Merged directories re-root against the receiver when they live under
	// its root, else stay absolute.
	Merge(other ResultIndex, optFns ...func(o *PutOptions)) error

	// Info returns the free-text collection metadata.
	Info() string

	// SetInfo replaces the free-text collection metadata.
	SetInfo(info string)

	// VaryingAxes returns the parameter names taking more than one value
	// across records, each with sorted unique values. Derived from the
	// records; auto-filled seeds are not axes.
	VaryingAxes() map[string][]Value

	// Provenance returns the version/run tag of the last write.
	Provenance() Provenance

	// SetProvenance replaces the version/run tag recorded on Persist.
	SetProvenance(p Provenance)

	// Persist writes the whole structure durably to the root. Concurrent
	// readers of the artifact see either the previous or the new snapshot,
	// never a torn write. Failures wrap ErrIndexPersist.
	Persist() error

	// WriteSummary writes the human-readable summary file next to the index
	// artifact.
	WriteSummary() error
}
