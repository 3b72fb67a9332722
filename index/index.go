package index

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/gridsweep/core"
	"github.com/hupe1980/gridsweep/logging"
)

// Compile-time check that Index satisfies the core contract.
var _ core.ResultIndex = (*Index)(nil)

// Options configures a new Index.
type Options struct {
	// Info is the free-text collection metadata recorded in the artifact.
	Info string

	// Overwrite makes every Put and Merge replace colliding keys by default.
	// Per-call options still win.
	Overwrite bool

	// Provenance overrides the default library/version tag.
	Provenance core.Provenance

	// Logger receives index diagnostics. Defaults to a no-op logger.
	Logger logging.Logger
}

// Index is the file-backed core.ResultIndex implementation: an in-memory map
// from canonical key to result directory, persisted as a versioned JSON
// artifact at its root. Record paths are stored relative to the root when the
// directory lives under it, so a moved result tree keeps resolving. All
// methods are safe for concurrent use.
type Index struct {
	mu      sync.RWMutex
	root    string
	info    string
	prov    core.Provenance
	records map[core.Key]*core.IndexRecord
	order   []core.Key
	phases  []string // distinct phases in first-recorded order

	axes      map[string][]core.Value
	axesDirty bool

	overwrite bool
	logger    logging.Logger
}

// New creates an empty index rooted at the given directory. Nothing is
// written until Persist.
func New(root string, optFns ...func(o *Options)) *Index {
	opts := Options{
		Provenance: core.Provenance{Library: "gridsweep", Version: core.Version},
		Logger:     logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Provenance.Library == "" {
		opts.Provenance.Library = "gridsweep"
	}
	if opts.Provenance.Version == "" {
		opts.Provenance.Version = core.Version
	}

	return &Index{
		root:      filepath.Clean(root),
		info:      opts.Info,
		prov:      opts.Provenance,
		records:   make(map[core.Key]*core.IndexRecord),
		overwrite: opts.Overwrite,
		logger:    opts.Logger,
	}
}

// Root returns the directory the index artifact lives in.
func (ix *Index) Root() string { return ix.root }

// Len returns the number of committed records.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.order)
}

// Has reports whether key is present.
func (ix *Index) Has(key core.Key) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	_, ok := ix.records[key]
	return ok
}

// Info returns the free-text collection metadata.
func (ix *Index) Info() string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.info
}

// SetInfo replaces the free-text collection metadata.
func (ix *Index) SetInfo(info string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.info = info
}

// Provenance returns the version/run tag of the last write.
func (ix *Index) Provenance() core.Provenance {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.prov
}

// SetProvenance replaces the version/run tag recorded on Persist.
func (ix *Index) SetProvenance(p core.Provenance) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.prov = p
}

// Put records entry's directory under its canonical key. Fails with
// ErrDuplicateKey on collision unless overwrite is enabled; overwriting keeps
// the key's original insertion position.
func (ix *Index) Put(entry *core.ConfigEntry, name, dir string, optFns ...func(o *core.PutOptions)) error {
	if entry == nil {
		return fmt.Errorf("%w: nil entry", core.ErrInvalidParameter)
	}

	opts := core.PutOptions{Overwrite: ix.overwrite}
	for _, fn := range optFns {
		fn(&opts)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	rec := core.IndexRecord{
		Key:            entry.Key(),
		Name:           name,
		Phase:          entry.Phase(),
		Params:         entry.Params(),
		GeneratedSeeds: entry.GeneratedSeeds(),
		Dir:            relativize(ix.root, dir),
		RunID:          ix.prov.RunID,
		AddedAt:        time.Now().UTC(),
	}

	return ix.insert(rec, opts.Overwrite)
}

// insert stores a record, preserving insertion position on overwrite.
// Callers hold the write lock.
func (ix *Index) insert(rec core.IndexRecord, overwrite bool) error {
	if existing, ok := ix.records[rec.Key]; ok {
		if !overwrite {
			return fmt.Errorf("%w: %s already maps to %s", core.ErrDuplicateKey, rec.Key, existing.Dir)
		}
		ix.records[rec.Key] = &rec
		ix.axesDirty = true
		return nil
	}

	ix.records[rec.Key] = &rec
	ix.order = append(ix.order, rec.Key)
	ix.notePhase(rec.Phase)
	ix.axesDirty = true
	return nil
}

// notePhase tracks distinct phases in first-recorded order. Callers hold the
// write lock.
func (ix *Index) notePhase(phase string) {
	for _, p := range ix.phases {
		if p == phase {
			return
		}
	}
	ix.phases = append(ix.phases, phase)
}

// Get resolves parameters to the absolute result directory. ErrNotFound when
// no such configuration was recorded; ErrStaleIndex when it was recorded but
// the directory no longer exists on disk. Lookups consider each phase
// recorded in the index, in first-recorded order.
func (ix *Index) Get(params map[string]any) (string, error) {
	ps, err := core.ParamSetFromAny(params)
	if err != nil {
		return "", err
	}
	return ix.getParams(ps)
}

func (ix *Index) getParams(ps core.ParamSet) (string, error) {
	ix.mu.RLock()
	var rec *core.IndexRecord
	for _, phase := range ix.phases {
		if r, ok := ix.records[core.KeyOf(phase, ps)]; ok {
			rec = r
			break
		}
	}
	ix.mu.RUnlock()

	if rec == nil {
		return "", fmt.Errorf("%w: no result for the given parameters", core.ErrNotFound)
	}

	abs := ix.resolve(rec.Dir)
	if _, err := os.Stat(abs); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s recorded but missing at %s", core.ErrStaleIndex, rec.Name, abs)
		}
		return "", err
	}
	return abs, nil
}

// GetNearest is Get with numeric axis snapping: each varying-axis value in
// params is replaced by the nearest recorded one before the exact lookup.
// Ties snap toward the lower axis value. Non-numeric and non-axis parameters
// must match exactly.
func (ix *Index) GetNearest(params map[string]any) (string, error) {
	ps, err := core.ParamSetFromAny(params)
	if err != nil {
		return "", err
	}

	axes := ix.VaryingAxes()
	for name, v := range ps {
		vals, ok := axes[name]
		if !ok || v.Kind() != core.KindNumber {
			continue
		}
		ps[name] = nearestNumeric(v, vals)
	}

	return ix.getParams(ps)
}

// nearestNumeric snaps v onto the closest numeric axis value. The axis is
// sorted, so strict less-than keeps the lower value on ties.
func nearestNumeric(v core.Value, axis []core.Value) core.Value {
	best := v
	bestDist := math.Inf(1)
	for _, a := range axis {
		if a.Kind() != core.KindNumber {
			continue
		}
		d := math.Abs(a.Num() - v.Num())
		if d < bestDist {
			best, bestDist = a, d
		}
	}
	return best
}

// Range iterates (parameters, absolute directory) pairs in insertion order
// until fn returns false. Each call starts fresh from a snapshot, so a
// concurrent Put never tears an iteration.
func (ix *Index) Range(fn func(params core.ParamSet, dir string) bool) {
	type pair struct {
		params core.ParamSet
		dir    string
	}

	ix.mu.RLock()
	snapshot := make([]pair, 0, len(ix.order))
	for _, key := range ix.order {
		rec := ix.records[key]
		snapshot = append(snapshot, pair{params: rec.Params.Clone(), dir: ix.resolve(rec.Dir)})
	}
	ix.mu.RUnlock()

	for _, p := range snapshot {
		if !fn(p.params, p.dir) {
			return
		}
	}
}

// Keys returns all canonical keys in insertion order.
func (ix *Index) Keys() []core.Key {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return append([]core.Key(nil), ix.order...)
}

// Records returns copies of all records in insertion order, in stored
// (relative where possible) form.
func (ix *Index) Records() []core.IndexRecord {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	out := make([]core.IndexRecord, 0, len(ix.order))
	for _, key := range ix.order {
		out = append(out, copyRecord(*ix.records[key]))
	}
	return out
}

// Merge folds other's records in, following Put's duplicate policy. The merge
// is atomic: on a collision without overwrite nothing is modified. Merged
// directories re-root against the receiver when they live under its root,
// else stay absolute.
func (ix *Index) Merge(other core.ResultIndex, optFns ...func(o *core.PutOptions)) error {
	if other == nil {
		return nil
	}

	opts := core.PutOptions{Overwrite: ix.overwrite}
	for _, fn := range optFns {
		fn(&opts)
	}

	otherRoot := other.Root()
	incoming := other.Records()

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if !opts.Overwrite {
		for _, rec := range incoming {
			if existing, ok := ix.records[rec.Key]; ok {
				return fmt.Errorf("%w: %s already maps to %s", core.ErrDuplicateKey, rec.Key, existing.Dir)
			}
		}
	}

	for _, rec := range incoming {
		abs := rec.Dir
		if !filepath.IsAbs(abs) {
			abs = filepath.Join(otherRoot, abs)
		}
		rec.Dir = relativize(ix.root, abs)
		if err := ix.insert(copyRecord(rec), opts.Overwrite); err != nil {
			return err
		}
	}

	return nil
}

// VaryingAxes returns the parameter names taking more than one value across
// records, each with sorted unique values. Derived lazily from the records
// and cached; auto-filled seeds are not axes.
func (ix *Index) VaryingAxes() map[string][]core.Value {
	ix.mu.Lock()
	if ix.axesDirty || ix.axes == nil {
		ix.axes = computeAxes(ix.records, ix.order)
		ix.axesDirty = false
	}
	axes := ix.axes
	ix.mu.Unlock()

	out := make(map[string][]core.Value, len(axes))
	for name, vs := range axes {
		out[name] = append([]core.Value(nil), vs...)
	}
	return out
}

// computeAxes collects sorted unique values per parameter across all records,
// keeping parameters with more than one value and skipping auto-filled seeds.
func computeAxes(records map[core.Key]*core.IndexRecord, order []core.Key) map[string][]core.Value {
	axes := make(map[string][]core.Value)
	if len(order) == 0 {
		return axes
	}

	skip := make(map[string]struct{})
	names := make(map[string]struct{})
	for _, key := range order {
		rec := records[key]
		for _, s := range rec.GeneratedSeeds {
			skip[s] = struct{}{}
		}
		for name := range rec.Params {
			names[name] = struct{}{}
		}
	}

	for name := range names {
		if _, ok := skip[name]; ok {
			continue
		}
		var uniq []core.Value
		for _, key := range order {
			v, ok := records[key].Params[name]
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

// resolve turns a stored directory into an absolute path.
func (ix *Index) resolve(dir string) string {
	if filepath.IsAbs(dir) {
		return filepath.Clean(dir)
	}
	return filepath.Join(ix.root, dir)
}

// relativize stores dir relative to root when it lives underneath it, else
// absolute.
func relativize(root, dir string) string {
	abs := filepath.Clean(dir)
	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return abs
	}
	return rel
}

// copyRecord deep-copies the mutable parts of a record.
func copyRecord(rec core.IndexRecord) core.IndexRecord {
	rec.Params = rec.Params.Clone()
	rec.GeneratedSeeds = append([]string(nil), rec.GeneratedSeeds...)
	return rec
}
