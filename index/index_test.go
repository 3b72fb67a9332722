package index

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/gridsweep/core"
)

func mustEntry(t *testing.T, params map[string]any, optFns ...func(o *core.EntryOptions)) *core.ConfigEntry {
	t.Helper()
	e, err := core.NewEntry(params, optFns...)
	require.NoError(t, err)
	return e
}

func mkRunDir(t *testing.T, root, name string) string {
	t.Helper()
	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	return dir
}

func counterSeeds(start uint32) core.SeedSource {
	n := start
	return func() uint32 {
		n++
		return n
	}
}

var names = []string{"run0", "run1", "run2"}

func TestIndex_PutGet(t *testing.T) {
	root := t.TempDir()
	ix := New(root)

	e := mustEntry(t, map[string]any{"energy": 18600.0, "pitch": 88.9})
	dir := mkRunDir(t, root, "run0")
	require.NoError(t, ix.Put(e, "run0", dir))

	// integer query values normalize onto the recorded float parameters
	got, err := ix.Get(map[string]any{"energy": 18600, "pitch": 88.9})
	require.NoError(t, err)
	assert.Equal(t, dir, got)
	assert.Equal(t, 1, ix.Len())
	assert.True(t, ix.Has(e.Key()))
	assert.Equal(t, []core.Key{e.Key()}, ix.Keys())
}

func TestIndex_StoresRelativePaths(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	ix := New(root)

	require.NoError(t, ix.Put(mustEntry(t, map[string]any{"x": 1.0}), "run0", mkRunDir(t, root, "run0")))
	require.NoError(t, ix.Put(mustEntry(t, map[string]any{"x": 2.0}), "ext", mkRunDir(t, outside, "ext")))

	recs := ix.Records()
	require.Len(t, recs, 2)
	assert.Equal(t, "run0", recs[0].Dir)
	assert.True(t, filepath.IsAbs(recs[1].Dir))

	// both resolve to absolute, existing directories
	got, err := ix.Get(map[string]any{"x": 2.0})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(outside, "ext"), got)
}

func TestIndex_DuplicatePolicy(t *testing.T) {
	root := t.TempDir()
	ix := New(root)

	params := map[string]any{"x": 1.0}
	dir0 := mkRunDir(t, root, "run0")
	require.NoError(t, ix.Put(mustEntry(t, params), "run0", dir0))
	require.NoError(t, ix.Put(mustEntry(t, map[string]any{"x": 2.0}), "run1", mkRunDir(t, root, "run1")))

	dir2 := mkRunDir(t, root, "run2")
	err := ix.Put(mustEntry(t, params), "run2", dir2)
	require.ErrorIs(t, err, core.ErrDuplicateKey)

	// the existing mapping is untouched
	got, err := ix.Get(params)
	require.NoError(t, err)
	assert.Equal(t, dir0, got)

	// overwrite replaces the mapping but keeps its insertion position
	require.NoError(t, ix.Put(mustEntry(t, params), "run2", dir2, core.WithOverwrite()))
	got, err = ix.Get(params)
	require.NoError(t, err)
	assert.Equal(t, dir2, got)

	recs := ix.Records()
	require.Len(t, recs, 2)
	assert.Equal(t, "run2", recs[0].Name)
	assert.Equal(t, "run1", recs[1].Name)
}

func TestIndex_NotFoundVsStale(t *testing.T) {
	root := t.TempDir()
	ix := New(root)

	_, err := ix.Get(map[string]any{"x": 1.0})
	require.ErrorIs(t, err, core.ErrNotFound)

	dir := mkRunDir(t, root, "run0")
	require.NoError(t, ix.Put(mustEntry(t, map[string]any{"x": 1.0}), "run0", dir))
	require.NoError(t, os.RemoveAll(dir))

	_, err = ix.Get(map[string]any{"x": 1.0})
	require.ErrorIs(t, err, core.ErrStaleIndex)
	assert.NotErrorIs(t, err, core.ErrNotFound)
}

func TestIndex_PhaseLookup(t *testing.T) {
	root := t.TempDir()
	ix := New(root)

	withPhase := func(phase string) func(o *core.EntryOptions) {
		return func(o *core.EntryOptions) { o.Phase = phase }
	}

	dir2 := mkRunDir(t, root, "p2")
	dir3 := mkRunDir(t, root, "p3")
	require.NoError(t, ix.Put(mustEntry(t, map[string]any{"x": 1.0}, withPhase("phase2")), "p2", dir2))
	require.NoError(t, ix.Put(mustEntry(t, map[string]any{"x": 1.0}, withPhase("phase3")), "p3", dir3))

	// same bare parameters exist under both phases; the first-recorded
	// phase wins
	got, err := ix.Get(map[string]any{"x": 1.0})
	require.NoError(t, err)
	assert.Equal(t, dir2, got)
}

func TestIndex_GetNearest(t *testing.T) {
	root := t.TempDir()
	ix := New(root)

	dirs := make(map[float64]string)
	for i, x := range []float64{1, 2, 3} {
		dir := mkRunDir(t, root, names[i])
		require.NoError(t, ix.Put(mustEntry(t, map[string]any{"x": x, "y": 5.0}), names[i], dir))
		dirs[x] = dir
	}

	got, err := ix.GetNearest(map[string]any{"x": 2.2, "y": 5.0})
	require.NoError(t, err)
	assert.Equal(t, dirs[2], got)

	// ties snap toward the lower axis value
	got, err = ix.GetNearest(map[string]any{"x": 1.5, "y": 5.0})
	require.NoError(t, err)
	assert.Equal(t, dirs[1], got)

	// out-of-range queries clamp to the nearest extreme
	got, err = ix.GetNearest(map[string]any{"x": 100.0, "y": 5.0})
	require.NoError(t, err)
	assert.Equal(t, dirs[3], got)

	// y never varies, so it is not an axis and must match exactly
	_, err = ix.GetNearest(map[string]any{"x": 2.0, "y": 6.0})
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestIndex_RangeOrder(t *testing.T) {
	root := t.TempDir()
	ix := New(root)

	want := []string{"run0", "run1", "run2"}
	for i, name := range want {
		require.NoError(t, ix.Put(mustEntry(t, map[string]any{"x": float64(i)}), name, mkRunDir(t, root, name)))
	}

	var got []string
	ix.Range(func(params core.ParamSet, dir string) bool {
		got = append(got, filepath.Base(dir))
		return true
	})
	assert.Equal(t, want, got)

	// iteration stops when fn returns false
	count := 0
	ix.Range(func(core.ParamSet, string) bool {
		count++
		return false
	})
	assert.Equal(t, 1, count)
}

func TestIndex_RecordsAreCopies(t *testing.T) {
	root := t.TempDir()
	ix := New(root)
	require.NoError(t, ix.Put(mustEntry(t, map[string]any{"x": 1.0}), "run0", mkRunDir(t, root, "run0")))

	recs := ix.Records()
	recs[0].Params["x"] = core.NumberVal(99)

	fresh := ix.Records()
	assert.True(t, fresh[0].Params["x"].Equal(core.NumberVal(1)))
}

func TestIndex_Merge(t *testing.T) {
	rootA := t.TempDir()
	rootB := t.TempDir()

	a := New(rootA)
	b := New(rootB)

	paramsA := map[string]any{"x": 1.0}
	paramsB := map[string]any{"x": 2.0}
	dirA := mkRunDir(t, rootA, "run0")
	dirB := mkRunDir(t, rootB, "run0")
	require.NoError(t, a.Put(mustEntry(t, paramsA), "run0", dirA))
	require.NoError(t, b.Put(mustEntry(t, paramsB), "run0", dirB))

	require.NoError(t, a.Merge(b))
	assert.Equal(t, 2, a.Len())

	// merged records keep pointing into the other tree
	got, err := a.Get(paramsB)
	require.NoError(t, err)
	assert.Equal(t, dirB, got)
}

func TestIndex_MergeCollisionIsAtomic(t *testing.T) {
	rootA := t.TempDir()
	rootB := t.TempDir()

	a := New(rootA)
	require.NoError(t, a.Put(mustEntry(t, map[string]any{"x": 1.0}), "run0", mkRunDir(t, rootA, "run0")))

	b := New(rootB)
	paramsNew := map[string]any{"x": 9.0}
	require.NoError(t, b.Put(mustEntry(t, paramsNew), "run0", mkRunDir(t, rootB, "run0")))
	require.NoError(t, b.Put(mustEntry(t, map[string]any{"x": 1.0}), "run1", mkRunDir(t, rootB, "run1")))

	err := a.Merge(b)
	require.ErrorIs(t, err, core.ErrDuplicateKey)

	// nothing from b landed, not even the non-colliding record
	assert.Equal(t, 1, a.Len())
	_, err = a.Get(paramsNew)
	assert.ErrorIs(t, err, core.ErrNotFound)

	// with overwrite the whole merge goes through
	require.NoError(t, a.Merge(b, core.WithOverwrite()))
	assert.Equal(t, 2, a.Len())
	got, err := a.Get(map[string]any{"x": 1.0})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(rootB, "run1"), got)
}

func TestIndex_VaryingAxes(t *testing.T) {
	root := t.TempDir()
	ix := New(root)

	for i, x := range []float64{3, 1, 2} {
		e := mustEntry(t, map[string]any{"x": x, "y": 5.0}, func(o *core.EntryOptions) {
			o.SeedFields = []string{"seed"}
			o.SeedSource = counterSeeds(uint32(i * 10))
		})
		require.NoError(t, ix.Put(e, names[i], mkRunDir(t, root, names[i])))
	}

	axes := ix.VaryingAxes()
	require.Len(t, axes, 1)
	require.Len(t, axes["x"], 3)
	assert.True(t, axes["x"][0].Equal(core.NumberVal(1)))
	assert.True(t, axes["x"][2].Equal(core.NumberVal(3)))

	// a later Put invalidates the cached axes
	require.NoError(t, ix.Put(mustEntry(t, map[string]any{"x": 1.0, "y": 6.0}), "run3", mkRunDir(t, root, "run3")))
	axes = ix.VaryingAxes()
	require.Len(t, axes, 2)
	assert.Len(t, axes["y"], 2)
}
