package index

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/gridsweep/core"
)

func TestPersistLoad_RoundTrip(t *testing.T) {
	root := t.TempDir()
	ix := New(root, func(o *Options) {
		o.Info = "tritium endpoint scan"
	})
	ix.SetProvenance(core.Provenance{Library: "gridsweep", Version: core.Version, RunID: "run-abc"})

	for i, x := range []float64{1, 2, 3} {
		e := mustEntry(t, map[string]any{"x": x, "y": 5.0}, func(o *core.EntryOptions) {
			o.Phase = "phase2"
			o.SeedFields = []string{"seed"}
			o.SeedSource = counterSeeds(uint32(i * 10))
		})
		require.NoError(t, ix.Put(e, names[i], mkRunDir(t, root, names[i])))
	}
	require.NoError(t, ix.Persist())

	loaded, err := Load(root)
	require.NoError(t, err)

	assert.Equal(t, ix.Info(), loaded.Info())
	assert.Equal(t, ix.Provenance(), loaded.Provenance())
	assert.Equal(t, ix.Records(), loaded.Records())
	assert.Equal(t, ix.VaryingAxes(), loaded.VaryingAxes())

	// lookups work identically on the reloaded index
	got, err := loaded.Get(map[string]any{"x": 2.0, "y": 5.0})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "run1"), got)

	// persisting the reloaded index reproduces the same records
	require.NoError(t, loaded.Persist())
	again, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, ix.Records(), again.Records())
}

func TestPersist_LeavesNoTempFiles(t *testing.T) {
	root := t.TempDir()
	ix := New(root)
	require.NoError(t, ix.Put(mustEntry(t, map[string]any{"x": 1.0}), "run0", mkRunDir(t, root, "run0")))

	require.NoError(t, ix.Persist())
	require.NoError(t, ix.Persist())

	leftovers, err := filepath.Glob(filepath.Join(root, ArtifactName+".tmp-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)

	data, err := os.ReadFile(filepath.Join(root, ArtifactName))
	require.NoError(t, err)
	var art artifact
	require.NoError(t, json.Unmarshal(data, &art))
	assert.Equal(t, SchemaVersion, art.SchemaVersion)
	assert.Len(t, art.Records, 1)
}

func TestLoad_OlderSchemaVersion(t *testing.T) {
	root := t.TempDir()
	mkRunDir(t, root, "run0")
	mkRunDir(t, root, "run1")

	// a minimal artifact from an older writer: no axes, no provenance,
	// no generated seeds
	old := `{
  "schema_version": "1.0",
  "records": [
    {"name": "run0", "params": {"x": 1}, "dir": "run0"},
    {"name": "run1", "params": {"x": 2}, "dir": "run1"}
  ]
}`
	require.NoError(t, os.WriteFile(filepath.Join(root, ArtifactName), []byte(old), 0o644))

	ix, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, 2, ix.Len())

	got, err := ix.Get(map[string]any{"x": 2.0})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "run1"), got)

	axes := ix.VaryingAxes()
	require.Len(t, axes, 1)
	assert.Len(t, axes["x"], 2)
}

func TestLoad_RejectsNewerMajorVersion(t *testing.T) {
	root := t.TempDir()
	artifact := `{"schema_version": "3.0", "records": []}`
	require.NoError(t, os.WriteFile(filepath.Join(root, ArtifactName), []byte(artifact), 0o644))

	_, err := Load(root)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "newer than supported")
}

func TestLoad_MalformedArtifacts(t *testing.T) {
	t.Run("bad schema version", func(t *testing.T) {
		root := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(root, ArtifactName), []byte(`{"schema_version": "x.y"}`), 0o644))

		_, err := Load(root)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "malformed schema version")
	})

	t.Run("truncated json", func(t *testing.T) {
		root := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(root, ArtifactName), []byte(`{"schema_ver`), 0o644))

		_, err := Load(root)
		require.Error(t, err)
	})

	t.Run("missing artifact", func(t *testing.T) {
		_, err := Load(t.TempDir())
		require.ErrorIs(t, err, core.ErrNotFound)
	})
}

func TestWriteSummary(t *testing.T) {
	root := t.TempDir()
	ix := New(root, func(o *Options) {
		o.Info = "pitch angle scan"
	})

	withPhase := func(o *core.EntryOptions) { o.Phase = "phase2" }
	for i, x := range []float64{1, 2, 3} {
		require.NoError(t, ix.Put(mustEntry(t, map[string]any{"x": x, "y": 5.0}, withPhase), names[i], mkRunDir(t, root, names[i])))
	}
	require.NoError(t, ix.WriteSummary())

	data, err := os.ReadFile(filepath.Join(root, SummaryName))
	require.NoError(t, err)
	text := string(data)

	assert.Contains(t, text, "gridsweep result index, schema "+SchemaVersion)
	assert.Contains(t, text, "pitch angle scan")
	assert.Contains(t, text, "3 results")
	assert.Contains(t, text, "phase: phase2")
	assert.Contains(t, text, "x: 3 values in [1, 3]")
	assert.NotContains(t, text, "y:")
}
