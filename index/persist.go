package index

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/hupe1980/gridsweep/core"
)

const (
	// ArtifactName is the index artifact filename under the root.
	ArtifactName = "index.json"

	// SummaryName is the human-readable summary filename under the root.
	SummaryName = "info.txt"

	// SchemaVersion is the artifact schema written by this library,
	// major.minor. Minor bumps add fields; major bumps break readers.
	SchemaVersion = "2.0"
)

// artifact is the on-disk shape of an index.
type artifact struct {
	SchemaVersion string                  `json:"schema_version"`
	Provenance    core.Provenance         `json:"provenance"`
	Info          string                  `json:"info,omitempty"`
	Axes          map[string][]core.Value `json:"axes,omitempty"`
	Records       []core.IndexRecord      `json:"records"`
}

// Persist writes the index artifact to <root>/index.json. The write is
// atomic: a temp file in the same directory is synced and renamed over the
// artifact, so a crash leaves either the old or the new version, never a torn
// one. Failures wrap ErrIndexPersist.
func (ix *Index) Persist() error {
	ix.mu.Lock()
	ix.prov.WrittenAt = time.Now().UTC()
	art := artifact{
		SchemaVersion: SchemaVersion,
		Provenance:    ix.prov,
		Info:          ix.info,
		Records:       make([]core.IndexRecord, 0, len(ix.order)),
	}
	for _, key := range ix.order {
		art.Records = append(art.Records, copyRecord(*ix.records[key]))
	}
	if ix.axesDirty || ix.axes == nil {
		ix.axes = computeAxes(ix.records, ix.order)
		ix.axesDirty = false
	}
	art.Axes = ix.axes
	root := ix.root
	ix.mu.Unlock()

	data, err := json.MarshalIndent(art, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encoding artifact: %w", core.ErrIndexPersist, err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("%w: creating root %s: %w", core.ErrIndexPersist, root, err)
	}

	path := filepath.Join(root, ArtifactName)
	if err := writeFileAtomic(path, data); err != nil {
		return fmt.Errorf("%w: writing %s: %w", core.ErrIndexPersist, path, err)
	}

	// the artifact is the source of truth; a missing summary is only noise
	if err := ix.WriteSummary(); err != nil {
		ix.logger.Warn("Result summary not written", "error", err)
	}

	ix.logger.Debug("Index persisted", "path", path, "records", len(art.Records))
	return nil
}

// writeFileAtomic writes data via a temp file, fsync and rename, then syncs
// the directory so the rename itself is durable.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}

	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}

// Load reads the index artifact under root. Artifacts from older library
// versions load with absent fields defaulted; artifacts with a newer major
// schema version are rejected. Canonical keys are recomputed from the stored
// parameters, so the key derivation in force at load time is authoritative.
func Load(root string, optFns ...func(o *Options)) (*Index, error) {
	path := filepath.Join(filepath.Clean(root), ArtifactName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: no index artifact at %s", core.ErrNotFound, path)
		}
		return nil, fmt.Errorf("reading index artifact: %w", err)
	}

	var art artifact
	if err := json.Unmarshal(data, &art); err != nil {
		return nil, fmt.Errorf("parsing index artifact %s: %w", path, err)
	}
	if err := checkSchemaVersion(art.SchemaVersion); err != nil {
		return nil, fmt.Errorf("index artifact %s: %w", path, err)
	}

	ix := New(root, optFns...)
	ix.info = art.Info
	if art.Provenance.Library != "" {
		ix.prov = art.Provenance
	}

	for _, rec := range art.Records {
		if rec.Params == nil {
			rec.Params = make(core.ParamSet)
		}
		rec.Key = core.KeyOf(rec.Phase, rec.Params, rec.GeneratedSeeds...)
		if _, ok := ix.records[rec.Key]; ok {
			ix.logger.Warn("Dropping duplicate record in artifact", "name", rec.Name, "key", rec.Key)
			continue
		}
		if err := ix.insert(copyRecord(rec), false); err != nil {
			return nil, err
		}
	}

	return ix, nil
}

// checkSchemaVersion accepts same-or-older major versions. An empty version
// marks a pre-versioning artifact and loads as-is.
func checkSchemaVersion(v string) error {
	if v == "" {
		return nil
	}
	major, err := strconv.Atoi(strings.SplitN(v, ".", 2)[0])
	if err != nil {
		return fmt.Errorf("malformed schema version %q", v)
	}
	current, _ := strconv.Atoi(strings.SplitN(SchemaVersion, ".", 2)[0])
	if major > current {
		return fmt.Errorf("schema version %s is newer than supported %s", v, SchemaVersion)
	}
	return nil
}
