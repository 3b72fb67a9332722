package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/gridsweep/config"
	"github.com/hupe1980/gridsweep/core"
)

// execute runs the CLI with a fresh command tree and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)

	err := cmd.Execute()

	return out.String(), err
}

func TestCLI_RunInfoGet(t *testing.T) {
	dir := t.TempDir()
	resultRoot := filepath.Join(dir, "results")

	manifestPath := filepath.Join(dir, "sweep.hcl")
	require.NoError(t, os.WriteFile(manifestPath, []byte(`
sweep "demo" {
  info = "demo scan over x"

  axis "x" {
    values = [1, 2]
  }
}
`), 0o644))

	// The appended unit directory lands in $0, the script just succeeds.
	profilePath := filepath.Join(dir, "profile.yaml")
	require.NoError(t, os.WriteFile(profilePath, []byte(fmt.Sprintf(`
environment: local
root_dir: %s
command: ["/bin/sh", "-c", "exit 0"]
local:
  workers: 2
`, resultRoot)), 0o644))

	out, err := execute(t, "run", "--config", profilePath, "--manifest", manifestPath)
	require.NoError(t, err)
	assert.Contains(t, out, "2 indexed, 0 failed, 0 skipped")
	assert.Contains(t, out, "run0")
	assert.Contains(t, out, "run1")

	out, err = execute(t, "info", "--root", resultRoot)
	require.NoError(t, err)
	assert.Contains(t, out, "entries: 2")
	assert.Contains(t, out, "demo scan over x")
	assert.Contains(t, out, "x: [1, 2]")

	out, err = execute(t, "get", "--root", resultRoot, "-p", "x=2")
	require.NoError(t, err)
	assert.DirExists(t, strings.TrimSpace(out))

	// A second run skips everything that is already indexed.
	out, err = execute(t, "run", "--config", profilePath, "--manifest", manifestPath)
	require.NoError(t, err)
	assert.Contains(t, out, "0 indexed, 0 failed, 2 skipped")
}

func TestCLI_GetMissingParameter(t *testing.T) {
	dir := t.TempDir()
	resultRoot := filepath.Join(dir, "results")

	manifestPath := filepath.Join(dir, "sweep.hcl")
	require.NoError(t, os.WriteFile(manifestPath, []byte(`
sweep "demo" {
  axis "x" {
    values = [1]
  }
}
`), 0o644))

	profilePath := filepath.Join(dir, "profile.yaml")
	require.NoError(t, os.WriteFile(profilePath, []byte(fmt.Sprintf(`
environment: local
root_dir: %s
command: ["/bin/sh", "-c", "exit 0"]
`, resultRoot)), 0o644))

	_, err := execute(t, "run", "--config", profilePath, "--manifest", manifestPath)
	require.NoError(t, err)

	_, err = execute(t, "get", "--root", resultRoot, "-p", "x=3")
	require.ErrorIs(t, err, core.ErrNotFound)
	assert.Contains(t, err.Error(), "--nearest")

	out, err := execute(t, "get", "--root", resultRoot, "-p", "x=3", "--nearest")
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}

func TestCLI_Merge(t *testing.T) {
	dir := t.TempDir()
	rootA := filepath.Join(dir, "a")
	rootB := filepath.Join(dir, "b")

	writeSweep := func(name string, value int) (string, string) {
		manifestPath := filepath.Join(dir, name+".hcl")
		require.NoError(t, os.WriteFile(manifestPath, []byte(fmt.Sprintf(`
sweep %q {
  axis "x" {
    values = [%d]
  }
}
`, name, value)), 0o644))

		profilePath := filepath.Join(dir, name+".yaml")
		require.NoError(t, os.WriteFile(profilePath, []byte(fmt.Sprintf(`
environment: local
root_dir: %s
command: ["/bin/sh", "-c", "exit 0"]
`, filepath.Join(dir, name))), 0o644))

		return manifestPath, profilePath
	}

	manA, profA := writeSweep("a", 1)
	manB, profB := writeSweep("b", 2)

	_, err := execute(t, "run", "--config", profA, "--manifest", manA)
	require.NoError(t, err)
	_, err = execute(t, "run", "--config", profB, "--manifest", manB)
	require.NoError(t, err)

	out, err := execute(t, "merge", "--root", rootA, "--from", rootB)
	require.NoError(t, err)
	assert.Contains(t, out, "merged 1 records")
	assert.Contains(t, out, "index now holds 2 entries")

	// the merged record still resolves into the source tree
	out, err = execute(t, "get", "--root", rootA, "-p", "x=2")
	require.NoError(t, err)
	assert.DirExists(t, strings.TrimSpace(out))

	// a second merge without overwrite collides
	_, err = execute(t, "merge", "--root", rootA, "--from", rootB)
	require.ErrorIs(t, err, core.ErrDuplicateKey)
}

func TestCLI_RunReportsFailures(t *testing.T) {
	dir := t.TempDir()
	resultRoot := filepath.Join(dir, "results")

	manifestPath := filepath.Join(dir, "sweep.hcl")
	require.NoError(t, os.WriteFile(manifestPath, []byte(`
sweep "demo" {
  axis "x" {
    values = [1]
  }
}
`), 0o644))

	profilePath := filepath.Join(dir, "profile.yaml")
	require.NoError(t, os.WriteFile(profilePath, []byte(fmt.Sprintf(`
environment: local
root_dir: %s
command: ["/bin/sh", "-c", "exit 3"]
`, resultRoot)), 0o644))

	out, err := execute(t, "run", "--config", profilePath, "--manifest", manifestPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 1 entries failed")
	assert.Contains(t, out, "1 failed")
}

func TestCLI_RunUnknownSweep(t *testing.T) {
	dir := t.TempDir()

	manifestPath := filepath.Join(dir, "sweep.hcl")
	require.NoError(t, os.WriteFile(manifestPath, []byte(`
sweep "demo" {
  axis "x" {
    values = [1]
  }
}
`), 0o644))

	_, err := execute(t, "run", "--manifest", manifestPath, "--sweep", "nope", "--root", dir)
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestParseParams(t *testing.T) {
	params, err := parseParams([]string{"x=0.001", "mode=fast", "strict=true", "n=42"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"x":      0.001,
		"mode":   "fast",
		"strict": true,
		"n":      float64(42),
	}, params)

	_, err = parseParams([]string{"novalue"})
	require.Error(t, err)

	_, err = parseParams([]string{"=5"})
	require.Error(t, err)
}

func TestFormatAxis(t *testing.T) {
	short := []core.Value{core.NumberVal(1), core.NumberVal(2)}
	assert.Equal(t, "[1, 2] (2 values)", formatAxis(short))

	long := make([]core.Value, 10)
	for i := range long {
		long[i] = core.NumberVal(float64(i))
	}
	assert.Equal(t, "[0, 1, 2, ..., 7, 8, 9] (10 values)", formatAxis(long))
}

func TestEngineConfig(t *testing.T) {
	cfg := &config.Config{Environment: config.EnvironmentLocal, BatchTimeout: 5 * time.Minute}
	cfg.Cluster.BatchSize = 25

	engCfg := engineConfig(cfg)
	assert.Equal(t, 1, engCfg.BatchSize)
	assert.Equal(t, 5*time.Minute, engCfg.BatchTimeout)

	cfg.Environment = config.EnvironmentCluster
	engCfg = engineConfig(cfg)
	assert.Equal(t, 25, engCfg.BatchSize)
}

func TestBuildBackend(t *testing.T) {
	local := &config.Config{Environment: config.EnvironmentLocal}
	local.Local.Workers = 2
	assert.Equal(t, "local", buildBackend(local, nil).Name())

	cluster := &config.Config{Environment: config.EnvironmentCluster}
	cluster.Cluster.PollInterval = time.Second
	assert.Equal(t, "cluster", buildBackend(cluster, nil).Name())
}
