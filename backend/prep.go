package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hupe1980/gridsweep/core"
)

const (
	// ConfigFileName is the serialized entry written into every unit dir.
	ConfigFileName = "config.json"

	// StdoutLogName and StderrLogName hold the captured process output of a
	// unit executed by the local backend.
	StdoutLogName = "log.out"
	StderrLogName = "log.err"

	// diagnosticTailBytes bounds the stderr tail kept in a unit result.
	diagnosticTailBytes = 4096
)

// prepareUnit makes a unit's working directory ready for execution: create
// the dir, render collaborator config files through the optional renderer,
// then serialize the entry itself as config.json. Both backends share this
// step so a result directory looks the same however it was produced.
func prepareUnit(ctx context.Context, unit core.Unit, renderer core.Renderer) error {
	if unit.Entry == nil {
		return fmt.Errorf("%w: unit %s has no entry", core.ErrInvalidParameter, unit.Name)
	}

	if err := os.MkdirAll(unit.Dir, 0o755); err != nil {
		return fmt.Errorf("creating unit dir %s: %w", unit.Dir, err)
	}

	if renderer != nil {
		if err := renderer.Render(ctx, unit.Entry, unit.Dir); err != nil {
			return fmt.Errorf("rendering unit %s: %w", unit.Name, err)
		}
	}

	data, err := json.MarshalIndent(unit.Entry, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding entry for unit %s: %w", unit.Name, err)
	}
	data = append(data, '\n')

	path := filepath.Join(unit.Dir, ConfigFileName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// tailFile returns up to limit bytes from the end of the file, trimmed.
// Missing or unreadable files yield "".
func tailFile(path string, limit int64) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return ""
	}
	offset := info.Size() - limit
	if offset < 0 {
		offset = 0
	}

	buf := make([]byte, info.Size()-offset)
	if _, err := f.ReadAt(buf, offset); err != nil && err != io.EOF {
		return ""
	}
	return strings.TrimSpace(string(buf))
}
