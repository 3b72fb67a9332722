package index

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hupe1980/gridsweep/core"
)

// WriteSummary writes a human-readable companion to the artifact at
// <root>/info.txt: schema version, collection info and a per-axis value
// summary. The summary is informational only and never read back.
func (ix *Index) WriteSummary() error {
	ix.mu.RLock()
	info := ix.info
	count := len(ix.order)
	phases := append([]string(nil), ix.phases...)
	ix.mu.RUnlock()

	axes := ix.VaryingAxes()

	var b strings.Builder
	fmt.Fprintf(&b, "gridsweep result index, schema %s\n", SchemaVersion)
	if info != "" {
		b.WriteString(info)
		if !strings.HasSuffix(info, "\n") {
			b.WriteByte('\n')
		}
	}
	b.WriteByte('\n')

	fmt.Fprintf(&b, "%d results\n", count)
	if len(phases) == 1 && phases[0] != "" {
		fmt.Fprintf(&b, "phase: %s\n", phases[0])
	} else if len(phases) > 1 {
		fmt.Fprintf(&b, "phases: %s\n", strings.Join(phases, ", "))
	}

	if len(axes) > 0 {
		b.WriteString("axes:\n")
		names := make([]string, 0, len(axes))
		for name := range axes {
			names = append(names, name)
		}
		// map order is random; keep the summary stable
		sort.Strings(names)
		for _, name := range names {
			b.WriteString("  " + axisLine(name, axes[name]) + "\n")
		}
	}

	path := filepath.Join(ix.root, SummaryName)
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("writing summary %s: %w", path, err)
	}
	return nil
}

// axisLine formats one axis. Numeric axes report their range; others just
// the value count.
func axisLine(name string, vals []core.Value) string {
	numeric := len(vals) > 0
	for _, v := range vals {
		if v.Kind() != core.KindNumber {
			numeric = false
			break
		}
	}
	if numeric {
		// values are sorted, so first and last bound the range
		return fmt.Sprintf("%s: %d values in [%s, %s]", name, len(vals), vals[0], vals[len(vals)-1])
	}
	return fmt.Sprintf("%s: %d values", name, len(vals))
}
