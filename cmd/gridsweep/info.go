package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hupe1980/gridsweep/core"
	"github.com/hupe1980/gridsweep/index"
)

func newInfoCmd(global *globalOptions) *cobra.Command {
	var rootDir string

	cmd := &cobra.Command{
		Use:   "info",
		Short: "Summarize the result index under a root directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			ix, err := index.Load(rootDir, func(o *index.Options) {
				o.Logger = global.logger()
			})
			if err != nil {
				return err
			}

			printInfo(cmd.OutOrStdout(), ix)

			return nil
		},
	}

	cmd.Flags().StringVar(&rootDir, "root", ".", "result root holding the index")

	return cmd
}

func printInfo(w io.Writer, ix *index.Index) {
	fmt.Fprintf(w, "index at %s\n", ix.Root())
	if info := ix.Info(); info != "" {
		fmt.Fprintf(w, "  info:    %s\n", info)
	}
	fmt.Fprintf(w, "  entries: %d\n", ix.Len())

	if p := ix.Provenance(); p.Library != "" {
		fmt.Fprintf(w, "  written: %s %s", p.Library, p.Version)
		if p.RunID != "" {
			fmt.Fprintf(w, " (run %s)", p.RunID)
		}
		if !p.WrittenAt.IsZero() {
			fmt.Fprintf(w, " at %s", p.WrittenAt.Format("2006-01-02 15:04:05 MST"))
		}
		fmt.Fprintln(w)
	}

	axes := ix.VaryingAxes()
	if len(axes) == 0 {
		return
	}

	names := make([]string, 0, len(axes))
	for name := range axes {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(w, "  axes:")
	for _, name := range names {
		fmt.Fprintf(w, "    %s: %s\n", name, formatAxis(axes[name]))
	}
}

// formatAxis renders an axis value list, eliding the middle of long ones.
func formatAxis(values []core.Value) string {
	const headTail = 3

	strs := make([]string, len(values))
	for i, v := range values {
		strs[i] = v.String()
	}

	if len(strs) > 2*headTail+1 {
		elided := append(strs[:headTail:headTail], "...")
		strs = append(elided, strs[len(strs)-headTail:]...)
	}

	return fmt.Sprintf("[%s] (%d values)", strings.Join(strs, ", "), len(values))
}
