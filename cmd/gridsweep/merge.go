package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/gridsweep/core"
	"github.com/hupe1980/gridsweep/index"
)

func newMergeCmd(global *globalOptions) *cobra.Command {
	var (
		rootDir   string
		fromDir   string
		overwrite bool
	)

	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Fold another index's records into this one",
		Long: `Loads the index under --from and merges its records into the index
under --root, then persists. Records whose configuration is already
present fail the merge unless --overwrite replaces them. Typical use is
collecting sweeps run on different machines into one index.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := global.logger()

			target, err := index.Load(rootDir, func(o *index.Options) {
				o.Logger = logger
			})
			if err != nil {
				return fmt.Errorf("loading target index: %w", err)
			}

			source, err := index.Load(fromDir, func(o *index.Options) {
				o.Logger = logger
			})
			if err != nil {
				return fmt.Errorf("loading source index: %w", err)
			}

			var optFns []func(o *core.PutOptions)
			if overwrite {
				optFns = append(optFns, core.WithOverwrite())
			}
			if err := target.Merge(source, optFns...); err != nil {
				return err
			}
			if err := target.Persist(); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "merged %d records from %s; index now holds %d entries\n",
				source.Len(), fromDir, target.Len())

			return nil
		},
	}

	cmd.Flags().StringVar(&rootDir, "root", ".", "result root holding the target index")
	cmd.Flags().StringVar(&fromDir, "from", "", "result root holding the source index (required)")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace records whose configuration is already present")
	_ = cmd.MarkFlagRequired("from")

	return cmd
}
