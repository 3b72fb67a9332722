package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hupe1980/gridsweep/core"
	"github.com/hupe1980/gridsweep/index"
)

func newGetCmd(global *globalOptions) *cobra.Command {
	var (
		rootDir string
		params  []string
		nearest bool
	)

	cmd := &cobra.Command{
		Use:   "get",
		Short: "Resolve a parameter set to its result directory",
		Long: `Looks a configuration up in the result index and prints the absolute
directory its results live in. Values are typed the way manifests type
them: true/false parse as booleans, numbers as numbers, everything else
stays a string. With --nearest, numeric values snap to the nearest
recorded axis value before the lookup.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			lookup, err := parseParams(params)
			if err != nil {
				return err
			}
			if len(lookup) == 0 {
				return fmt.Errorf("at least one -p name=value is required")
			}

			ix, err := index.Load(rootDir, func(o *index.Options) {
				o.Logger = global.logger()
			})
			if err != nil {
				return err
			}

			dir, err := resolveDir(ix, lookup, nearest)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), dir)

			return nil
		},
	}

	cmd.Flags().StringVar(&rootDir, "root", ".", "result root holding the index")
	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "parameter as name=value (repeatable)")
	cmd.Flags().BoolVar(&nearest, "nearest", false, "snap numeric values to the nearest recorded axis value")

	return cmd
}

func resolveDir(ix *index.Index, params map[string]any, nearest bool) (string, error) {
	var (
		dir string
		err error
	)
	if nearest {
		dir, err = ix.GetNearest(params)
	} else {
		dir, err = ix.Get(params)
	}

	switch {
	case err == nil:
		return dir, nil
	case errors.Is(err, core.ErrStaleIndex):
		return "", fmt.Errorf("%w (the result directory vanished from disk; re-run the sweep or merge a fresh index)", err)
	case errors.Is(err, core.ErrNotFound) && !nearest:
		return "", fmt.Errorf("%w (numeric axes support --nearest)", err)
	default:
		return "", err
	}
}

// parseParams turns repeated name=value flags into a lookup parameter set.
func parseParams(pairs []string) (map[string]any, error) {
	params := make(map[string]any, len(pairs))

	for _, pair := range pairs {
		name, raw, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid parameter %q, expected name=value", pair)
		}
		params[name] = parseValue(raw)
	}

	return params, nil
}

// parseValue types a flag value the way manifests type theirs.
func parseValue(raw string) any {
	switch raw {
	case "true":
		return true
	case "false":
		return false
	}
	if n, err := strconv.ParseFloat(raw, 64); err == nil {
		return n
	}

	return raw
}
