// Command gridsweep runs simulation parameter sweeps and answers queries
// against the result index they produce.
//
// A sweep is described twice: an HCL manifest declares WHAT to run (the
// parameter axes and constants), a YAML profile declares HOW to run it (the
// simulation command, the execution environment, cluster resources). Keeping
// the two apart lets the same manifest run on a laptop and on a SLURM
// cluster by switching profiles.
//
// Usage:
//
//	gridsweep run   --manifest sweep.hcl [--sweep name] [--root dir] [--overwrite]
//	gridsweep info  [--root dir]
//	gridsweep get   [--root dir] -p name=value [-p name=value ...] [--nearest]
//	gridsweep merge [--root dir] --from other-root [--overwrite]
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hupe1980/gridsweep/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// globalOptions are persistent flags shared by every subcommand.
type globalOptions struct {
	configPath string
	verbose    bool
}

// logger builds the CLI logger: human-readable text on stderr, so stdout
// stays reserved for command output that scripts can consume.
func (g *globalOptions) logger() *logging.SweepLogger {
	level := logging.LogLevelInfo
	if g.verbose {
		level = logging.LogLevelDebug
	}

	return logging.NewLogger(&logging.LoggerConfig{
		Level:     level,
		Format:    "text",
		Output:    os.Stderr,
		Component: "cli",
	})
}

func newRootCmd() *cobra.Command {
	global := &globalOptions{}

	cmd := &cobra.Command{
		Use:           "gridsweep",
		Short:         "Run simulation parameter sweeps and query their result index",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&global.configPath, "config", "c", "", "profile file (default: gridsweep.yaml in . or ./config)")
	cmd.PersistentFlags().BoolVarP(&global.verbose, "verbose", "v", false, "enable debug logging")

	cmd.AddCommand(newRunCmd(global))
	cmd.AddCommand(newInfoCmd(global))
	cmd.AddCommand(newGetCmd(global))
	cmd.AddCommand(newMergeCmd(global))

	return cmd
}
