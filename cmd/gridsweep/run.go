package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/gridsweep"
	"github.com/hupe1980/gridsweep/backend"
	"github.com/hupe1980/gridsweep/backend/slurm"
	"github.com/hupe1980/gridsweep/config"
	"github.com/hupe1980/gridsweep/core"
	"github.com/hupe1980/gridsweep/engine"
	"github.com/hupe1980/gridsweep/logging"
	"github.com/hupe1980/gridsweep/manifest"
)

func newRunCmd(global *globalOptions) *cobra.Command {
	var (
		manifestPath string
		sweepName    string
		rootDir      string
		overwrite    bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a sweep manifest and index the results",
		Long: `Expands the named sweep block of an HCL manifest into a configuration
collection, executes it on the backend the profile selects and commits
every completed configuration into the result index under the root
directory. Entries whose configuration is already indexed are skipped
unless --overwrite is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(cmd, global, manifestPath, sweepName, rootDir, overwrite)
		},
	}

	cmd.Flags().StringVarP(&manifestPath, "manifest", "m", "", "HCL sweep manifest (required)")
	cmd.Flags().StringVarP(&sweepName, "sweep", "s", "", "sweep block to run (default: first in the manifest)")
	cmd.Flags().StringVar(&rootDir, "root", "", "result root, overriding the profile")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "re-run entries that are already indexed")
	_ = cmd.MarkFlagRequired("manifest")

	return cmd
}

func runSweep(cmd *cobra.Command, global *globalOptions, manifestPath, sweepName, rootDir string, overwrite bool) error {
	cfg, err := config.Load(global.configPath)
	if err != nil {
		return err
	}
	if rootDir != "" {
		cfg.RootDir = rootDir
	}

	man, err := manifest.Load(manifestPath)
	if err != nil {
		return err
	}
	if sweepName == "" {
		if len(man.Sweeps) == 0 {
			return fmt.Errorf("manifest %s defines no sweep blocks", manifestPath)
		}
		sweepName = man.Sweeps[0].Name
	}

	col, err := man.Collection(sweepName)
	if err != nil {
		return err
	}

	logger := global.logger()

	gs, err := gridsweep.New(func(o *gridsweep.Options) {
		o.RootDir = cfg.RootDir
		o.Backend = buildBackend(cfg, logger)
		o.EngineConfig = engineConfig(cfg)
		o.Logger = logger
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting sweep",
		"sweep", sweepName,
		"entries", col.Len(),
		"environment", cfg.Environment,
		"root", cfg.RootDir,
	)

	report, runErr := gs.RunCollection(ctx, col, func(o *core.RunOptions) {
		o.Exec = core.ExecOptions{
			Command:     cfg.Command,
			PostCommand: cfg.PostCommand,
			Resources: core.Resources{
				MemoryMB:  cfg.Cluster.MemoryMB,
				TimeLimit: cfg.Cluster.TimeLimit,
				CPUs:      cfg.Cluster.CPUs,
			},
		}
		o.Overwrite = overwrite
	})
	if report != nil {
		logger.LogRunCompletion(report.RunID, report.Indexed, report.Failed, report.Skipped, report.Duration)
		printReport(cmd.OutOrStdout(), report)
	}
	if runErr != nil {
		return runErr
	}
	if report.Failed > 0 {
		return fmt.Errorf("%d of %d entries failed", report.Failed, len(report.Entries))
	}

	return nil
}

// buildBackend selects the execution backend from the profile environment.
func buildBackend(cfg *config.Config, logger logging.Logger) core.Backend {
	if cfg.Environment == config.EnvironmentCluster {
		scheduler := slurm.New(func(o *slurm.Options) {
			o.Partition = cfg.Cluster.Partition
			o.Logger = logger
		})

		return backend.NewCluster(scheduler, func(o *backend.ClusterOptions) {
			o.PollInterval = cfg.Cluster.PollInterval
			o.Logger = logger
		})
	}

	return backend.NewLocal(func(o *backend.LocalOptions) {
		o.Workers = cfg.Local.Workers
		o.Logger = logger
	})
}

// engineConfig maps profile settings onto engine configuration. Batching
// only pays off on the cluster, where it keeps per-job wall clock above the
// scheduler's practical minimum; locally every entry is its own batch.
func engineConfig(cfg *config.Config) engine.Config {
	engCfg := engine.DefaultConfig
	engCfg.BatchTimeout = cfg.BatchTimeout

	if cfg.Environment == config.EnvironmentCluster && cfg.Cluster.BatchSize > 0 {
		engCfg.BatchSize = cfg.Cluster.BatchSize
	}

	return engCfg
}

func printReport(w io.Writer, report *core.RunReport) {
	fmt.Fprintf(w, "run %s (%s backend): %d indexed, %d failed, %d skipped in %s\n",
		report.RunID, report.Backend, report.Indexed, report.Failed, report.Skipped,
		report.Duration.Round(time.Millisecond))

	for _, e := range report.Entries {
		switch {
		case e.Status == core.EntryIndexed:
			fmt.Fprintf(w, "  %-17s %s -> %s\n", e.Status, e.Name, e.Dir)
		case e.Reason != "":
			fmt.Fprintf(w, "  %-17s %s (%s)\n", e.Status, e.Name, e.Reason)
		default:
			fmt.Fprintf(w, "  %-17s %s\n", e.Status, e.Name)
		}
	}
}
