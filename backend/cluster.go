package backend

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/gridsweep/core"
	"github.com/hupe1980/gridsweep/logging"
)

// Compile-time check that Cluster satisfies the backend contract.
var _ core.Backend = (*Cluster)(nil)

// SubmitDirName is the directory under the run root holding job scripts and
// scheduler logs.
const SubmitDirName = ".submit"

// ClusterOptions configures a Cluster backend.
type ClusterOptions struct {
	// SubmitDir overrides where job scripts and scheduler logs are written.
	// Defaults to <run root>/.submit, derived from the unit directories.
	SubmitDir string

	// PollInterval is the delay between scheduler status probes.
	// Defaults to 5 seconds.
	PollInterval time.Duration

	// Logger receives submission diagnostics. Defaults to a no-op logger.
	Logger logging.Logger
}

// Cluster executes batches through an external batch scheduler. Each batch
// becomes one job: a shell script running every unit's command line in turn,
// submitted with the requested resources and polled until terminal. The
// backend does no local compute; it blocks only on the terminal-state wait.
// Jobs are independent, so one batch failing never masks sibling successes.
type Cluster struct {
	scheduler core.Scheduler
	submitDir string
	poll      time.Duration
	logger    logging.Logger
}

// NewCluster creates a scheduler-backed backend.
func NewCluster(scheduler core.Scheduler, optFns ...func(o *ClusterOptions)) *Cluster {
	opts := ClusterOptions{
		PollInterval: 5 * time.Second,
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &Cluster{
		scheduler: scheduler,
		submitDir: opts.SubmitDir,
		poll:      opts.PollInterval,
		logger:    opts.Logger,
	}
}

// Name implements core.Backend.
func (c *Cluster) Name() string { return "cluster" }

// Execute submits one job per batch and streams outcomes as jobs reach a
// terminal state. Canceling ctx stops submitting and abandons the waits; jobs
// already on the scheduler keep running.
func (c *Cluster) Execute(ctx context.Context, batches []core.Batch, opts core.ExecOptions) (<-chan core.BatchOutcome, error) {
	if c.scheduler == nil {
		return nil, errors.New("cluster backend requires a scheduler")
	}

	out := make(chan core.BatchOutcome, len(batches))
	if len(batches) == 0 {
		close(out)
		return out, nil
	}

	var wg sync.WaitGroup
	for _, batch := range batches {
		wg.Add(1)
		go func(b core.Batch) {
			defer wg.Done()
			out <- c.runBatch(ctx, b, opts)
		}(batch)
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	c.logger.Debug("Cluster dispatch started", "batches", len(batches))
	return out, nil
}

// runBatch prepares the batch's unit dirs, writes its job script, submits it
// and waits for a terminal state.
func (c *Cluster) runBatch(ctx context.Context, batch core.Batch, opts core.ExecOptions) core.BatchOutcome {
	if err := ctx.Err(); err != nil {
		return core.FailBatch(batch, fmt.Errorf("batch %d not submitted: %w", batch.Seq, err))
	}

	// dir preparation is local filesystem work; finish it even if the run
	// is canceled mid-write
	prepCtx := context.WithoutCancel(ctx)
	for _, unit := range batch.Units {
		if err := prepareUnit(prepCtx, unit, opts.Renderer); err != nil {
			return core.FailBatch(batch, err)
		}
	}

	submitDir, err := c.submitDirFor(batch)
	if err != nil {
		return core.FailBatch(batch, err)
	}
	if err := os.MkdirAll(submitDir, 0o755); err != nil {
		return core.FailBatch(batch, fmt.Errorf("creating submit dir %s: %w", submitDir, err))
	}

	scriptPath := filepath.Join(submitDir, fmt.Sprintf("batch%d.sh", batch.Seq))
	if err := os.WriteFile(scriptPath, []byte(buildScript(batch, opts)), 0o755); err != nil {
		return core.FailBatch(batch, fmt.Errorf("writing job script %s: %w", scriptPath, err))
	}

	spec := core.JobSpec{
		Name:      fmt.Sprintf("gridsweep-b%d", batch.Seq),
		Script:    scriptPath,
		WorkDir:   filepath.Dir(submitDir),
		Stdout:    filepath.Join(submitDir, fmt.Sprintf("batch%d.out", batch.Seq)),
		Stderr:    filepath.Join(submitDir, fmt.Sprintf("batch%d.err", batch.Seq)),
		Resources: opts.Resources,
	}

	jobID, err := c.scheduler.Submit(ctx, spec)
	if err != nil {
		return core.FailBatch(batch, fmt.Errorf("submitting batch %d: %w", batch.Seq, err))
	}
	c.logger.Info("Job submitted", "job_id", jobID, "batch", batch.Seq, "units", len(batch.Units))

	start := time.Now()
	state, err := c.awaitJob(ctx, jobID, opts.BatchTimeout)
	if err != nil {
		return core.FailBatch(batch, err)
	}
	if state != core.JobStateSucceeded {
		outcome := core.FailBatch(batch, &core.BackendExecutionError{
			Unit:     spec.Name,
			ExitCode: -1,
			Cause:    fmt.Errorf("job %s finished %s", jobID, state),
		})
		if diag := tailFile(spec.Stderr, diagnosticTailBytes); diag != "" {
			for i := range outcome.Results {
				outcome.Results[i].Diagnostic = diag
			}
		}
		return outcome
	}

	elapsed := time.Since(start)
	results := make([]core.UnitResult, 0, len(batch.Units))
	for _, unit := range batch.Units {
		results = append(results, core.UnitResult{
			Name:     unit.Name,
			Key:      unit.Entry.Key(),
			Dir:      unit.Dir,
			Status:   core.UnitSucceeded,
			Duration: elapsed,
		})
	}
	return core.BatchOutcome{Seq: batch.Seq, Results: results}
}

// awaitJob polls the scheduler until the job is terminal. The batch timeout
// and ctx bound only the wait; a job left behind keeps running.
func (c *Cluster) awaitJob(ctx context.Context, jobID string, timeout time.Duration) (core.JobState, error) {
	waitCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	ticker := time.NewTicker(c.poll)
	defer ticker.Stop()

	for {
		state, err := c.scheduler.Status(waitCtx, jobID)
		if err != nil {
			return state, fmt.Errorf("polling job %s: %w", jobID, err)
		}
		if state.Terminal() {
			return state, nil
		}

		select {
		case <-waitCtx.Done():
			return state, fmt.Errorf("abandoned wait for job %s in state %s: %w", jobID, state, waitCtx.Err())
		case <-ticker.C:
		}
	}
}

// submitDirFor resolves the submit directory: the explicit option, or
// <run root>/.submit derived from the batch's first unit.
func (c *Cluster) submitDirFor(batch core.Batch) (string, error) {
	if c.submitDir != "" {
		return c.submitDir, nil
	}
	if len(batch.Units) == 0 {
		return "", fmt.Errorf("batch %d has no units to derive a submit dir from", batch.Seq)
	}
	return filepath.Join(filepath.Dir(batch.Units[0].Dir), SubmitDirName), nil
}

// buildScript renders the batch's job script: every unit's command line (and
// optional post command) in sequence, the job failing if any line failed.
func buildScript(batch core.Batch, opts core.ExecOptions) string {
	var b strings.Builder
	b.WriteString("#!/bin/sh\n")
	b.WriteString("status=0\n")
	for _, unit := range batch.Units {
		if len(opts.Command) > 0 {
			b.WriteString(commandLine(opts.Command, unit.Dir) + " || status=1\n")
		}
		if len(opts.PostCommand) > 0 {
			b.WriteString(commandLine(opts.PostCommand, unit.Dir) + " || status=1\n")
		}
	}
	b.WriteString("exit $status\n")
	return b.String()
}

// commandLine renders argv plus the unit dir as a shell command line.
func commandLine(argv []string, dir string) string {
	parts := make([]string, 0, len(argv)+1)
	for _, a := range argv {
		parts = append(parts, shellQuote(a))
	}
	parts = append(parts, shellQuote(dir))
	return strings.Join(parts, " ")
}

// shellQuote single-quotes s for POSIX sh, escaping embedded quotes.
func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsAny(s, " \t\n'\"\\$&|;<>()*?[]~`#") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
