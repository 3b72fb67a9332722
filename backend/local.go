package backend

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/hupe1980/gridsweep/core"
	"github.com/hupe1980/gridsweep/logging"
)

// Compile-time check that Local satisfies the backend contract.
var _ core.Backend = (*Local)(nil)

// LocalOptions configures a Local backend.
type LocalOptions struct {
	// Workers caps the number of batches executing at once. Defaults to
	// runtime.NumCPU(). Excess batches queue; the cap is a hard ceiling.
	Workers int

	// Logger receives execution diagnostics. Defaults to a no-op logger.
	Logger logging.Logger
}

// Local executes units as OS processes on the calling host through a bounded
// pool of worker goroutines. Every unit runs in its own process group with
// stdout and stderr captured to log files in its working directory, so a
// runaway simulation can be killed together with its children and diagnosed
// afterwards.
type Local struct {
	workers int
	logger  logging.Logger
}

// NewLocal creates a local process-pool backend.
func NewLocal(optFns ...func(o *LocalOptions)) *Local {
	opts := LocalOptions{
		Workers: runtime.NumCPU(),
		Logger:  logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &Local{workers: opts.Workers, logger: opts.Logger}
}

// Name implements core.Backend.
func (l *Local) Name() string { return "local" }

// Execute runs the batches on the worker pool. Outcomes stream in completion
// order; the channel closes once every batch has reported. Canceling ctx
// stops launching new batches and fails the unlaunched ones, while batches
// already picked up run to completion bounded only by the batch timeout.
func (l *Local) Execute(ctx context.Context, batches []core.Batch, opts core.ExecOptions) (<-chan core.BatchOutcome, error) {
	out := make(chan core.BatchOutcome, len(batches))
	if len(batches) == 0 {
		close(out)
		return out, nil
	}

	workers := l.workers
	if workers > len(batches) {
		workers = len(batches)
	}

	jobs := make(chan core.Batch)
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for batch := range jobs {
				out <- l.runBatch(ctx, batch, opts)
			}
		}()
	}

	// feeder: hand batches to the pool until done or canceled. The outcome
	// channel is buffered for all batches, so failing the remainder on
	// cancellation never blocks.
	go func() {
		defer close(jobs)
		for _, batch := range batches {
			select {
			case jobs <- batch:
			case <-ctx.Done():
				out <- core.FailBatch(batch, fmt.Errorf("batch %d not launched: %w", batch.Seq, ctx.Err()))
			}
		}
	}()

	go func() {
		wg.Wait()
		close(out)
	}()

	l.logger.Debug("Local dispatch started", "batches", len(batches), "workers", workers)
	return out, nil
}

// runBatch executes a batch's units sequentially. In-flight work is detached
// from the run's cancellation; the per-batch timeout is the only bound.
func (l *Local) runBatch(ctx context.Context, batch core.Batch, opts core.ExecOptions) core.BatchOutcome {
	unitCtx := context.WithoutCancel(ctx)
	if opts.BatchTimeout > 0 {
		var cancel context.CancelFunc
		unitCtx, cancel = context.WithTimeout(unitCtx, opts.BatchTimeout)
		defer cancel()
	}

	outcome := core.BatchOutcome{Seq: batch.Seq, Results: make([]core.UnitResult, 0, len(batch.Units))}
	for _, unit := range batch.Units {
		outcome.Results = append(outcome.Results, l.runUnit(unitCtx, unit, opts))
	}
	return outcome
}

// runUnit prepares the unit dir and runs the command and optional post
// command in it. Any failure is captured in the result, never propagated.
func (l *Local) runUnit(ctx context.Context, unit core.Unit, opts core.ExecOptions) core.UnitResult {
	start := time.Now()
	res := core.UnitResult{Name: unit.Name, Key: unit.Entry.Key(), Dir: unit.Dir, Status: core.UnitRunning}

	fail := func(code int, err error) core.UnitResult {
		res.Status = core.UnitFailed
		res.ExitCode = code
		res.Duration = time.Since(start)
		res.Diagnostic = tailFile(filepath.Join(unit.Dir, StderrLogName), diagnosticTailBytes)
		res.Err = &core.BackendExecutionError{Unit: unit.Name, ExitCode: code, Diagnostic: res.Diagnostic, Cause: err}
		l.logger.Warn("Unit failed", "unit", unit.Name, "exit_code", code, "error", err)
		return res
	}

	if err := prepareUnit(ctx, unit, opts.Renderer); err != nil {
		return fail(-1, err)
	}

	for _, argv := range [][]string{opts.Command, opts.PostCommand} {
		if len(argv) == 0 {
			continue
		}
		if code, err := l.runCommand(ctx, unit.Dir, argv); err != nil {
			return fail(code, err)
		}
	}

	res.Status = core.UnitSucceeded
	res.ExitCode = 0
	res.Duration = time.Since(start)
	l.logger.Debug("Unit finished", "unit", unit.Name, "duration_ms", res.Duration.Milliseconds())
	return res
}

// runCommand starts argv with the unit dir appended as its single positional
// argument, working directory set to the unit dir and output captured to
// log.out / log.err. The process gets its own group so a timeout kills its
// children with it.
func (l *Local) runCommand(ctx context.Context, dir string, argv []string) (int, error) {
	stdout, err := os.OpenFile(filepath.Join(dir, StdoutLogName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return -1, err
	}
	defer stdout.Close()

	stderr, err := os.OpenFile(filepath.Join(dir, StderrLogName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return -1, err
	}
	defer stderr.Close()

	cmd := exec.CommandContext(ctx, argv[0], append(append([]string{}, argv[1:]...), dir)...)
	cmd.Dir = dir
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return -1, fmt.Errorf("starting %s: %w", argv[0], err)
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case <-ctx.Done():
		// negative pid addresses the whole process group
		if cmd.Process != nil {
			_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		}
		<-done
		return -1, ctx.Err()
	case err := <-done:
		if err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				return exitErr.ExitCode(), err
			}
			return -1, err
		}
	}

	return 0, nil
}
