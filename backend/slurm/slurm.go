// Package slurm binds the cluster backend to a SLURM installation through
// its command-line tools. Submit shells out to sbatch and returns the parsed
// job ID; Status asks squeue while the job is queued or running and falls
// back to sacct once the job has left the queue. Site-specific conventions
// (partition, accounting group, extra sbatch flags) are explicit options so
// the package stays usable across clusters.
package slurm

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/hupe1980/gridsweep/core"
	"github.com/hupe1980/gridsweep/logging"
)

// Compile-time check that Scheduler satisfies the scheduler contract.
var _ core.Scheduler = (*Scheduler)(nil)

// Options configures a Scheduler.
type Options struct {
	// Partition selects the SLURM partition (--partition). Empty uses the
	// cluster default.
	Partition string

	// Account charges jobs to an accounting group (--account).
	Account string

	// ExtraArgs are appended verbatim to every sbatch invocation, before
	// the job script. Use them for site-specific flags such as --qos or
	// --constraint.
	ExtraArgs []string

	// SbatchPath, SqueuePath and SacctPath override where the SLURM tools
	// are found. Defaults resolve "sbatch", "squeue" and "sacct" via PATH.
	SbatchPath string
	SqueuePath string
	SacctPath  string

	// Logger receives submission and polling diagnostics. Defaults to a
	// no-op logger.
	Logger logging.Logger
}

// Scheduler submits jobs to SLURM and reports their state.
type Scheduler struct {
	partition string
	account   string
	extraArgs []string
	sbatch    string
	squeue    string
	sacct     string
	logger    logging.Logger
}

// New creates a SLURM scheduler.
func New(optFns ...func(o *Options)) *Scheduler {
	opts := Options{
		SbatchPath: "sbatch",
		SqueuePath: "squeue",
		SacctPath:  "sacct",
		Logger:     logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &Scheduler{
		partition: opts.Partition,
		account:   opts.Account,
		extraArgs: opts.ExtraArgs,
		sbatch:    opts.SbatchPath,
		squeue:    opts.SqueuePath,
		sacct:     opts.SacctPath,
		logger:    opts.Logger,
	}
}

// Submit implements core.Scheduler. It invokes sbatch --parsable and returns
// the job ID, which is the first semicolon-separated field of the first
// output line (federated clusters append the cluster name after the ID).
func (s *Scheduler) Submit(ctx context.Context, spec core.JobSpec) (string, error) {
	args := s.submitArgs(spec)

	out, err := exec.CommandContext(ctx, s.sbatch, args...).Output()
	if err != nil {
		return "", fmt.Errorf("sbatch: %w", commandError(err))
	}

	id := strings.TrimSpace(string(out))
	if i := strings.IndexByte(id, '\n'); i >= 0 {
		id = id[:i]
	}
	if i := strings.IndexByte(id, ';'); i >= 0 {
		id = id[:i]
	}
	if id == "" {
		return "", errors.New("sbatch reported no job id")
	}

	s.logger.Info("Job submitted to SLURM", "job_id", id, "name", spec.Name)

	return id, nil
}

// submitArgs builds the sbatch argument list for a job spec. All command
// construction lives here.
func (s *Scheduler) submitArgs(spec core.JobSpec) []string {
	args := []string{"--parsable", "--job-name", spec.Name}

	if spec.WorkDir != "" {
		args = append(args, "--chdir", spec.WorkDir)
	}
	if spec.Stdout != "" {
		args = append(args, "--output", spec.Stdout)
	}
	if spec.Stderr != "" {
		args = append(args, "--error", spec.Stderr)
	}
	if s.partition != "" {
		args = append(args, "--partition", s.partition)
	}
	if s.account != "" {
		args = append(args, "--account", s.account)
	}

	r := spec.Resources
	if r.MemoryMB > 0 {
		args = append(args, "--mem-per-cpu", fmt.Sprintf("%dm", r.MemoryMB))
	}
	if r.TimeLimit != "" {
		args = append(args, "--time", r.TimeLimit)
	}
	if r.CPUs > 0 {
		args = append(args, "--cpus-per-task", strconv.Itoa(r.CPUs))
	}

	args = append(args, s.extraArgs...)

	return append(args, spec.Script)
}

// Status implements core.Scheduler. Jobs known to squeue are reported from
// queue state; jobs that left the queue are resolved through accounting. A
// job unknown to both is reported as pending, because sacct lags briefly
// behind submission and SLURM never forgets a job it has accounted.
func (s *Scheduler) Status(ctx context.Context, jobID string) (core.JobState, error) {
	if out, err := exec.CommandContext(ctx, s.squeue, "--noheader", "--format=%T", "--jobs", jobID).Output(); err == nil {
		if state := firstField(string(out)); state != "" {
			return mapState(state), nil
		}
	}

	out, err := exec.CommandContext(ctx, s.sacct, "--noheader", "--allocations", "--format=State", "--jobs", jobID).Output()
	if err != nil {
		return core.JobStatePending, fmt.Errorf("sacct: %w", commandError(err))
	}

	state := firstField(string(out))
	if state == "" {
		s.logger.Debug("Job not yet visible to SLURM accounting", "job_id", jobID)
		return core.JobStatePending, nil
	}

	return mapState(state), nil
}

// mapState translates a SLURM state name to a core.JobState. Trailing "+"
// markers and suffixes such as "CANCELLED by <uid>" are stripped before the
// lookup; unrecognized states count as failed so a poll loop cannot hang on
// them.
func mapState(state string) core.JobState {
	state = strings.ToUpper(strings.TrimSuffix(state, "+"))

	switch state {
	case "PENDING", "CONFIGURING", "REQUEUED", "REQUEUE_HOLD", "REQUEUE_FED":
		return core.JobStatePending
	case "RUNNING", "COMPLETING", "SUSPENDED", "RESIZING", "SIGNALING", "STAGE_OUT":
		return core.JobStateRunning
	case "COMPLETED":
		return core.JobStateSucceeded
	default:
		return core.JobStateFailed
	}
}

// firstField returns the first whitespace-separated token of a command's
// output, or "" when the output is blank.
func firstField(out string) string {
	fields := strings.Fields(out)
	if len(fields) == 0 {
		return ""
	}

	return fields[0]
}

// commandError surfaces the stderr a SLURM tool printed before exiting
// non-zero; exec.ExitError alone only carries the exit status.
func commandError(err error) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if msg := strings.TrimSpace(string(exitErr.Stderr)); msg != "" {
			return errors.New(msg)
		}
	}

	return err
}
