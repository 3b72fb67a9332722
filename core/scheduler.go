package core

import "context"

// JobState is a scheduler-reported job status.
type JobState int

const (
	// JobStatePending means the job is queued but not started.
	JobStatePending JobState = iota
	// JobStateRunning means the job is executing.
	JobStateRunning
	// JobStateSucceeded means the job finished with a zero exit status.
	JobStateSucceeded
	// JobStateFailed means the job finished unsuccessfully or was lost.
	JobStateFailed
)

// String returns the string representation of the job state.
func (s JobState) String() string {
	switch s {
	case JobStatePending:
		return "pending"
	case JobStateRunning:
		return "running"
	case JobStateSucceeded:
		return "succeeded"
	case JobStateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state is final.
func (s JobState) Terminal() bool {
	return s == JobStateSucceeded || s == JobStateFailed
}

// JobSpec describes one batch job handed to a scheduler.
type JobSpec struct {
	Name      string    // job name shown by the scheduler
	Script    string    // path of the executable job script
	WorkDir   string    // directory the job starts in
	Stdout    string    // capture path for job stdout
	Stderr    string    // capture path for job stderr
	Resources Resources // memory, wall-clock limit, cpu count
}

// Scheduler is the contract a remote batch system must satisfy: accept a job
// description and answer status queries until the job reaches a terminal
// state. Exact submission mechanics (SLURM flags, job arrays) live behind
// implementations; the core never sees them.
type Scheduler interface {
	// Submit hands one job to the scheduler and returns its identifier.
	Submit(ctx context.Context, spec JobSpec) (string, error)

	// Status reports the job's current state. Implementations should keep
	// answering for terminal jobs until the caller stops asking.
	Status(ctx context.Context, jobID string) (JobState, error)
}
