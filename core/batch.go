package core

import "time"

// UnitStatus describes the state of one unit of work.
type UnitStatus string

const (
	// UnitPending marks a unit not yet dispatched.
	UnitPending UnitStatus = "pending"
	// UnitRunning marks a unit currently executing.
	UnitRunning UnitStatus = "running"
	// UnitSucceeded marks a unit that finished with a zero exit status.
	UnitSucceeded UnitStatus = "succeeded"
	// UnitFailed marks a unit that failed to prepare, launch or execute.
	UnitFailed UnitStatus = "failed"
)

// Unit is one entry's executable form: the entry, its stable name and the
// working directory all of its outputs land in.
type Unit struct {
	Name  string       `json:"name"`
	Entry *ConfigEntry `json:"entry"`
	Dir   string       `json:"dir"`
}

// Batch groups units dispatched as a single unit of work. Seq is the batch's
// position in submission order; outcomes may arrive in any order.
type Batch struct {
	Seq   int    `json:"seq"`
	Units []Unit `json:"units"`
}

// UnitResult is the terminal record for one unit.
type UnitResult struct {
	Name       string        `json:"name"`
	Key        Key           `json:"key"`
	Dir        string        `json:"dir"`
	Status     UnitStatus    `json:"status"`
	ExitCode   int           `json:"exit_code"`
	Duration   time.Duration `json:"duration,omitempty"`
	Diagnostic string        `json:"diagnostic,omitempty"`
	Err        error         `json:"-"`
}

// BatchOutcome reports one batch's completion. A non-nil Err is a batch-level
// failure (submission refused, job script unwritable); every unit of the
// batch is then failed.
type BatchOutcome struct {
	Seq     int          `json:"seq"`
	Results []UnitResult `json:"results"`
	Err     error        `json:"-"`
}

// FailBatch builds the outcome for a batch that failed as a whole, marking
// every unit failed with the given error.
func FailBatch(b Batch, err error) BatchOutcome {
	out := BatchOutcome{Seq: b.Seq, Err: err, Results: make([]UnitResult, 0, len(b.Units))}
	for _, u := range b.Units {
		out.Results = append(out.Results, UnitResult{
			Name:     u.Name,
			Key:      u.Entry.Key(),
			Dir:      u.Dir,
			Status:   UnitFailed,
			ExitCode: -1,
			Err:      err,
		})
	}
	return out
}
