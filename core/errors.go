package core

import (
	"fmt"
	"strings"
)

// ErrInvalidParameter indicates a parameter name or value outside what the
// entry's schema allows.
var ErrInvalidParameter = fmt.Errorf("invalid parameter")

// ErrDuplicateKey indicates an index collision for a canonical key.
// Recoverable by opting into overwrite for an intentional re-run.
var ErrDuplicateKey = fmt.Errorf("duplicate canonical key")

// ErrNotFound indicates no index entry exists for the requested parameters.
var ErrNotFound = fmt.Errorf("configuration not found")

// ErrStaleIndex indicates an index entry whose result directory no longer
// exists on disk. Distinguished from ErrNotFound so callers can tell
// "never ran" from "ran then was deleted".
var ErrStaleIndex = fmt.Errorf("stale index entry")

// ErrIndexPersist indicates the index could not be written durably. Fatal to
// an orchestration run: its results would not be discoverable.
var ErrIndexPersist = fmt.Errorf("index persist failed")

// ErrRunActive indicates the engine is already executing a run.
var ErrRunActive = fmt.Errorf("run already active")

// BackendExecutionError records the failure of a single unit of work. It is
// folded into the unit's result rather than aborting sibling units.
type BackendExecutionError struct {
	Unit       string // unit name (run0, run1, ...)
	ExitCode   int    // process or job exit status, -1 when unknown
	Diagnostic string // captured output tail
	Cause      error  // underlying error, if any
}

// Error implements the error interface.
func (e *BackendExecutionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "unit %s failed (exit %d)", e.Unit, e.ExitCode)
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	if e.Diagnostic != "" {
		fmt.Fprintf(&b, ": %s", strings.TrimSpace(e.Diagnostic))
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *BackendExecutionError) Unwrap() error { return e.Cause }
