package core

import (
	"fmt"
	"sync"
)

// RunGate enforces single-flight orchestration: a collection is consumed by
// exactly one run at a time per engine.
type RunGate struct {
	busy bool
	runs int
	mu   sync.Mutex
}

// NewRunGate creates an idle gate.
func NewRunGate() *RunGate {
	return &RunGate{}
}

// Acquire claims the gate, failing with ErrRunActive when a run already holds it.
func (rg *RunGate) Acquire() error {
	rg.mu.Lock()
	defer rg.mu.Unlock()

	if rg.busy {
		return fmt.Errorf("%w: engine is busy", ErrRunActive)
	}
	rg.busy = true
	rg.runs++

	return nil
}

// Release returns the gate to idle.
func (rg *RunGate) Release() {
	rg.mu.Lock()
	defer rg.mu.Unlock()

	rg.busy = false
}

// Active reports whether a run currently holds the gate.
func (rg *RunGate) Active() bool {
	rg.mu.Lock()
	defer rg.mu.Unlock()

	return rg.busy
}

// Runs returns how many runs have been started through this gate.
func (rg *RunGate) Runs() int {
	rg.mu.Lock()
	defer rg.mu.Unlock()

	return rg.runs
}
