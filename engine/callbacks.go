package engine

import (
	"context"
	"fmt"

	"github.com/hupe1980/gridsweep/core"
)

// CallbackType defines the lifecycle points where callbacks can be executed.
//
// Callbacks provide a mechanism for hooking into the run pipeline without
// modifying engine logic. Each type represents a specific point in the run
// lifecycle where custom logic can be injected:
//
//   - BeforeBatch: before a batch is handed to the backend
//   - AfterBatch: when a batch's outcome arrives, before it is committed
//   - AfterCommit: after a batch's results are in the index and persisted
//   - OnError: when a structural error (index persistence) aborts commits
//
// Callbacks execute synchronously on the run's goroutine. Only BeforeBatch
// errors influence the run (they abort dispatch); errors from the other
// types are logged and otherwise ignored, keeping observability hooks from
// corrupting a run's accounting.
type CallbackType string

const (
	// CallbackBeforeBatch is triggered before a batch is dispatched.
	// Use for validation, instrumentation or submission throttling.
	CallbackBeforeBatch CallbackType = "before_batch"

	// CallbackAfterBatch is triggered when a batch outcome arrives.
	// Use for progress reporting or per-batch metrics.
	CallbackAfterBatch CallbackType = "after_batch"

	// CallbackAfterCommit is triggered after a batch's results are
	// committed and the index persisted. Use for notifications that must
	// only fire once results are durable.
	CallbackAfterCommit CallbackType = "after_commit"

	// CallbackOnError is triggered when index persistence fails and the
	// run stops committing. Use for alerting.
	CallbackOnError CallbackType = "on_error"
)

// CallbackContext carries the information available at a callback's
// lifecycle point. Fields are populated as applicable: Batch for
// BeforeBatch, Outcome for AfterBatch and later, Reports for AfterCommit,
// Err for OnError. RunContext is always set.
type CallbackContext struct {
	// RunContext identifies the run and carries its options and logger.
	RunContext *core.RunContext

	// Batch is the batch about to be dispatched. Nil outside BeforeBatch.
	Batch *core.Batch

	// Outcome is the batch outcome being processed. Nil for BeforeBatch.
	Outcome *core.BatchOutcome

	// Reports are the entry reports the commit touched. Set for
	// AfterCommit only.
	Reports []core.EntryReport

	// Err is the structural error that aborted committing. Set for
	// OnError only.
	Err error

	// CallbackType indicates which lifecycle point triggered this
	// execution, so shared implementations can branch on it.
	CallbackType CallbackType

	// Metadata provides extensible storage for custom callback data.
	Metadata map[string]interface{}
}

// Callback defines the interface for run lifecycle hooks.
//
// Implementations should be fast (they run synchronously on the commit
// path), safe (no panics) and stateless between invocations. A BeforeBatch
// callback returning an error aborts the run before dispatch; errors from
// other callback types are logged and discarded.
type Callback interface {
	// Type returns the callback type this implementation handles.
	Type() CallbackType

	// Execute performs the callback logic with the provided context.
	Execute(ctx context.Context, callbackCtx *CallbackContext) error
}

// FunctionCallback wraps a function as a callback implementation.
//
// Example:
//
//	progress := engine.NewFunctionCallback(
//	    engine.CallbackAfterCommit,
//	    func(ctx context.Context, cc *engine.CallbackContext) error {
//	        fmt.Printf("batch %d committed (%d entries)\n", cc.Outcome.Seq, len(cc.Reports))
//	        return nil
//	    },
//	)
type FunctionCallback struct {
	callbackType CallbackType
	fn           func(ctx context.Context, callbackCtx *CallbackContext) error
}

// NewFunctionCallback creates a new function-based callback for the given
// lifecycle point.
func NewFunctionCallback(
	callbackType CallbackType,
	fn func(ctx context.Context, callbackCtx *CallbackContext) error,
) *FunctionCallback {
	return &FunctionCallback{
		callbackType: callbackType,
		fn:           fn,
	}
}

// Type returns the callback type this function handles.
func (c *FunctionCallback) Type() CallbackType {
	return c.callbackType
}

// Execute calls the wrapped function with the provided context.
func (c *FunctionCallback) Execute(ctx context.Context, callbackCtx *CallbackContext) error {
	return c.fn(ctx, callbackCtx)
}

// CallbackManager routes lifecycle events to registered callbacks.
//
// Multiple callbacks can be registered per type; they execute sequentially
// in registration order, and the first error stops the chain. Registration
// is not synchronized: register everything before starting runs.
type CallbackManager struct {
	callbacks map[CallbackType][]Callback
}

// NewCallbackManager creates an empty callback manager.
func NewCallbackManager() *CallbackManager {
	return &CallbackManager{
		callbacks: make(map[CallbackType][]Callback),
	}
}

// RegisterCallback adds a callback to the manager for its declared type.
func (cm *CallbackManager) RegisterCallback(callback Callback) {
	callbackType := callback.Type()
	cm.callbacks[callbackType] = append(cm.callbacks[callbackType], callback)
}

// ExecuteCallbacks runs all callbacks registered for callbackType in
// registration order, stopping at the first error.
func (cm *CallbackManager) ExecuteCallbacks(
	ctx context.Context,
	callbackType CallbackType,
	callbackCtx *CallbackContext,
) error {
	callbacks, exists := cm.callbacks[callbackType]
	if !exists {
		return nil
	}

	for _, callback := range callbacks {
		if err := callback.Execute(ctx, callbackCtx); err != nil {
			return err
		}
	}

	return nil
}

// LoggingCallback forwards lifecycle events to a logging function as
// formatted one-liners. Useful for quick progress traces without wiring a
// structured logger into callbacks.
type LoggingCallback struct {
	callbackType CallbackType
	logger       func(message string)
}

// NewLoggingCallback creates a logging callback for the given lifecycle
// point.
func NewLoggingCallback(callbackType CallbackType, logger func(message string)) *LoggingCallback {
	return &LoggingCallback{
		callbackType: callbackType,
		logger:       logger,
	}
}

// Type returns the callback type this logger handles.
func (c *LoggingCallback) Type() CallbackType {
	return c.callbackType
}

// Execute logs the lifecycle event with whatever context is available.
func (c *LoggingCallback) Execute(ctx context.Context, callbackCtx *CallbackContext) error {
	if c.logger == nil {
		return nil
	}

	switch {
	case callbackCtx.Batch != nil:
		c.logger(fmt.Sprintf("[%s] run=%s batch=%d units=%d",
			c.callbackType, callbackCtx.RunContext.RunID, callbackCtx.Batch.Seq, len(callbackCtx.Batch.Units)))
	case callbackCtx.Outcome != nil:
		c.logger(fmt.Sprintf("[%s] run=%s batch=%d results=%d err=%v",
			c.callbackType, callbackCtx.RunContext.RunID, callbackCtx.Outcome.Seq, len(callbackCtx.Outcome.Results), callbackCtx.Outcome.Err))
	default:
		c.logger(fmt.Sprintf("[%s] run=%s", c.callbackType, callbackCtx.RunContext.RunID))
	}
	return nil
}

// BatchValidationCallback vetoes batches before dispatch.
//
// The validator receives each batch about to be dispatched and can return an
// error to abort the run, for example to enforce a unit budget against a
// shared cluster allocation:
//
//	guard := engine.NewBatchValidationCallback(func(b core.Batch) error {
//	    if len(b.Units) > 100 {
//	        return fmt.Errorf("batch %d exceeds the 100 unit budget", b.Seq)
//	    }
//	    return nil
//	})
type BatchValidationCallback struct {
	validator func(batch core.Batch) error
}

// NewBatchValidationCallback creates a pre-dispatch validation callback.
func NewBatchValidationCallback(validator func(batch core.Batch) error) *BatchValidationCallback {
	return &BatchValidationCallback{
		validator: validator,
	}
}

// Type returns the callback type (always CallbackBeforeBatch).
func (c *BatchValidationCallback) Type() CallbackType {
	return CallbackBeforeBatch
}

// Execute validates the batch about to be dispatched.
func (c *BatchValidationCallback) Execute(ctx context.Context, callbackCtx *CallbackContext) error {
	if c.validator != nil && callbackCtx.Batch != nil {
		return c.validator(*callbackCtx.Batch)
	}
	return nil
}
