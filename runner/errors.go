package runner

import (
	"fmt"

	"github.com/hupe1980/agentrun/item"
)

// RunError is implemented by every terminal error the runner can return.
// Items exposes everything produced before the failure, so no error
// condition discards completed turns.
type RunError interface {
	error

	// Items returns the items produced before the failure, in order.
	Items() []item.Item
}

// ConfigError reports a malformed agent graph or a failed instruction
// evaluation. It aborts the run before any further model call.
type ConfigError struct {
	Message string
	Err     error
	items   []item.Item
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("config error: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("config error: %s", e.Message)
}

// Unwrap returns the wrapped error, if any.
func (e *ConfigError) Unwrap() error { return e.Err }

// Items implements the RunError interface.
func (e *ConfigError) Items() []item.Item { return e.items }

// MaxTurnsError reports that a run exceeded its configured turn limit. The
// partial item list is intact so the caller can inspect progress.
type MaxTurnsError struct {
	MaxTurns int
	items    []item.Item
}

// Error implements the error interface.
func (e *MaxTurnsError) Error() string {
	return fmt.Sprintf("max turns exceeded: %d", e.MaxTurns)
}

// Items implements the RunError interface.
func (e *MaxTurnsError) Items() []item.Item { return e.items }

// ToolFatalError reports a failure of a tool marked fatal on error.
type ToolFatalError struct {
	ToolName string
	Err      error
	items    []item.Item
}

// Error implements the error interface.
func (e *ToolFatalError) Error() string {
	return fmt.Sprintf("tool %q failed fatally: %v", e.ToolName, e.Err)
}

// Unwrap returns the underlying tool error.
func (e *ToolFatalError) Unwrap() error { return e.Err }

// Items implements the RunError interface.
func (e *ToolFatalError) Items() []item.Item { return e.items }

// ModelError reports a model or transport failure that was not (or no
// longer) retried.
type ModelError struct {
	Model    string
	Attempts int
	Err      error
	items    []item.Item
}

// Error implements the error interface.
func (e *ModelError) Error() string {
	return fmt.Sprintf("model %q failed after %d attempt(s): %v", e.Model, e.Attempts, e.Err)
}

// Unwrap returns the underlying model error.
func (e *ModelError) Unwrap() error { return e.Err }

// Items implements the RunError interface.
func (e *ModelError) Items() []item.Item { return e.items }

// CanceledError reports that the run context was canceled or timed out
// between turns. The items completed before the cancellation remain valid
// and replayable. Unwrap yields the context error, so errors.Is with
// context.Canceled or context.DeadlineExceeded still matches.
type CanceledError struct {
	Err   error
	items []item.Item
}

// Error implements the error interface.
func (e *CanceledError) Error() string {
	return fmt.Sprintf("run canceled: %v", e.Err)
}

// Unwrap returns the context error.
func (e *CanceledError) Unwrap() error { return e.Err }

// Items implements the RunError interface.
func (e *CanceledError) Items() []item.Item { return e.items }

// HookError reports a failed lifecycle hook. Hooks are trusted observer
// code, so their failures abort the run.
type HookError struct {
	Event string
	Err   error
	items []item.Item
}

// Error implements the error interface.
func (e *HookError) Error() string {
	return fmt.Sprintf("hook %q failed: %v", e.Event, e.Err)
}

// Unwrap returns the hook's error.
func (e *HookError) Unwrap() error { return e.Err }

// Items implements the RunError interface.
func (e *HookError) Items() []item.Item { return e.items }
