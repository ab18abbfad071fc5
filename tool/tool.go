// Package tool implements the function calling subsystem that lets agents
// invoke structured capabilities with schema validated arguments, consistent
// error handling and rich metadata for LLM guidance.
package tool

import (
	"fmt"

	"github.com/hupe1980/agentrun/internal/util"
	"github.com/hupe1980/agentrun/logging"
	"github.com/hupe1980/agentrun/runctx"
)

// Context carries per-invocation scope into a tool: the run context shared
// across the whole run, the invoking agent's name and the tool call ID
// correlating the model request with the produced output item.
type Context struct {
	Run       *runctx.Context
	AgentName string
	CallID    string

	logger logging.Logger
}

// NewContext constructs a tool invocation context. A nil logger is replaced
// by a no-op logger.
func NewContext(run *runctx.Context, agentName, callID string, logger logging.Logger) *Context {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Context{Run: run, AgentName: agentName, CallID: callID, logger: logger}
}

// Logger returns the logger bound to this invocation.
func (c *Context) Logger() logging.Logger { return c.logger }

// Tool defines the interface for extending agent capabilities with external
// functions. The runtime does not inspect a tool's internals, only its
// declared schema and the serialized output of Invoke.
//
// Tool implementations should:
//   - Provide clear, descriptive names and descriptions
//   - Define proper JSON schema for parameters
//   - Be safe for concurrent use; tools requested in the same model
//     response may execute concurrently
type Tool interface {
	// Name returns the unique identifier for this tool within an agent.
	// Names should follow function naming conventions (snake_case recommended).
	Name() string

	// Description returns a human-readable description of what this tool does.
	// This description is provided to the LLM to help it understand when and
	// how to use the tool.
	Description() string

	// ParamsJSONSchema returns a JSON schema describing the expected
	// argument payload. It is used for argument validation and for the
	// model's function calling declaration.
	ParamsJSONSchema() map[string]any

	// Invoke executes the tool with the serialized JSON argument payload the
	// model supplied and returns the serialized result to append to the
	// conversation.
	Invoke(toolCtx *Context, args string) (string, error)
}

// Fatal is implemented by tools whose errors escalate to a run failure
// instead of being reported back to the model as an error output.
type Fatal interface {
	FailOnError() bool
}

// ValidationError represents argument validation errors with detailed information.
type ValidationError = util.ValidationError

// ToolError represents errors that occur during tool execution.
type ToolError struct {
	Tool    string `json:"tool"`              // Name of the tool that failed
	Message string `json:"message"`           // Error message
	Code    string `json:"code"`              // Error code for categorization
	Details any    `json:"details,omitempty"` // Additional error details
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}
