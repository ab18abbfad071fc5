package tool

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/invopop/jsonschema"

	"github.com/hupe1980/agentrun/internal/util"
)

// Handler is the user supplied implementation of a function tool. It
// receives the invocation context plus the already validated, decoded
// arguments and returns any JSON-serializable result.
type Handler func(toolCtx *Context, args map[string]any) (any, error)

// Options configure a FunctionTool.
type Options struct {
	// FailOnError escalates handler errors to a run failure instead of
	// reporting them back to the model as an error output.
	FailOnError bool
}

// FunctionTool is a generic adapter that exposes a plain Go function as a
// tool.
//
// Responsibilities:
//   - Holds a JSON-Schema parameter specification, either supplied
//     explicitly or derived from an argument struct
//   - Validates model supplied arguments against that schema before
//     execution; a validation failure is returned as *ToolError with code
//     VALIDATION_ERROR so the runner can surface it to the model for
//     self-correction
//   - Serializes whatever the handler returns into plain text content for
//     the next model turn
//
// A FunctionTool has no internal mutable state after construction and is
// safe for concurrent use by multiple goroutines.
type FunctionTool struct {
	name        string
	description string
	parameters  map[string]any
	failOnError bool
	fn          Handler
}

// New constructs a FunctionTool from an explicit schema and handler.
//
// Example:
//
//	sumTool := tool.New(
//	  "calculate_sum",
//	  "Calculate the sum of two numbers",
//	  map[string]any{
//	    "type": "object",
//	    "properties": map[string]any{
//	      "a": map[string]any{"type": "number"},
//	      "b": map[string]any{"type": "number"},
//	    },
//	    "required": []string{"a", "b"},
//	  },
//	  func(tc *tool.Context, args map[string]any) (any, error) {
//	    return args["a"].(float64) + args["b"].(float64), nil
//	  },
//	)
func New(
	name, description string,
	parameters map[string]any,
	fn Handler,
	optFns ...func(o *Options),
) *FunctionTool {
	opts := Options{}
	for _, fnOpt := range optFns {
		fnOpt(&opts)
	}

	return &FunctionTool{
		name:        name,
		description: description,
		parameters:  parameters,
		failOnError: opts.FailOnError,
		fn:          fn,
	}
}

// NewFromStruct derives the parameter schema from an argument struct.
// Field names follow json tags; `jsonschema:"description=..."` tags are
// carried into the declaration the model sees.
//
// Example:
//
//	type SumArgs struct {
//	  A float64 `json:"a" jsonschema:"description=First addend"`
//	  B float64 `json:"b" jsonschema:"description=Second addend"`
//	}
//
//	sumTool := tool.NewFromStruct("calculate_sum", "Calculate the sum of two numbers", SumArgs{}, handler)
func NewFromStruct(
	name, description string,
	argsStruct any,
	fn Handler,
	optFns ...func(o *Options),
) *FunctionTool {
	return New(name, description, SchemaFromStruct(argsStruct), fn, optFns...)
}

// SchemaFromStruct reflects a struct into a plain JSON schema map suitable
// for a tool declaration.
func SchemaFromStruct(argsStruct any) map[string]any {
	reflector := &jsonschema.Reflector{
		DoNotReference:            true,
		AllowAdditionalProperties: false,
	}

	schema := reflector.Reflect(argsStruct)

	data, err := json.Marshal(schema)
	if err != nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}

	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}

	delete(m, "$schema")
	delete(m, "$id")

	return m
}

// Name returns the unique tool name used in function call declarations and routing.
func (t *FunctionTool) Name() string { return t.name }

// Description returns the short natural language description exposed to models.
func (t *FunctionTool) Description() string { return t.description }

// ParamsJSONSchema returns the JSON schema describing expected arguments.
func (t *FunctionTool) ParamsJSONSchema() map[string]any { return t.parameters }

// FailOnError implements Fatal.
func (t *FunctionTool) FailOnError() bool { return t.failOnError }

// Invoke decodes and validates the serialized argument payload, then calls
// the underlying handler.
//
// Error semantics:
//
//	malformed / invalid payload -> *ToolError{Code: "VALIDATION_ERROR"}
//	handler *ToolError          -> forwarded unchanged
//	other handler error         -> *ToolError{Code: "EXECUTION_ERROR"}
func (t *FunctionTool) Invoke(toolCtx *Context, args string) (string, error) {
	logger := toolCtx.Logger()
	start := time.Now()

	logger.Debug("tool.call.start", "tool", t.name, "call_id", toolCtx.CallID)

	decoded := map[string]any{}
	if args != "" {
		if err := json.Unmarshal([]byte(args), &decoded); err != nil {
			logger.Warn("tool.call.invalid_json", "tool", t.name, "error", err.Error())

			return "", &ToolError{
				Tool:    t.name,
				Message: fmt.Sprintf("arguments are not valid JSON: %v", err),
				Code:    "VALIDATION_ERROR",
			}
		}
	}

	if err := util.ValidateParameters(decoded, t.parameters); err != nil {
		logger.Warn("tool.call.validation_failed", "tool", t.name, "error", err.Error())

		return "", &ToolError{
			Tool:    t.name,
			Message: fmt.Sprintf("parameter validation failed: %v", err),
			Code:    "VALIDATION_ERROR",
			Details: err,
		}
	}

	result, err := t.fn(toolCtx, decoded)
	if err != nil {
		if toolErr, ok := err.(*ToolError); ok {
			logger.Error("tool.call.error", "tool", t.name, "error", toolErr.Message)
			return "", toolErr
		}

		logger.Error("tool.call.error", "tool", t.name, "error", err.Error())

		return "", &ToolError{
			Tool:    t.name,
			Message: err.Error(),
			Code:    "EXECUTION_ERROR",
		}
	}

	logger.Info("tool.call.success", "tool", t.name, "duration_ms", time.Since(start).Milliseconds())

	return serializeResult(result)
}

// serializeResult projects a handler result into the plain text content
// visible to the model on the next turn.
func serializeResult(result any) (string, error) {
	switch v := result.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("serialize tool result: %w", err)
		}
		return string(data), nil
	}
}
