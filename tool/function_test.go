package tool

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sumSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"a": map[string]any{"type": "number"},
		"b": map[string]any{"type": "number"},
	},
	"required": []string{"a", "b"},
}

func newSumTool(optFns ...func(o *Options)) *FunctionTool {
	return New("calculate_sum", "Calculate the sum of two numbers", sumSchema,
		func(toolCtx *Context, args map[string]any) (any, error) {
			return args["a"].(float64) + args["b"].(float64), nil
		}, optFns...)
}

func TestInvoke(t *testing.T) {
	sum := newSumTool()
	toolCtx := NewContext(nil, "Assistant", "call-1", nil)

	out, err := sum.Invoke(toolCtx, `{"a": 2, "b": 3}`)
	require.NoError(t, err)
	assert.Equal(t, "5", out)
}

func TestInvokeInvalidJSON(t *testing.T) {
	sum := newSumTool()
	toolCtx := NewContext(nil, "Assistant", "call-1", nil)

	_, err := sum.Invoke(toolCtx, `{"a": 2,`)
	require.Error(t, err)

	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "VALIDATION_ERROR", toolErr.Code)
}

func TestInvokeMissingRequired(t *testing.T) {
	sum := newSumTool()
	toolCtx := NewContext(nil, "Assistant", "call-1", nil)

	_, err := sum.Invoke(toolCtx, `{"a": 2}`)
	require.Error(t, err)

	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "VALIDATION_ERROR", toolErr.Code)
}

func TestInvokeHandlerError(t *testing.T) {
	failing := New("fail", "always fails", map[string]any{"type": "object"},
		func(toolCtx *Context, args map[string]any) (any, error) {
			return nil, errors.New("backend down")
		})
	toolCtx := NewContext(nil, "Assistant", "call-1", nil)

	_, err := failing.Invoke(toolCtx, "")
	require.Error(t, err)

	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "EXECUTION_ERROR", toolErr.Code)
}

func TestInvokeForwardsToolError(t *testing.T) {
	custom := NewToolError("fail", "rate limited", "RATE_LIMITED")
	failing := New("fail", "always fails", map[string]any{"type": "object"},
		func(toolCtx *Context, args map[string]any) (any, error) {
			return nil, custom
		})
	toolCtx := NewContext(nil, "Assistant", "call-1", nil)

	_, err := failing.Invoke(toolCtx, "")
	require.Same(t, custom, err)
}

func TestFailOnError(t *testing.T) {
	plain := newSumTool()
	assert.False(t, plain.FailOnError())

	fatal := newSumTool(func(o *Options) { o.FailOnError = true })
	assert.True(t, fatal.FailOnError())
}

func TestSchemaFromStruct(t *testing.T) {
	type SumArgs struct {
		A float64 `json:"a" jsonschema:"description=First addend"`
		B float64 `json:"b" jsonschema:"description=Second addend"`
	}

	schema := SchemaFromStruct(SumArgs{})

	assert.Equal(t, "object", schema["type"])
	assert.NotContains(t, schema, "$schema")

	properties, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, properties, "a")
	assert.Contains(t, properties, "b")

	required, ok := schema["required"].([]any)
	require.True(t, ok)
	assert.Len(t, required, 2)
}

func TestNewFromStruct(t *testing.T) {
	type EchoArgs struct {
		Text string `json:"text"`
	}

	echo := NewFromStruct("echo", "echoes text", EchoArgs{},
		func(toolCtx *Context, args map[string]any) (any, error) {
			return args["text"], nil
		})

	toolCtx := NewContext(nil, "Assistant", "call-1", nil)

	out, err := echo.Invoke(toolCtx, `{"text": "hi"}`)
	require.NoError(t, err)
	assert.Equal(t, "hi", out)
}
