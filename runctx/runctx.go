// Package runctx provides the caller-supplied state object threaded through
// an entire run. The wrapped value is shared by reference across every
// instruction evaluation, tool invocation and lifecycle hook within one run
// and is never serialized into the model-facing conversation.
package runctx

// Usage accumulates model accounting across every model call in a run.
type Usage struct {
	Requests     int `json:"requests"`
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Add merges another usage sample into the receiver.
func (u *Usage) Add(other Usage) {
	u.Requests += other.Requests
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.TotalTokens += other.TotalTokens
}

// Context wraps exactly one caller-supplied context value plus
// runtime-managed usage accounting. Its lifetime equals one run; the
// runtime performs no locking over Value, so a Context must not be shared
// between concurrent runs unless the caller accepts the race.
type Context struct {
	// Value is the caller's arbitrary state, opaque to the runtime.
	Value any

	// Usage is updated by the runner after each model invocation.
	Usage *Usage
}

// New wraps a caller-supplied value for one run.
func New(value any) *Context {
	return &Context{Value: value, Usage: &Usage{}}
}
