package runner

import (
	"github.com/hupe1980/agentrun/agent"
	"github.com/hupe1980/agentrun/item"
	"github.com/hupe1980/agentrun/runctx"
)

// RunResult is the outcome of a completed run.
type RunResult struct {
	// Input is the input the run started from. With a session configured
	// this includes the restored history.
	Input item.Input

	// NewItems are all items produced during the run, in production order.
	NewItems []item.Item

	// FinalOutput is the text of the terminating agent's final message.
	FinalOutput string

	// LastAgent is the agent that produced the final output. Callers
	// typically reuse it as the starting agent of a follow-up run.
	LastAgent *agent.Agent

	// Usage aggregates token accounting across every model call of the run.
	Usage runctx.Usage
}

// ToInputList flattens the original input and all produced items into a
// single item list suitable as the input of a follow-up run. Feeding it
// back replays the full transcript.
func (r *RunResult) ToInputList() []item.Item {
	input := r.Input.AsItems()

	out := make([]item.Item, 0, len(input)+len(r.NewItems))
	out = append(out, input...)
	out = append(out, r.NewItems...)

	return out
}
