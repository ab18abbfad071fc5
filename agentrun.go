// Package agentrun provides a façade over the runner package for the
// common case of executing an agent graph against an OpenAI-compatible
// backend. Most applications interact with the module by:
//  1. Building agents with the agent package (instructions, tools, handoffs)
//  2. Calling Run or RunStreamed with a starting agent and input
//  3. Inspecting the RunResult (final output, produced items, last agent)
//
// The façade defaults the model provider to OpenAI configured from the
// environment; the runner package gives full control over providers,
// sessions, hooks, tracing and retries.
package agentrun

import (
	"context"

	"github.com/hupe1980/agentrun/agent"
	"github.com/hupe1980/agentrun/item"
	"github.com/hupe1980/agentrun/model/openai"
	"github.com/hupe1980/agentrun/runner"
)

// Run executes the agent graph starting at start with a plain text input,
// using the OpenAI provider unless the configuration overrides it.
func Run(ctx context.Context, start *agent.Agent, input string, optFns ...func(c *runner.RunConfig)) (*runner.RunResult, error) {
	return runner.New().Run(ctx, start, item.NewInputFromText(input), withDefaultProvider(optFns)...)
}

// RunItems is Run for callers replaying a structured item history, e.g. a
// previous RunResult's ToInputList.
func RunItems(ctx context.Context, start *agent.Agent, input []item.Item, optFns ...func(c *runner.RunConfig)) (*runner.RunResult, error) {
	return runner.New().Run(ctx, start, item.NewInputFromItems(input), withDefaultProvider(optFns)...)
}

// RunStreamed executes the same state machine as Run but returns
// immediately with a stream of deltas, items and agent changes.
func RunStreamed(ctx context.Context, start *agent.Agent, input string, optFns ...func(c *runner.RunConfig)) *runner.RunStream {
	return runner.New().RunStreamed(ctx, start, item.NewInputFromText(input), withDefaultProvider(optFns)...)
}

// withDefaultProvider prepends an option installing the OpenAI provider,
// so caller options can still replace it.
func withDefaultProvider(optFns []func(c *runner.RunConfig)) []func(c *runner.RunConfig) {
	defaults := func(c *runner.RunConfig) {
		c.Provider = openai.NewProvider()
	}

	return append([]func(c *runner.RunConfig){defaults}, optFns...)
}
