package agent

import (
	"context"

	"github.com/hupe1980/agentrun/runctx"
	"github.com/hupe1980/agentrun/tool"
)

// Hooks observes lifecycle events for a single agent, attached at
// construction. Callbacks are awaited sequentially; an error aborts the
// run with the hook's error as the terminal error. Hooks observe but never
// alter the item stream or control flow; side effects on the run context
// are permitted.
type Hooks interface {
	// OnStart is called when the agent becomes the active agent, before its
	// first model invocation.
	OnStart(ctx context.Context, rc *runctx.Context, a *Agent) error

	// OnEnd is called when the agent produces the run's final output, or
	// when it hands control off to another agent.
	OnEnd(ctx context.Context, rc *runctx.Context, a *Agent, output string) error

	// OnHandoff is called on the target agent's hooks when control is
	// transferred to it from source.
	OnHandoff(ctx context.Context, rc *runctx.Context, a, source *Agent) error

	// OnToolStart is called before each tool invocation.
	OnToolStart(ctx context.Context, rc *runctx.Context, a *Agent, t tool.Tool) error

	// OnToolEnd is called after each tool invocation with the serialized result.
	OnToolEnd(ctx context.Context, rc *runctx.Context, a *Agent, t tool.Tool, result string) error
}

// RunHooks observes lifecycle events for an entire run, attached at run
// configuration. For every event the specific agent's Hooks are notified
// first, then the RunHooks.
type RunHooks interface {
	OnAgentStart(ctx context.Context, rc *runctx.Context, a *Agent) error
	OnAgentEnd(ctx context.Context, rc *runctx.Context, a *Agent, output string) error

	// OnHandoff is called when control transfers from one agent to another.
	OnHandoff(ctx context.Context, rc *runctx.Context, from, to *Agent) error

	OnToolStart(ctx context.Context, rc *runctx.Context, a *Agent, t tool.Tool) error
	OnToolEnd(ctx context.Context, rc *runctx.Context, a *Agent, t tool.Tool, result string) error
}

// NoopHooks is an embeddable Hooks implementation whose callbacks all
// succeed without side effects. Embed it and override the events of interest.
type NoopHooks struct{}

// OnStart implements Hooks.
func (NoopHooks) OnStart(context.Context, *runctx.Context, *Agent) error { return nil }

// OnEnd implements Hooks.
func (NoopHooks) OnEnd(context.Context, *runctx.Context, *Agent, string) error { return nil }

// OnHandoff implements Hooks.
func (NoopHooks) OnHandoff(context.Context, *runctx.Context, *Agent, *Agent) error { return nil }

// OnToolStart implements Hooks.
func (NoopHooks) OnToolStart(context.Context, *runctx.Context, *Agent, tool.Tool) error { return nil }

// OnToolEnd implements Hooks.
func (NoopHooks) OnToolEnd(context.Context, *runctx.Context, *Agent, tool.Tool, string) error {
	return nil
}

// NoopRunHooks is an embeddable RunHooks implementation whose callbacks all
// succeed without side effects.
type NoopRunHooks struct{}

// OnAgentStart implements RunHooks.
func (NoopRunHooks) OnAgentStart(context.Context, *runctx.Context, *Agent) error { return nil }

// OnAgentEnd implements RunHooks.
func (NoopRunHooks) OnAgentEnd(context.Context, *runctx.Context, *Agent, string) error { return nil }

// OnHandoff implements RunHooks.
func (NoopRunHooks) OnHandoff(context.Context, *runctx.Context, *Agent, *Agent) error { return nil }

// OnToolStart implements RunHooks.
func (NoopRunHooks) OnToolStart(context.Context, *runctx.Context, *Agent, tool.Tool) error {
	return nil
}

// OnToolEnd implements RunHooks.
func (NoopRunHooks) OnToolEnd(context.Context, *runctx.Context, *Agent, tool.Tool, string) error {
	return nil
}
