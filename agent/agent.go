// Package agent defines the data records a caller wires into an agent
// graph: the Agent itself (instructions, model, tools, handoff targets,
// lifecycle hooks), the Handoff transition descriptor with its input
// filtering machinery, and the hook interfaces notified during a run.
//
// Agents form a directed graph via handoffs; cycles are permitted and
// expected (e.g. triage -> specialist -> triage). An Agent is created once
// by the caller and is logically immutable during a run; appending to
// Handoffs after construction is allowed to close cycles.
package agent

import (
	"github.com/hupe1980/agentrun/model"
	"github.com/hupe1980/agentrun/tool"
)

// Options configures an Agent instance. Use functional options with New to
// override defaults.
type Options struct {
	Instructions       Instruction
	Model              string
	ModelSettings      model.Settings
	HandoffDescription string
	Tools              []tool.Tool
	Handoffs           []Handoff
	Hooks              Hooks
	OutputValidator    func(output string) error
}

// Agent describes one LLM-backed actor: a name unique within a run,
// instructions (static or computed fresh every turn), a model identifier
// resolved through the run's provider, attached tools and the handoff
// targets reachable from it. An agent is a data record, not a class
// hierarchy.
type Agent struct {
	// Name identifies the agent for display, routing and item tagging.
	Name string

	// Instructions is the system prompt, static or dynamically computed.
	Instructions Instruction

	// Model names the model resolved through the run's provider. An empty
	// name defers to the run configuration's model override or the
	// provider's default.
	Model string

	// ModelSettings carries per-agent generation parameters.
	ModelSettings model.Settings

	// HandoffDescription is shown to peer models that can hand off to this
	// agent, analogous to a tool description.
	HandoffDescription string

	// Tools is the ordered set of tools; names must be unique within the agent.
	Tools []tool.Tool

	// Handoffs is the ordered, mutable adjacency list of reachable targets.
	Handoffs []Handoff

	// Hooks optionally observes this agent's lifecycle events.
	Hooks Hooks

	// OutputValidator optionally validates candidate final output. A
	// validation failure triggers a retry turn instead of finalizing.
	OutputValidator func(output string) error
}

// New constructs an Agent with the given name and options.
func New(name string, optFns ...func(o *Options)) *Agent {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Agent{
		Name:               name,
		Instructions:       opts.Instructions,
		Model:              opts.Model,
		ModelSettings:      opts.ModelSettings,
		HandoffDescription: opts.HandoffDescription,
		Tools:              opts.Tools,
		Handoffs:           opts.Handoffs,
		Hooks:              opts.Hooks,
		OutputValidator:    opts.OutputValidator,
	}
}

// Clone returns a copy of the agent with fresh tool and handoff slices,
// optionally modified through the same options as New. The new agent
// shares tool instances with the original.
func (a *Agent) Clone(optFns ...func(o *Options)) *Agent {
	opts := Options{
		Instructions:       a.Instructions,
		Model:              a.Model,
		ModelSettings:      a.ModelSettings,
		HandoffDescription: a.HandoffDescription,
		Tools:              append([]tool.Tool(nil), a.Tools...),
		Handoffs:           append([]Handoff(nil), a.Handoffs...),
		Hooks:              a.Hooks,
		OutputValidator:    a.OutputValidator,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Agent{
		Name:               a.Name,
		Instructions:       opts.Instructions,
		Model:              opts.Model,
		ModelSettings:      opts.ModelSettings,
		HandoffDescription: opts.HandoffDescription,
		Tools:              opts.Tools,
		Handoffs:           opts.Handoffs,
		Hooks:              opts.Hooks,
		OutputValidator:    opts.OutputValidator,
	}
}

// FindTool returns the tool with the given name, if attached.
func (a *Agent) FindTool(name string) (tool.Tool, bool) {
	for _, t := range a.Tools {
		if t.Name() == name {
			return t, true
		}
	}
	return nil, false
}

// FindHandoff returns the handoff whose pseudo-tool name matches, if any.
func (a *Agent) FindHandoff(toolName string) (*Handoff, bool) {
	for i := range a.Handoffs {
		if a.Handoffs[i].ToolName == toolName {
			return &a.Handoffs[i], true
		}
	}
	return nil, false
}
