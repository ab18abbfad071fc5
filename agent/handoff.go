package agent

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/hupe1980/agentrun/item"
	"github.com/hupe1980/agentrun/runctx"
)

// HandoffInputData is the three-part view of the transcript at the moment
// of a control transfer:
//
//   - InputHistory: the pre-run input, type-preserving so a filter can
//     distinguish a raw string from structured history
//   - PreHandoffItems: items produced by agents prior to the agent that
//     triggered the handoff
//   - NewItems: items produced by the handing-off agent in the current
//     turn, including the handoff items themselves
//
// Concatenating the three in order reconstructs the full pre-transition
// transcript; a filter must return a triple satisfying the same structural
// invariant for the next agent's input.
type HandoffInputData struct {
	InputHistory    item.Input
	PreHandoffItems []item.Item
	NewItems        []item.Item
}

// AllItems concatenates the triple into the effective transcript for the
// next agent.
func (d HandoffInputData) AllItems() []item.Item {
	all := d.InputHistory.AsItems()
	all = append(all, d.PreHandoffItems...)
	all = append(all, d.NewItems...)
	return all
}

// InputFilter transforms the transcript crossing a handoff boundary.
// Filters must be pure and total over their declared input shape; typical
// uses truncate the oldest history or redact tool-call noise before it
// reaches a different specialized agent.
type InputFilter func(data HandoffInputData) (HandoffInputData, error)

// HandoffOptions configures a Handoff.
type HandoffOptions struct {
	ToolName    string
	Description string
	InputFilter InputFilter
	OnHandoff   func(rc *runctx.Context) error
}

// Handoff is a typed transition descriptor from a source agent to a target
// agent. It is exposed to the source model as a pseudo-tool the model can
// choose to call.
type Handoff struct {
	// Target is the agent receiving control.
	Target *Agent

	// ToolName is the pseudo-tool name the model calls to trigger the
	// transfer. Defaults to "transfer_to_<snake_case(target name)>".
	ToolName string

	// Description is shown to the source model, analogous to a tool
	// description. Defaults to the target's HandoffDescription.
	Description string

	// InputFilter optionally transforms the transcript before the target
	// agent sees it. Nil means the target receives it unmodified.
	InputFilter InputFilter

	// OnHandoff is an optional side-effecting callback invoked with the run
	// context at the moment of transition, before the target agent runs.
	OnHandoff func(rc *runctx.Context) error
}

// NewHandoff constructs a Handoff to the given target agent.
func NewHandoff(target *Agent, optFns ...func(o *HandoffOptions)) Handoff {
	opts := HandoffOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	toolName := opts.ToolName
	if toolName == "" {
		toolName = DefaultHandoffToolName(target.Name)
	}

	description := opts.Description
	if description == "" {
		description = target.HandoffDescription
	}
	if description == "" {
		description = fmt.Sprintf("Handoff to the %s agent to handle the request.", target.Name)
	}

	return Handoff{
		Target:      target,
		ToolName:    toolName,
		Description: description,
		InputFilter: opts.InputFilter,
		OnHandoff:   opts.OnHandoff,
	}
}

// HandoffTo wraps bare agents as default handoffs, for the common case
// where no filter or callback is needed.
func HandoffTo(targets ...*Agent) []Handoff {
	handoffs := make([]Handoff, 0, len(targets))
	for _, target := range targets {
		handoffs = append(handoffs, NewHandoff(target))
	}
	return handoffs
}

// DefaultHandoffToolName derives the pseudo-tool name for a target agent,
// e.g. "Spanish Agent" -> "transfer_to_spanish_agent".
func DefaultHandoffToolName(agentName string) string {
	var b strings.Builder
	b.WriteString("transfer_to_")

	lastUnderscore := true
	for _, r := range agentName {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(unicode.ToLower(r))
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteRune('_')
				lastUnderscore = true
			}
		}
	}

	return strings.TrimRight(b.String(), "_")
}

// ParamsJSONSchema returns the argument schema declared for the pseudo-tool.
// Handoffs take no arguments; the empty object keeps providers that require
// a schema satisfied.
func (h Handoff) ParamsJSONSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"properties":           map[string]any{},
		"additionalProperties": false,
	}
}
