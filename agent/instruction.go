package agent

import "github.com/hupe1980/agentrun/runctx"

// Provider supplies dynamic instruction text at runtime. Implementations
// can derive instructions from the run context, environment, etc. The
// provider is evaluated fresh on every turn the agent is active and must
// never be cached across turns, since context may have changed.
type Provider interface {
	Instructions(rc *runctx.Context, a *Agent) (string, error)
}

// Func is a functional adapter to allow ordinary functions to be used as Providers.
type Func func(rc *runctx.Context, a *Agent) (string, error)

// Instructions implements Provider.
func (f Func) Instructions(rc *runctx.Context, a *Agent) (string, error) { return f(rc, a) }

// Instruction represents either a static instruction string or a dynamic
// provider. This mirrors a union of string | provider in a Go-idiomatic way.
type Instruction struct {
	text     string
	provider Provider
}

// NewInstruction creates an Instruction from a static string.
func NewInstruction(text string) Instruction { return Instruction{text: text} }

// NewInstructionFromProvider creates an Instruction from a dynamic provider.
func NewInstructionFromProvider(p Provider) Instruction { return Instruction{provider: p} }

// NewInstructionFromFunc creates an Instruction from a function.
func NewInstructionFromFunc(f func(rc *runctx.Context, a *Agent) (string, error)) Instruction {
	return Instruction{provider: Func(f)}
}

// IsStatic returns true if the instruction is backed by a static string.
func (i Instruction) IsStatic() bool { return i.provider == nil }

// Resolve returns the instruction text, invoking the provider if needed.
func (i Instruction) Resolve(rc *runctx.Context, a *Agent) (string, error) {
	if i.provider != nil {
		return i.provider.Instructions(rc, a)
	}
	return i.text, nil
}
