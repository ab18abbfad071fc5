// Package model defines the provider-agnostic language model capability the
// runner depends on: a normalized request/response shape, a minimal Model
// interface and a Provider indirection so different runs against the same
// agent graph can target different backends.
package model

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/hupe1980/agentrun/item"
)

// ToolCall represents a function call request surfaced by a model provider.
// Unified across vendors so downstream logic does not need per-provider
// branching. Handoff requests arrive through the same shape; the runner
// distinguishes them by pseudo-tool name.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments,omitempty"` // Serialized JSON argument payload
}

// ToolDefinition declaratively exposes a callable function to the model.
// Parameters is a JSON Schema object (draft agnostic, minimal subset expected).
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Settings carries per-call generation parameters. Zero values mean
// "provider default".
type Settings struct {
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   int64    `json:"max_tokens,omitempty"`
}

// Request captures the normalized model input assembled by the runner:
// resolved instructions plus the accumulated conversation items, with the
// agent's tools and handoff targets exposed as callable declarations.
type Request struct {
	Instructions string           `json:"instructions"`
	Items        []item.Item      `json:"items"`
	Tools        []ToolDefinition `json:"tools,omitempty"`
	Stream       bool             `json:"stream,omitempty"`
	Settings     Settings         `json:"settings"`
}

// Usage captures token usage statistics for a response.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Response is a (partial or final) chunk emitted by a model. Partial
// responses carry an incremental text Delta; the final response carries the
// accumulated Text, any ToolCalls and the finish reason.
type Response struct {
	ID           string     `json:"id"`
	Partial      bool       `json:"partial"`
	Delta        string     `json:"delta,omitempty"`
	Text         string     `json:"text,omitempty"`
	ToolCalls    []ToolCall `json:"tool_calls,omitempty"`
	FinishReason string     `json:"finish_reason,omitempty"` // "stop", "length", "tool_calls", etc.
	Usage        *Usage     `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "mock", etc.
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the minimal interface required to drive generation. The channel
// pair is closed when the call completes; the error channel carries at most
// one terminal error.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// Provider resolves a model name to a concrete Model. A run substitutes the
// provider through its run configuration, making backends swappable per run.
type Provider interface {
	GetModel(name string) (Model, error)
}

// StaticProvider always returns the same Model regardless of name. Useful
// when every agent in a graph targets one backend.
type StaticProvider struct{ model Model }

// NewStaticProvider wraps a single model as a Provider.
func NewStaticProvider(m Model) *StaticProvider { return &StaticProvider{model: m} }

// GetModel implements Provider.
func (p *StaticProvider) GetModel(string) (Model, error) { return p.model, nil }

// MultiProvider routes model names to providers by prefix (e.g. "openai/",
// "anthropic/") with a fallback for unprefixed names. Registration is safe
// for concurrent use with resolution.
type MultiProvider struct {
	mu       sync.RWMutex
	prefixes map[string]Provider
	fallback Provider
}

// NewMultiProvider creates a MultiProvider with the given fallback.
func NewMultiProvider(fallback Provider) *MultiProvider {
	return &MultiProvider{prefixes: make(map[string]Provider), fallback: fallback}
}

// Register maps a name prefix (without the trailing slash) to a provider.
func (p *MultiProvider) Register(prefix string, provider Provider) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prefixes[prefix] = provider
}

// GetModel implements Provider. A prefixed name like "anthropic/claude-x"
// is routed to the registered provider with the prefix stripped.
func (p *MultiProvider) GetModel(name string) (Model, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if prefix, rest, ok := strings.Cut(name, "/"); ok {
		if provider, exists := p.prefixes[prefix]; exists {
			return provider.GetModel(rest)
		}
	}

	if p.fallback == nil {
		return nil, fmt.Errorf("no provider registered for model %q", name)
	}

	return p.fallback.GetModel(name)
}
