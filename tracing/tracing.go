// Package tracing groups runner steps into named, correlatable units of
// work. A Trace represents one workflow (one or more runs); Spans record
// the agent, generation, tool and handoff steps inside it. Recording is
// independent of the output destination: processors receive start/end
// notifications and decide where finished traces go.
package tracing

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/agentrun/internal/util"
)

// Span kinds recorded by the runner.
const (
	KindAgent      = "agent"
	KindGeneration = "generation"
	KindTool       = "tool"
	KindHandoff    = "handoff"
	KindCustom     = "custom"
)

// Span is one recorded step inside a trace. After End it should be treated
// as immutable.
type Span struct {
	ID       string         `json:"id"`
	TraceID  string         `json:"trace_id"`
	ParentID string         `json:"parent_id,omitempty"`
	Name     string         `json:"name"`
	Kind     string         `json:"kind"`
	Started  time.Time      `json:"started_at"`
	Ended    time.Time      `json:"ended_at,omitzero"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// Trace is a named grouping of runner steps. GroupID links traces from the
// same conversation or process (e.g. a chat thread ID).
type Trace struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	GroupID  string         `json:"group_id,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Started  time.Time      `json:"started_at"`
	Ended    time.Time      `json:"ended_at,omitzero"`

	mu    sync.Mutex
	ended bool
}

// Processor receives lifecycle notifications for traces and spans.
type Processor interface {
	OnTraceStart(t *Trace)
	OnTraceEnd(t *Trace)
	OnSpanStart(s *Span)
	OnSpanEnd(s *Span)
}

var (
	registry struct {
		mu         sync.RWMutex
		processors []Processor
	}
	disabled atomic.Bool
)

// SetProcessors replaces the registered processor set.
func SetProcessors(processors ...Processor) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.processors = processors
}

// AddProcessor appends a processor to the registered set.
func AddProcessor(p Processor) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.processors = append(registry.processors, p)
}

// SetDisabled globally switches trace recording on or off.
func SetDisabled(d bool) { disabled.Store(d) }

// Disabled reports whether trace recording is globally disabled.
func Disabled() bool { return disabled.Load() }

func eachProcessor(fn func(Processor)) {
	registry.mu.RLock()
	processors := registry.processors
	registry.mu.RUnlock()
	for _, p := range processors {
		fn(p)
	}
}

// Options configure a new Trace.
type Options struct {
	TraceID  string
	GroupID  string
	Metadata map[string]any
}

type traceCtxKey struct{}

// NewTrace starts a trace with the given workflow name and binds it to the
// returned context. The caller must End the trace. If recording is
// disabled the trace is inert but still safe to use.
func NewTrace(ctx context.Context, workflowName string, optFns ...func(o *Options)) (context.Context, *Trace) {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}

	id := opts.TraceID
	if id == "" {
		id = "trace_" + util.NewID()
	}

	t := &Trace{
		ID:       id,
		Name:     workflowName,
		GroupID:  opts.GroupID,
		Metadata: opts.Metadata,
		Started:  time.Now().UTC(),
	}

	if !Disabled() {
		eachProcessor(func(p Processor) { p.OnTraceStart(t) })
	}

	return context.WithValue(ctx, traceCtxKey{}, t), t
}

// FromContext returns the ambient trace, if any.
func FromContext(ctx context.Context) (*Trace, bool) {
	t, ok := ctx.Value(traceCtxKey{}).(*Trace)
	return t, ok
}

// End finishes the trace and notifies processors. End is idempotent.
func (t *Trace) End() {
	t.mu.Lock()
	if t.ended {
		t.mu.Unlock()
		return
	}
	t.ended = true
	t.Ended = time.Now().UTC()
	t.mu.Unlock()

	if !Disabled() {
		eachProcessor(func(p Processor) { p.OnTraceEnd(t) })
	}
}

// StartSpan records the start of a step under the context's trace and
// returns the span plus a finish function. Without an ambient trace (or
// with recording disabled) the span is inert.
func StartSpan(ctx context.Context, name, kind string, metadata map[string]any) (*Span, func(err error)) {
	t, ok := FromContext(ctx)
	if !ok || Disabled() {
		s := &Span{Name: name, Kind: kind, Started: time.Now().UTC(), Metadata: metadata}
		return s, func(error) {}
	}

	s := &Span{
		ID:       "span_" + util.NewID(),
		TraceID:  t.ID,
		Name:     name,
		Kind:     kind,
		Started:  time.Now().UTC(),
		Metadata: metadata,
	}

	eachProcessor(func(p Processor) { p.OnSpanStart(s) })

	return s, func(err error) {
		s.Ended = time.Now().UTC()
		if err != nil {
			s.Error = err.Error()
		}
		eachProcessor(func(p Processor) { p.OnSpanEnd(s) })
	}
}
