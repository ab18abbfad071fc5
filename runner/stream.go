package runner

import (
	"context"
	"sync"

	"github.com/hupe1980/agentrun/agent"
	"github.com/hupe1980/agentrun/item"
)

// Stream event types.
const (
	// EventDelta carries an incremental text fragment of an assistant
	// message being assembled.
	EventDelta = "delta"
	// EventItem carries a completed item as it is appended to the run.
	EventItem = "item"
	// EventAgentUpdated signals that control transferred to another agent.
	EventAgentUpdated = "agent_updated"
	// EventDone terminates the stream and carries the final RunResult.
	EventDone = "done"
	// EventError terminates the stream and carries the terminal error.
	EventError = "error"
)

// StreamEvent is one element of a streamed run. Type selects which of the
// payload fields is set.
type StreamEvent struct {
	Type   string
	Delta  string
	Item   item.Item
	Agent  *agent.Agent
	Result *RunResult
	Err    error
}

// RunStream exposes a streamed run as a single-consumer, finite event
// sequence. The channel is closed after the terminal done or error event.
type RunStream struct {
	events chan StreamEvent
	cancel context.CancelFunc

	mu     sync.Mutex
	result *RunResult
	err    error
	done   chan struct{}
}

func newRunStream(cancel context.CancelFunc, bufferSize int) *RunStream {
	if bufferSize <= 0 {
		bufferSize = 64
	}

	return &RunStream{
		events: make(chan StreamEvent, bufferSize),
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// Events returns the event channel. It is closed once the run finishes;
// the consumer must drain it to avoid blocking the run.
func (s *RunStream) Events() <-chan StreamEvent { return s.events }

// Cancel aborts the run. Pending events may still be delivered before the
// stream terminates.
func (s *RunStream) Cancel() { s.cancel() }

// Result blocks until the run finished and returns the final result or
// the terminal error, matching what the non-streaming entry point would
// have returned.
func (s *RunStream) Result() (*RunResult, error) {
	<-s.done

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.result, s.err
}

// emit delivers an event, dropping it if the consumer went away with the
// run context canceled.
func (s *RunStream) emit(ctx context.Context, ev StreamEvent) {
	select {
	case s.events <- ev:
	case <-ctx.Done():
	}
}

// finish records the outcome, emits the terminal event and closes the
// channel. It must be called exactly once.
func (s *RunStream) finish(ctx context.Context, result *RunResult, err error) {
	s.mu.Lock()
	s.result = result
	s.err = err
	s.mu.Unlock()

	if err != nil {
		s.emit(ctx, StreamEvent{Type: EventError, Err: err})
	} else {
		s.emit(ctx, StreamEvent{Type: EventDone, Result: result})
	}

	close(s.events)
	close(s.done)
}
