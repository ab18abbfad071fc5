package model

import (
	"context"
	"fmt"
	"sync"
)

// MockTurn scripts one model response for MockModel: either plain text, one
// or more tool calls, or both.
type MockTurn struct {
	Text      string
	ToolCalls []ToolCall
	Usage     *Usage
	Err       error
}

// MockModel is a lightweight in-memory Model useful for tests & examples.
// It replays a scripted sequence of turns; each Generate call consumes the
// next turn. When streaming is requested the text is emitted as per-rune
// deltas before the final response, mimicking real providers.
type MockModel struct {
	mu    sync.Mutex
	info  Info
	turns []MockTurn
	next  int

	// Requests records every request received, for assertions.
	Requests []Request
}

// NewMockModel constructs a MockModel with basic tool support enabled.
func NewMockModel(name string) *MockModel {
	return &MockModel{
		info: Info{Name: name, Provider: "mock", SupportsTools: true},
	}
}

// AddTurn appends a scripted turn.
func (m *MockModel) AddTurn(turn MockTurn) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = append(m.turns, turn)
	return m
}

// AddTextTurn appends a plain-content turn.
func (m *MockModel) AddTextTurn(text string) *MockModel {
	return m.AddTurn(MockTurn{Text: text})
}

// AddToolCallTurn appends a turn requesting the given tool calls.
func (m *MockModel) AddToolCallTurn(calls ...ToolCall) *MockModel {
	return m.AddTurn(MockTurn{ToolCalls: calls})
}

// Generate implements Model; emits optional streaming rune chunks then the
// final scripted response.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	m.mu.Lock()
	m.Requests = append(m.Requests, req)
	var turn MockTurn
	exhausted := m.next >= len(m.turns)
	if !exhausted {
		turn = m.turns[m.next]
		m.next++
	}
	m.mu.Unlock()

	go func() {
		defer close(respCh)
		defer close(errCh)

		if exhausted {
			errCh <- fmt.Errorf("mock model %s: no scripted turn left", m.info.Name)
			return
		}
		if turn.Err != nil {
			errCh <- turn.Err
			return
		}

		if req.Stream && turn.Text != "" {
			for _, r := range turn.Text {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case respCh <- Response{Partial: true, Delta: string(r)}:
				}
			}
		}

		finishReason := "stop"
		if len(turn.ToolCalls) > 0 {
			finishReason = "tool_calls"
		}

		usage := turn.Usage
		if usage == nil {
			usage = &Usage{InputTokens: len(req.Items), OutputTokens: 1, TotalTokens: len(req.Items) + 1}
		}

		select {
		case <-ctx.Done():
			errCh <- ctx.Err()
		case respCh <- Response{
			Text:         turn.Text,
			ToolCalls:    turn.ToolCalls,
			FinishReason: finishReason,
			Usage:        usage,
		}:
		}
	}()

	return respCh, errCh
}

// Info implements Model.
func (m *MockModel) Info() Info { return m.info }
