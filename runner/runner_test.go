package runner

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrun/agent"
	"github.com/hupe1980/agentrun/item"
	"github.com/hupe1980/agentrun/model"
	"github.com/hupe1980/agentrun/runctx"
	"github.com/hupe1980/agentrun/session"
	"github.com/hupe1980/agentrun/tool"
)

func withMock(m *model.MockModel) func(c *RunConfig) {
	return func(c *RunConfig) {
		c.Provider = model.NewStaticProvider(m)
		c.TracingDisabled = true
	}
}

func newDoubleTool() tool.Tool {
	return tool.New("double", "Double the given number.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"x": map[string]any{"type": "number"},
			},
			"required": []string{"x"},
		},
		func(toolCtx *tool.Context, args map[string]any) (any, error) {
			return args["x"].(float64) * 2, nil
		})
}

func TestSingleTurnRun(t *testing.T) {
	m := model.NewMockModel("mock").AddTextTurn("final answer")

	assistant := agent.New("Assistant", func(o *agent.Options) {
		o.Instructions = agent.NewInstruction("Be helpful.")
	})

	result, err := New().Run(context.Background(), assistant, item.NewInputFromText("hi"), withMock(m))
	require.NoError(t, err)

	assert.Equal(t, "final answer", result.FinalOutput)
	assert.Same(t, assistant, result.LastAgent)
	require.Len(t, result.NewItems, 1)

	msg, ok := result.NewItems[0].(item.MessageItem)
	require.True(t, ok)
	assert.Equal(t, "Assistant", msg.Agent)
	assert.Equal(t, item.RoleAssistant, msg.Role)

	// Exactly one model invocation for a tool-free agent with plain content.
	assert.Len(t, m.Requests, 1)
	assert.Equal(t, 1, result.Usage.Requests)
}

func TestToInputListReplay(t *testing.T) {
	m := model.NewMockModel("mock").AddTextTurn("answer")

	assistant := agent.New("Assistant")

	result, err := New().Run(context.Background(), assistant, item.NewInputFromText("question"), withMock(m))
	require.NoError(t, err)

	replay := result.ToInputList()
	require.Len(t, replay, 2)
	assert.Equal(t, "question", replay[0].(item.MessageItem).Text)
	assert.Equal(t, "answer", replay[1].(item.MessageItem).Text)
}

func TestToolExecution(t *testing.T) {
	m := model.NewMockModel("mock").
		AddToolCallTurn(model.ToolCall{ID: "c1", Name: "double", Arguments: `{"x": 21}`}).
		AddTextTurn("the result is 42")

	assistant := agent.New("Assistant", func(o *agent.Options) {
		o.Tools = []tool.Tool{newDoubleTool()}
	})

	result, err := New().Run(context.Background(), assistant, item.NewInputFromText("double 21"), withMock(m))
	require.NoError(t, err)

	assert.Equal(t, "the result is 42", result.FinalOutput)
	require.Len(t, result.NewItems, 3)

	call, ok := result.NewItems[0].(item.ToolCallItem)
	require.True(t, ok)
	assert.Equal(t, "double", call.Name)

	out, ok := result.NewItems[1].(item.ToolCallOutputItem)
	require.True(t, ok)
	assert.Equal(t, "42", out.Output)
	assert.False(t, out.IsError)

	assert.IsType(t, item.MessageItem{}, result.NewItems[2])

	// The second model call must see the tool exchange.
	require.Len(t, m.Requests, 2)
	assert.Len(t, m.Requests[1].Items, 3)
}

func TestParallelToolOutputsKeepRequestOrder(t *testing.T) {
	m := model.NewMockModel("mock").
		AddToolCallTurn(
			model.ToolCall{ID: "c1", Name: "first", Arguments: "{}"},
			model.ToolCall{ID: "c2", Name: "second", Arguments: "{}"},
		).
		AddTextTurn("done")

	mkTool := func(name, out string) tool.Tool {
		return tool.New(name, "test tool", map[string]any{"type": "object"},
			func(toolCtx *tool.Context, args map[string]any) (any, error) {
				return out, nil
			})
	}

	assistant := agent.New("Assistant", func(o *agent.Options) {
		o.Tools = []tool.Tool{mkTool("first", "one"), mkTool("second", "two")}
	})

	result, err := New().Run(context.Background(), assistant, item.NewInputFromText("go"), withMock(m))
	require.NoError(t, err)

	var outputs []string
	for _, it := range result.NewItems {
		if out, ok := it.(item.ToolCallOutputItem); ok {
			outputs = append(outputs, out.Output)
		}
	}

	assert.Equal(t, []string{"one", "two"}, outputs)
}

func TestUnknownToolProducesErrorOutput(t *testing.T) {
	m := model.NewMockModel("mock").
		AddToolCallTurn(model.ToolCall{ID: "c1", Name: "nonexistent", Arguments: "{}"}).
		AddTextTurn("recovered")

	assistant := agent.New("Assistant")

	result, err := New().Run(context.Background(), assistant, item.NewInputFromText("go"), withMock(m))
	require.NoError(t, err)

	assert.Equal(t, "recovered", result.FinalOutput)

	out, ok := result.NewItems[1].(item.ToolCallOutputItem)
	require.True(t, ok)
	assert.True(t, out.IsError)
	assert.Contains(t, out.Output, "unknown tool")
}

func TestToolErrorIsRecoverable(t *testing.T) {
	m := model.NewMockModel("mock").
		AddToolCallTurn(model.ToolCall{ID: "c1", Name: "flaky", Arguments: "{}"}).
		AddTextTurn("recovered")

	flaky := tool.New("flaky", "always fails", map[string]any{"type": "object"},
		func(toolCtx *tool.Context, args map[string]any) (any, error) {
			return nil, errors.New("backend down")
		})

	assistant := agent.New("Assistant", func(o *agent.Options) {
		o.Tools = []tool.Tool{flaky}
	})

	result, err := New().Run(context.Background(), assistant, item.NewInputFromText("go"), withMock(m))
	require.NoError(t, err)

	assert.Equal(t, "recovered", result.FinalOutput)

	out, ok := result.NewItems[1].(item.ToolCallOutputItem)
	require.True(t, ok)
	assert.True(t, out.IsError)
}

func TestFatalToolAbortsRun(t *testing.T) {
	m := model.NewMockModel("mock").
		AddToolCallTurn(model.ToolCall{ID: "c1", Name: "critical", Arguments: "{}"})

	critical := tool.New("critical", "must not fail", map[string]any{"type": "object"},
		func(toolCtx *tool.Context, args map[string]any) (any, error) {
			return nil, errors.New("disk full")
		},
		func(o *tool.Options) { o.FailOnError = true })

	assistant := agent.New("Assistant", func(o *agent.Options) {
		o.Tools = []tool.Tool{critical}
	})

	_, err := New().Run(context.Background(), assistant, item.NewInputFromText("go"), withMock(m))
	require.Error(t, err)

	var fatalErr *ToolFatalError
	require.ErrorAs(t, err, &fatalErr)
	assert.Equal(t, "critical", fatalErr.ToolName)

	// Items produced before the failure stay accessible.
	assert.NotEmpty(t, fatalErr.Items())
}

func TestCancellationPreservesItems(t *testing.T) {
	m := model.NewMockModel("mock").
		AddToolCallTurn(model.ToolCall{ID: "c1", Name: "stop", Arguments: "{}"}).
		AddTextTurn("never reached")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := tool.New("stop", "cancels the run", map[string]any{"type": "object"},
		func(toolCtx *tool.Context, args map[string]any) (any, error) {
			cancel()
			return "stopping", nil
		})

	assistant := agent.New("Assistant", func(o *agent.Options) {
		o.Tools = []tool.Tool{stop}
	})

	_, err := New().Run(ctx, assistant, item.NewInputFromText("go"), withMock(m))
	require.Error(t, err)

	var canceledErr *CanceledError
	require.ErrorAs(t, err, &canceledErr)
	assert.ErrorIs(t, err, context.Canceled)

	// The turn completed before the cancellation stays accessible.
	require.Len(t, canceledErr.Items(), 2)
	assert.IsType(t, item.ToolCallItem{}, canceledErr.Items()[0])
	assert.IsType(t, item.ToolCallOutputItem{}, canceledErr.Items()[1])
}

type toolOutputRunHooks struct {
	agent.NoopRunHooks
	outputs []string
}

func (h *toolOutputRunHooks) OnToolEnd(_ context.Context, _ *runctx.Context, a *agent.Agent, t tool.Tool, result string) error {
	h.outputs = append(h.outputs, result)
	return nil
}

func TestToolEndHookSeesErrorOutput(t *testing.T) {
	m := model.NewMockModel("mock").
		AddToolCallTurn(model.ToolCall{ID: "c1", Name: "flaky", Arguments: "{}"}).
		AddTextTurn("recovered")

	flaky := tool.New("flaky", "always fails", map[string]any{"type": "object"},
		func(toolCtx *tool.Context, args map[string]any) (any, error) {
			return nil, errors.New("backend down")
		})

	hooks := &toolOutputRunHooks{}

	assistant := agent.New("Assistant", func(o *agent.Options) {
		o.Tools = []tool.Tool{flaky}
	})

	_, err := New().Run(context.Background(), assistant, item.NewInputFromText("go"), func(c *RunConfig) {
		withMock(m)(c)
		c.Hooks = hooks
	})
	require.NoError(t, err)

	// The hook observes the same output text the model sees.
	require.Len(t, hooks.outputs, 1)
	assert.Equal(t, "error: backend down", hooks.outputs[0])
}

func TestMaxTurnsExceeded(t *testing.T) {
	m := model.NewMockModel("mock")
	for range 5 {
		m.AddToolCallTurn(model.ToolCall{ID: "c", Name: "double", Arguments: `{"x": 1}`})
	}

	assistant := agent.New("Assistant", func(o *agent.Options) {
		o.Tools = []tool.Tool{newDoubleTool()}
	})

	_, err := New().Run(context.Background(), assistant, item.NewInputFromText("loop"), func(c *RunConfig) {
		withMock(m)(c)
		c.MaxTurns = 2
	})
	require.Error(t, err)

	var maxErr *MaxTurnsError
	require.ErrorAs(t, err, &maxErr)
	assert.Equal(t, 2, maxErr.MaxTurns)
	assert.NotEmpty(t, maxErr.Items())
}

func TestHandoffTranscript(t *testing.T) {
	m := model.NewMockModel("mock").
		AddToolCallTurn(model.ToolCall{ID: "c1", Name: "transfer_to_agent_b", Arguments: "{}"}).
		AddTextTurn("hello from B")

	agentB := agent.New("Agent B")
	agentA := agent.New("Agent A", func(o *agent.Options) {
		o.Handoffs = agent.HandoffTo(agentB)
	})

	input := item.NewInputFromItems([]item.Item{
		item.MessageItem{Role: item.RoleUser, Text: "m1"},
		item.MessageItem{Role: item.RoleUser, Text: "m2"},
	})

	result, err := New().Run(context.Background(), agentA, input, withMock(m))
	require.NoError(t, err)

	assert.Same(t, agentB, result.LastAgent)
	assert.Equal(t, "hello from B", result.FinalOutput)

	// Without a filter, B sees the untouched history plus the handoff
	// records of A's turn.
	require.Len(t, m.Requests, 2)
	seen := m.Requests[1].Items
	require.Len(t, seen, 4)
	assert.Equal(t, "m1", seen[0].(item.MessageItem).Text)
	assert.Equal(t, "m2", seen[1].(item.MessageItem).Text)
	assert.IsType(t, item.HandoffCallItem{}, seen[2])

	handoffOut, ok := seen[3].(item.HandoffOutputItem)
	require.True(t, ok)
	assert.Equal(t, "Agent A", handoffOut.SourceAgent)
	assert.Equal(t, "Agent B", handoffOut.TargetAgent)
}

func TestHandoffInputFilter(t *testing.T) {
	m := model.NewMockModel("mock").
		AddToolCallTurn(model.ToolCall{ID: "c1", Name: "lookup", Arguments: "{}"}).
		AddToolCallTurn(model.ToolCall{ID: "c2", Name: "transfer_to_agent_b", Arguments: "{}"}).
		AddTextTurn("clean slate")

	lookup := tool.New("lookup", "lookup", map[string]any{"type": "object"},
		func(toolCtx *tool.Context, args map[string]any) (any, error) {
			return "data", nil
		})

	agentB := agent.New("Agent B")
	agentA := agent.New("Agent A", func(o *agent.Options) {
		o.Tools = []tool.Tool{lookup}
		o.Handoffs = []agent.Handoff{
			agent.NewHandoff(agentB, func(ho *agent.HandoffOptions) {
				ho.InputFilter = agent.RemoveAllTools
			}),
		}
	})

	result, err := New().Run(context.Background(), agentA, item.NewInputFromText("go"), withMock(m))
	require.NoError(t, err)

	assert.Equal(t, "clean slate", result.FinalOutput)

	// The filtered conversation B sees carries no tool items.
	require.Len(t, m.Requests, 3)
	for _, it := range m.Requests[2].Items {
		switch it.(type) {
		case item.ToolCallItem, item.ToolCallOutputItem:
			t.Fatalf("tool item %T leaked through the filter", it)
		}
	}

	// The run log still contains the full record.
	var toolItems int
	for _, it := range result.NewItems {
		switch it.(type) {
		case item.ToolCallItem, item.ToolCallOutputItem:
			toolItems++
		}
	}
	assert.Equal(t, 2, toolItems)
}

func TestHandoffCallbackMutatesContext(t *testing.T) {
	m := model.NewMockModel("mock").
		AddToolCallTurn(model.ToolCall{ID: "c1", Name: "transfer_to_agent_b", Arguments: "{}"}).
		AddTextTurn("done")

	type state struct{ FlightNumber string }

	agentB := agent.New("Agent B")
	agentA := agent.New("Agent A", func(o *agent.Options) {
		o.Handoffs = []agent.Handoff{
			agent.NewHandoff(agentB, func(ho *agent.HandoffOptions) {
				ho.OnHandoff = func(rc *runctx.Context) error {
					rc.Value.(*state).FlightNumber = "FLT-123"
					return nil
				}
			}),
		}
	})

	st := &state{}

	_, err := New().Run(context.Background(), agentA, item.NewInputFromText("book"), func(c *RunConfig) {
		withMock(m)(c)
		c.Context = st
	})
	require.NoError(t, err)

	assert.Equal(t, "FLT-123", st.FlightNumber)
}

func TestMultipleHandoffsFirstWins(t *testing.T) {
	m := model.NewMockModel("mock").
		AddToolCallTurn(
			model.ToolCall{ID: "c1", Name: "transfer_to_agent_b", Arguments: "{}"},
			model.ToolCall{ID: "c2", Name: "transfer_to_agent_c", Arguments: "{}"},
		).
		AddTextTurn("handled")

	agentB := agent.New("Agent B")
	agentC := agent.New("Agent C")
	agentA := agent.New("Agent A", func(o *agent.Options) {
		o.Handoffs = agent.HandoffTo(agentB, agentC)
	})

	result, err := New().Run(context.Background(), agentA, item.NewInputFromText("go"), withMock(m))
	require.NoError(t, err)

	assert.Same(t, agentB, result.LastAgent)

	var rejected int
	for _, it := range result.NewItems {
		if out, ok := it.(item.ToolCallOutputItem); ok && out.IsError {
			rejected++
		}
	}
	assert.Equal(t, 1, rejected)
}

func TestOutputValidatorRetries(t *testing.T) {
	m := model.NewMockModel("mock").
		AddTextTurn("bad").
		AddTextTurn("good")

	assistant := agent.New("Assistant", func(o *agent.Options) {
		o.OutputValidator = func(output string) error {
			if output == "bad" {
				return errors.New("output rejected")
			}
			return nil
		}
	})

	result, err := New().Run(context.Background(), assistant, item.NewInputFromText("go"), withMock(m))
	require.NoError(t, err)

	assert.Equal(t, "good", result.FinalOutput)
	assert.Len(t, m.Requests, 2)

	// The correction prompt is part of the transcript.
	var correction bool
	for _, it := range result.NewItems {
		if msg, ok := it.(item.MessageItem); ok && msg.Role == item.RoleUser {
			correction = true
		}
	}
	assert.True(t, correction)
}

func TestInstructionFailureIsConfigError(t *testing.T) {
	m := model.NewMockModel("mock").AddTextTurn("never reached")

	assistant := agent.New("Assistant", func(o *agent.Options) {
		o.Instructions = agent.NewInstructionFromFunc(func(rc *runctx.Context, a *agent.Agent) (string, error) {
			return "", errors.New("no instructions available")
		})
	})

	_, err := New().Run(context.Background(), assistant, item.NewInputFromText("go"), withMock(m))
	require.Error(t, err)

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Empty(t, m.Requests)
}

func TestDuplicateAgentNamesRejected(t *testing.T) {
	m := model.NewMockModel("mock")

	dupA := agent.New("Dup")
	dupB := agent.New("Dup")
	start := agent.New("Start", func(o *agent.Options) {
		o.Handoffs = agent.HandoffTo(dupA, dupB)
	})

	_, err := New().Run(context.Background(), start, item.NewInputFromText("go"), withMock(m))
	require.Error(t, err)

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestDuplicateCallableNamesRejected(t *testing.T) {
	m := model.NewMockModel("mock")

	assistant := agent.New("Assistant", func(o *agent.Options) {
		o.Tools = []tool.Tool{newDoubleTool(), newDoubleTool()}
	})

	_, err := New().Run(context.Background(), assistant, item.NewInputFromText("go"), withMock(m))
	require.Error(t, err)

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestModelErrorWithRetryPolicy(t *testing.T) {
	m := model.NewMockModel("mock").
		AddTurn(model.MockTurn{Err: errors.New("transient")}).
		AddTextTurn("after retry")

	assistant := agent.New("Assistant")

	var attempts []int

	result, err := New().Run(context.Background(), assistant, item.NewInputFromText("go"), func(c *RunConfig) {
		withMock(m)(c)
		c.RetryPolicy = func(attempt int, err error) (time.Duration, bool) {
			attempts = append(attempts, attempt)
			return 0, attempt < 3
		}
	})
	require.NoError(t, err)

	assert.Equal(t, "after retry", result.FinalOutput)
	assert.Equal(t, []int{1}, attempts)
}

func TestModelErrorPropagatesWithoutPolicy(t *testing.T) {
	m := model.NewMockModel("mock").
		AddTurn(model.MockTurn{Err: errors.New("boom")})

	assistant := agent.New("Assistant")

	_, err := New().Run(context.Background(), assistant, item.NewInputFromText("go"), withMock(m))
	require.Error(t, err)

	var modelErr *ModelError
	require.ErrorAs(t, err, &modelErr)
	assert.Equal(t, 1, modelErr.Attempts)
}

func TestHookErrorAbortsRun(t *testing.T) {
	m := model.NewMockModel("mock").AddTextTurn("never reached")

	assistant := agent.New("Assistant", func(o *agent.Options) {
		o.Hooks = &failingHooks{}
	})

	_, err := New().Run(context.Background(), assistant, item.NewInputFromText("go"), withMock(m))
	require.Error(t, err)

	var hookErr *HookError
	require.ErrorAs(t, err, &hookErr)
	assert.Equal(t, "on_start", hookErr.Event)
}

type failingHooks struct{ agent.NoopHooks }

func (failingHooks) OnStart(context.Context, *runctx.Context, *agent.Agent) error {
	return errors.New("hook exploded")
}

type recordingAgentHooks struct {
	agent.NoopHooks
	events *[]string
}

func (h *recordingAgentHooks) OnStart(_ context.Context, _ *runctx.Context, a *agent.Agent) error {
	*h.events = append(*h.events, "agent:on_start")
	return nil
}

func (h *recordingAgentHooks) OnEnd(_ context.Context, _ *runctx.Context, a *agent.Agent, output string) error {
	*h.events = append(*h.events, "agent:on_end")
	return nil
}

func (h *recordingAgentHooks) OnToolStart(_ context.Context, _ *runctx.Context, a *agent.Agent, t tool.Tool) error {
	*h.events = append(*h.events, "agent:on_tool_start")
	return nil
}

func (h *recordingAgentHooks) OnToolEnd(_ context.Context, _ *runctx.Context, a *agent.Agent, t tool.Tool, result string) error {
	*h.events = append(*h.events, "agent:on_tool_end")
	return nil
}

type recordingRunHooks struct {
	agent.NoopRunHooks
	events *[]string
}

func (h *recordingRunHooks) OnAgentStart(_ context.Context, _ *runctx.Context, a *agent.Agent) error {
	*h.events = append(*h.events, "run:on_agent_start")
	return nil
}

func (h *recordingRunHooks) OnAgentEnd(_ context.Context, _ *runctx.Context, a *agent.Agent, output string) error {
	*h.events = append(*h.events, "run:on_agent_end")
	return nil
}

func (h *recordingRunHooks) OnToolStart(_ context.Context, _ *runctx.Context, a *agent.Agent, t tool.Tool) error {
	*h.events = append(*h.events, "run:on_tool_start")
	return nil
}

func (h *recordingRunHooks) OnToolEnd(_ context.Context, _ *runctx.Context, a *agent.Agent, t tool.Tool, result string) error {
	*h.events = append(*h.events, "run:on_tool_end")
	return nil
}

func TestHookOrderSingleTurnWithTool(t *testing.T) {
	m := model.NewMockModel("mock").
		AddToolCallTurn(model.ToolCall{ID: "c1", Name: "double", Arguments: `{"x": 1}`}).
		AddTextTurn("done")

	var events []string

	assistant := agent.New("Assistant", func(o *agent.Options) {
		o.Tools = []tool.Tool{newDoubleTool()}
		o.Hooks = &recordingAgentHooks{events: &events}
	})

	_, err := New().Run(context.Background(), assistant, item.NewInputFromText("go"), func(c *RunConfig) {
		withMock(m)(c)
		c.Hooks = &recordingRunHooks{events: &events}
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"agent:on_start", "run:on_agent_start",
		"agent:on_tool_start", "run:on_tool_start",
		"agent:on_tool_end", "run:on_tool_end",
		"agent:on_end", "run:on_agent_end",
	}, events)
}

func TestSessionPersistsAcrossRuns(t *testing.T) {
	store := session.NewInMemoryStore()

	m := model.NewMockModel("mock").
		AddTextTurn("first answer").
		AddTextTurn("second answer")

	assistant := agent.New("Assistant")

	withSession := func(c *RunConfig) {
		withMock(m)(c)
		c.Session = store
		c.SessionID = "conv-1"
	}

	r := New()

	_, err := r.Run(context.Background(), assistant, item.NewInputFromText("first question"), withSession)
	require.NoError(t, err)

	_, err = r.Run(context.Background(), assistant, item.NewInputFromText("second question"), withSession)
	require.NoError(t, err)

	// The second model call must see the whole stored exchange.
	require.Len(t, m.Requests, 2)
	seen := m.Requests[1].Items
	require.Len(t, seen, 3)
	assert.Equal(t, "first question", seen[0].(item.MessageItem).Text)
	assert.Equal(t, "first answer", seen[1].(item.MessageItem).Text)
	assert.Equal(t, "second question", seen[2].(item.MessageItem).Text)

	stored, err := store.Items(context.Background(), "conv-1")
	require.NoError(t, err)
	assert.Len(t, stored, 4)
}

func TestUsageAccumulatesAcrossTurns(t *testing.T) {
	m := model.NewMockModel("mock").
		AddTurn(model.MockTurn{
			ToolCalls: []model.ToolCall{{ID: "c1", Name: "double", Arguments: `{"x": 1}`}},
			Usage:     &model.Usage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15},
		}).
		AddTurn(model.MockTurn{
			Text:  "done",
			Usage: &model.Usage{InputTokens: 20, OutputTokens: 2, TotalTokens: 22},
		})

	assistant := agent.New("Assistant", func(o *agent.Options) {
		o.Tools = []tool.Tool{newDoubleTool()}
	})

	result, err := New().Run(context.Background(), assistant, item.NewInputFromText("go"), withMock(m))
	require.NoError(t, err)

	assert.Equal(t, 2, result.Usage.Requests)
	assert.Equal(t, 30, result.Usage.InputTokens)
	assert.Equal(t, 7, result.Usage.OutputTokens)
	assert.Equal(t, 37, result.Usage.TotalTokens)
}

func TestDynamicInstructionsSeeContext(t *testing.T) {
	m := model.NewMockModel("mock").AddTextTurn("ok")

	assistant := agent.New("Assistant", func(o *agent.Options) {
		o.Instructions = agent.NewInstructionFromFunc(func(rc *runctx.Context, a *agent.Agent) (string, error) {
			return fmt.Sprintf("You are talking to %v.", rc.Value), nil
		})
	})

	_, err := New().Run(context.Background(), assistant, item.NewInputFromText("hi"), func(c *RunConfig) {
		withMock(m)(c)
		c.Context = "Sora"
	})
	require.NoError(t, err)

	require.Len(t, m.Requests, 1)
	assert.Equal(t, "You are talking to Sora.", m.Requests[0].Instructions)
}
