package runner

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/agentrun/agent"
	"github.com/hupe1980/agentrun/item"
	"github.com/hupe1980/agentrun/logging"
	"github.com/hupe1980/agentrun/model"
	"github.com/hupe1980/agentrun/runctx"
	"github.com/hupe1980/agentrun/session"
	"github.com/hupe1980/agentrun/tool"
	"github.com/hupe1980/agentrun/tracing"
)

// DefaultMaxTurns bounds a run when no explicit limit is configured.
const DefaultMaxTurns = 10

// RetryPolicy decides whether a failed model call is retried. It receives
// the 1-based attempt number and the failure; returning retry == false
// propagates the error.
type RetryPolicy func(attempt int, err error) (delay time.Duration, retry bool)

// RunConfig configures a single run. All fields are optional except
// Provider, which must be able to resolve the model names the agent graph
// uses.
type RunConfig struct {
	// Provider resolves model names to concrete backends.
	Provider model.Provider

	// Model, when set, overrides the model of every agent in the run.
	Model string

	// MaxTurns bounds the number of model invocations. Defaults to
	// DefaultMaxTurns.
	MaxTurns int

	// Hooks observes run-scoped lifecycle events. Per-agent hooks are
	// notified first, then these.
	Hooks agent.RunHooks

	// Context is the caller-supplied state shared by instructions, tools
	// and hooks for the duration of the run. It is never sent to the model.
	Context any

	// GlobalInputFilter applies to handoffs that have no filter of their
	// own.
	GlobalInputFilter agent.InputFilter

	// RetryPolicy governs model/transport failures. Nil propagates the
	// first failure.
	RetryPolicy RetryPolicy

	// WorkflowName names the trace recorded for this run. Defaults to
	// "Agent run".
	WorkflowName string

	// GroupID links the traces of related runs, e.g. one chat thread.
	GroupID string

	// TraceMetadata is attached to the recorded trace.
	TraceMetadata map[string]any

	// TracingDisabled switches off trace recording for this run.
	TracingDisabled bool

	// Session, together with SessionID, restores stored history before the
	// run and persists the new items afterwards.
	Session   session.Store
	SessionID string

	// EventBufferSize sizes the streamed event channel. Defaults to 64.
	EventBufferSize int
}

// Options configure a Runner.
type Options struct {
	// Logger receives runner diagnostics. Defaults to a no-op logger.
	Logger logging.Logger
}

// Runner executes agent graphs. The zero-cost construction makes it cheap
// to create one per call site, but a Runner is stateless and safe for
// concurrent use.
type Runner struct {
	logger logging.Logger
}

// New constructs a Runner.
func New(optFns ...func(o *Options)) *Runner {
	opts := Options{
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Runner{logger: opts.Logger}
}

// Run executes the agent graph starting at start until an agent produces
// final output or a limit is hit. Terminal errors implement RunError and
// expose the items produced before the failure.
func (r *Runner) Run(ctx context.Context, start *agent.Agent, input item.Input, optFns ...func(c *RunConfig)) (*RunResult, error) {
	cfg := buildConfig(optFns)
	return r.execute(ctx, start, input, cfg, nil)
}

// RunStreamed executes the same state machine as Run but returns
// immediately with a RunStream delivering deltas, items and agent changes
// as they occur. Configuration and terminal errors surface on the stream.
func (r *Runner) RunStreamed(ctx context.Context, start *agent.Agent, input item.Input, optFns ...func(c *RunConfig)) *RunStream {
	cfg := buildConfig(optFns)

	ctx, cancel := context.WithCancel(ctx)
	stream := newRunStream(cancel, cfg.EventBufferSize)

	go func() {
		result, err := r.execute(ctx, start, input, cfg, stream)
		stream.finish(ctx, result, err)
		cancel()
	}()

	return stream
}

func buildConfig(optFns []func(c *RunConfig)) RunConfig {
	cfg := RunConfig{
		MaxTurns: DefaultMaxTurns,
	}
	for _, fn := range optFns {
		fn(&cfg)
	}

	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = DefaultMaxTurns
	}

	return cfg
}

// execute runs the shared loop for both entry points. A nil stream means
// the blocking variant.
func (r *Runner) execute(ctx context.Context, start *agent.Agent, input item.Input, cfg RunConfig, stream *RunStream) (*RunResult, error) {
	if start == nil {
		return nil, &ConfigError{Message: "starting agent is nil"}
	}

	if cfg.Provider == nil {
		return nil, &ConfigError{Message: "no model provider configured"}
	}

	if err := validateGraph(start); err != nil {
		return nil, err
	}

	// Restore session history, if configured. Only the caller's own items
	// are persisted afterwards, the restored prefix is already stored.
	callerItems := input.AsItems()

	if cfg.Session != nil && cfg.SessionID != "" {
		stored, err := cfg.Session.Items(ctx, cfg.SessionID)
		if err != nil {
			return nil, &ConfigError{Message: "restore session history", Err: err}
		}

		if len(stored) > 0 {
			input = item.NewInputFromItems(append(stored, callerItems...))
		}
	}

	if !cfg.TracingDisabled && !tracing.Disabled() {
		if _, ok := tracing.FromContext(ctx); !ok {
			workflow := cfg.WorkflowName
			if workflow == "" {
				workflow = "Agent run"
			}

			var trace *tracing.Trace

			ctx, trace = tracing.NewTrace(ctx, workflow, func(o *tracing.Options) {
				o.GroupID = cfg.GroupID
				o.Metadata = cfg.TraceMetadata
			})
			defer trace.End()
		}
	}

	e := &execution{
		logger:  r.logger,
		cfg:     cfg,
		rc:      runctx.New(cfg.Context),
		current: start,
		input:   input,
		history: input,
		stream:  stream,
	}

	result, err := e.run(ctx)
	if err != nil {
		return nil, err
	}

	// Persist the exchange. The run itself succeeded, so the result is
	// returned alongside a persistence error.
	if cfg.Session != nil && cfg.SessionID != "" {
		toStore := append(callerItems, result.NewItems...)
		if err := cfg.Session.Append(ctx, cfg.SessionID, toStore); err != nil {
			return result, fmt.Errorf("persist session history: %w", err)
		}
	}

	return result, nil
}

// validateGraph walks every agent reachable from start and rejects
// duplicate agent names, duplicate tool names within an agent and handoff
// tool names colliding with each other or with regular tools.
func validateGraph(start *agent.Agent) error {
	seenAgents := map[string]*agent.Agent{}
	queue := []*agent.Agent{start}

	for len(queue) > 0 {
		a := queue[0]
		queue = queue[1:]

		if prev, ok := seenAgents[a.Name]; ok {
			if prev != a {
				return &ConfigError{Message: fmt.Sprintf("duplicate agent name %q in graph", a.Name)}
			}
			continue
		}
		seenAgents[a.Name] = a

		callables := map[string]struct{}{}

		for _, t := range a.Tools {
			if _, ok := callables[t.Name()]; ok {
				return &ConfigError{Message: fmt.Sprintf("agent %q declares tool %q twice", a.Name, t.Name())}
			}
			callables[t.Name()] = struct{}{}
		}

		for _, h := range a.Handoffs {
			if h.Target == nil {
				return &ConfigError{Message: fmt.Sprintf("agent %q has a handoff without a target", a.Name)}
			}
			if _, ok := callables[h.ToolName]; ok {
				return &ConfigError{Message: fmt.Sprintf("agent %q declares callable %q twice", a.Name, h.ToolName)}
			}
			callables[h.ToolName] = struct{}{}

			queue = append(queue, h.Target)
		}
	}

	return nil
}

// execution holds the mutable state of one run.
type execution struct {
	logger logging.Logger
	cfg    RunConfig
	rc     *runctx.Context

	current *agent.Agent

	// input is the run's effective input, untouched by handoff filters.
	input item.Input

	// history is the filterable conversation prefix. It starts as the
	// run input and is replaced by handoff filters.
	history item.Input

	// generated holds the conversation items produced since history. A
	// handoff filter may rewrite it.
	generated []item.Item

	// produced is the append-only run log exposed through RunResult and
	// RunError. Filters never touch it.
	produced []item.Item

	stream *RunStream
}

func (e *execution) run(ctx context.Context) (*RunResult, error) {
	if err := e.fireAgentStart(ctx); err != nil {
		return nil, err
	}

	turns := 0

	for {
		if err := ctx.Err(); err != nil {
			return nil, &CanceledError{Err: err, items: e.produced}
		}

		turns++
		if turns > e.cfg.MaxTurns {
			return nil, &MaxTurnsError{MaxTurns: e.cfg.MaxTurns, items: e.produced}
		}

		e.logger.Debug("starting turn", "turn", turns, "agent", e.current.Name)

		_, endTurn := tracing.StartSpan(ctx, e.current.Name, tracing.KindAgent, map[string]any{"turn": turns})

		resp, err := e.invokeModel(ctx)
		if err != nil {
			endTurn(err)
			return nil, err
		}

		// Index of the first item of this turn, for the handoff triple.
		turnStart := len(e.generated)

		if resp.Text != "" {
			e.push(ctx, item.MessageItem{Agent: e.current.Name, Role: item.RoleAssistant, Text: resp.Text})
		}

		toolRuns, handoffRuns := e.classifyCalls(ctx, resp.ToolCalls)

		if len(toolRuns) > 0 {
			if err := e.executeTools(ctx, toolRuns); err != nil {
				endTurn(err)
				return nil, err
			}
		}

		if len(handoffRuns) > 0 {
			if err := e.applyHandoff(ctx, handoffRuns, turnStart, resp.Text); err != nil {
				endTurn(err)
				return nil, err
			}

			endTurn(nil)
			continue
		}

		if len(toolRuns) > 0 {
			// Tool outputs feed the next model call.
			endTurn(nil)
			continue
		}

		// Plain content, candidate final output.
		if e.current.OutputValidator != nil {
			if verr := e.current.OutputValidator(resp.Text); verr != nil {
				e.logger.Debug("output validation failed, retrying", "agent", e.current.Name, "error", verr)
				e.push(ctx, item.MessageItem{
					Role: item.RoleUser,
					Text: fmt.Sprintf("Your previous response was rejected: %v. Please produce a corrected response.", verr),
				})
				endTurn(nil)
				continue
			}
		}

		if err := e.fireAgentEnd(ctx, resp.Text); err != nil {
			endTurn(err)
			return nil, err
		}

		endTurn(nil)

		return &RunResult{
			Input:       e.input,
			NewItems:    e.produced,
			FinalOutput: resp.Text,
			LastAgent:   e.current,
			Usage:       *e.rc.Usage,
		}, nil
	}
}

// push appends an item to both the conversation and the run log and
// forwards it to the stream, if any.
func (e *execution) push(ctx context.Context, it item.Item) {
	e.generated = append(e.generated, it)
	e.produced = append(e.produced, it)

	if e.stream != nil {
		e.stream.emit(ctx, StreamEvent{Type: EventItem, Item: it})
	}
}

func (e *execution) invokeModel(ctx context.Context) (*model.Response, error) {
	instructions, err := e.current.Instructions.Resolve(e.rc, e.current)
	if err != nil {
		return nil, &ConfigError{Message: fmt.Sprintf("resolve instructions of agent %q", e.current.Name), Err: err, items: e.produced}
	}

	modelName := e.cfg.Model
	if modelName == "" {
		modelName = e.current.Model
	}

	m, err := e.cfg.Provider.GetModel(modelName)
	if err != nil {
		return nil, &ConfigError{Message: fmt.Sprintf("resolve model %q", modelName), Err: err, items: e.produced}
	}

	conversation := append(e.history.AsItems(), e.generated...)

	tools := make([]model.ToolDefinition, 0, len(e.current.Tools)+len(e.current.Handoffs))
	for _, t := range e.current.Tools {
		tools = append(tools, model.ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.ParamsJSONSchema(),
		})
	}

	for _, h := range e.current.Handoffs {
		tools = append(tools, model.ToolDefinition{
			Name:        h.ToolName,
			Description: h.Description,
			Parameters:  h.ParamsJSONSchema(),
		})
	}

	req := model.Request{
		Instructions: instructions,
		Items:        conversation,
		Tools:        tools,
		Stream:       e.stream != nil,
		Settings:     e.current.ModelSettings,
	}

	_, endSpan := tracing.StartSpan(ctx, m.Info().Name, tracing.KindGeneration, nil)

	attempt := 0

	for {
		attempt++

		resp, err := e.generateOnce(ctx, m, req)
		if err == nil {
			endSpan(nil)
			return resp, nil
		}

		if e.cfg.RetryPolicy != nil {
			if delay, retry := e.cfg.RetryPolicy(attempt, err); retry {
				e.logger.Warn("model call failed, retrying", "model", modelName, "attempt", attempt, "error", err)

				select {
				case <-time.After(delay):
					continue
				case <-ctx.Done():
					endSpan(ctx.Err())
					return nil, &CanceledError{Err: ctx.Err(), items: e.produced}
				}
			}
		}

		endSpan(err)

		return nil, &ModelError{Model: modelName, Attempts: attempt, Err: err, items: e.produced}
	}
}

// generateOnce performs a single model call, draining the response channel
// and forwarding deltas to the stream.
func (e *execution) generateOnce(ctx context.Context, m model.Model, req model.Request) (*model.Response, error) {
	respCh, errCh := m.Generate(ctx, req)

	var final *model.Response

	for resp := range respCh {
		if resp.Partial {
			if e.stream != nil && resp.Delta != "" {
				e.stream.emit(ctx, StreamEvent{Type: EventDelta, Delta: resp.Delta})
			}
			continue
		}

		r := resp
		final = &r
	}

	if err := <-errCh; err != nil {
		return nil, err
	}

	if final == nil {
		return nil, fmt.Errorf("model %q produced no terminal response", m.Info().Name)
	}

	e.rc.Usage.Add(runctx.Usage{
		Requests:     1,
		InputTokens:  usageField(final.Usage, func(u *model.Usage) int { return u.InputTokens }),
		OutputTokens: usageField(final.Usage, func(u *model.Usage) int { return u.OutputTokens }),
		TotalTokens:  usageField(final.Usage, func(u *model.Usage) int { return u.TotalTokens }),
	})

	return final, nil
}

func usageField(u *model.Usage, f func(u *model.Usage) int) int {
	if u == nil {
		return 0
	}
	return f(u)
}

type toolRun struct {
	tool tool.Tool
	call model.ToolCall
}

type handoffRun struct {
	handoff *agent.Handoff
	call    model.ToolCall
}

// classifyCalls splits the model's calls into executable tool runs and
// handoff requests, appending the call items in request order. Unknown
// names yield an error output item so the model can self-correct.
func (e *execution) classifyCalls(ctx context.Context, calls []model.ToolCall) ([]toolRun, []handoffRun) {
	var (
		toolRuns    []toolRun
		handoffRuns []handoffRun
	)

	for _, call := range calls {
		if h, ok := e.current.FindHandoff(call.Name); ok {
			e.push(ctx, item.HandoffCallItem{
				Agent:     e.current.Name,
				CallID:    call.ID,
				Name:      call.Name,
				Arguments: call.Arguments,
			})

			handoffRuns = append(handoffRuns, handoffRun{handoff: h, call: call})

			continue
		}

		e.push(ctx, item.ToolCallItem{
			Agent:     e.current.Name,
			CallID:    call.ID,
			Name:      call.Name,
			Arguments: call.Arguments,
		})

		t, ok := e.current.FindTool(call.Name)
		if !ok {
			e.logger.Warn("model requested unknown tool", "agent", e.current.Name, "tool", call.Name)
			e.push(ctx, item.ToolCallOutputItem{
				Agent:   e.current.Name,
				CallID:  call.ID,
				Name:    call.Name,
				Output:  fmt.Sprintf("error: unknown tool %q", call.Name),
				IsError: true,
			})

			continue
		}

		toolRuns = append(toolRuns, toolRun{tool: t, call: call})
	}

	return toolRuns, handoffRuns
}

// executeTools runs the requested tools concurrently and appends their
// outputs in request order. Hook notifications stay sequential and
// deterministic: all tool-start hooks fire before execution, all tool-end
// hooks after.
func (e *execution) executeTools(ctx context.Context, runs []toolRun) error {
	for _, tr := range runs {
		if err := e.fireToolStart(ctx, tr.tool); err != nil {
			return err
		}
	}

	type outcome struct {
		output string
		err    error
	}

	outcomes := make([]outcome, len(runs))

	g, gctx := errgroup.WithContext(ctx)

	for i, tr := range runs {
		g.Go(func() error {
			_, endSpan := tracing.StartSpan(gctx, tr.tool.Name(), tracing.KindTool, nil)

			toolCtx := tool.NewContext(e.rc, e.current.Name, tr.call.ID, e.logger)

			output, err := tr.tool.Invoke(toolCtx, tr.call.Arguments)
			outcomes[i] = outcome{output: output, err: err}

			endSpan(err)

			return nil
		})
	}

	// Goroutines above never return errors; failures land in outcomes.
	_ = g.Wait()

	for i, tr := range runs {
		out := outcomes[i]

		if out.err != nil {
			e.logger.Warn("tool failed", "agent", e.current.Name, "tool", tr.tool.Name(), "error", out.err)

			errOutput := fmt.Sprintf("error: %v", out.err)

			e.push(ctx, item.ToolCallOutputItem{
				Agent:   e.current.Name,
				CallID:  tr.call.ID,
				Name:    tr.call.Name,
				Output:  errOutput,
				IsError: true,
			})

			if fatal, ok := tr.tool.(tool.Fatal); ok && fatal.FailOnError() {
				return &ToolFatalError{ToolName: tr.tool.Name(), Err: out.err, items: e.produced}
			}

			// Hooks observe the same output text the model sees.
			if err := e.fireToolEnd(ctx, tr.tool, errOutput); err != nil {
				return err
			}

			continue
		}

		e.push(ctx, item.ToolCallOutputItem{
			Agent:  e.current.Name,
			CallID: tr.call.ID,
			Name:   tr.call.Name,
			Output: out.output,
		})

		if err := e.fireToolEnd(ctx, tr.tool, out.output); err != nil {
			return err
		}
	}

	return nil
}

// applyHandoff honors the first requested handoff. Additional requests in
// the same response are answered with an error output item.
func (e *execution) applyHandoff(ctx context.Context, runs []handoffRun, turnStart int, turnText string) error {
	for _, hr := range runs[1:] {
		e.push(ctx, item.ToolCallOutputItem{
			Agent:   e.current.Name,
			CallID:  hr.call.ID,
			Name:    hr.call.Name,
			Output:  "error: multiple handoffs requested, only the first was honored",
			IsError: true,
		})
	}

	hr := runs[0]
	source := e.current
	target := hr.handoff.Target

	_, endSpan := tracing.StartSpan(ctx, hr.handoff.ToolName, tracing.KindHandoff, map[string]any{
		"from": source.Name,
		"to":   target.Name,
	})

	e.push(ctx, item.HandoffOutputItem{
		Agent:       source.Name,
		CallID:      hr.call.ID,
		SourceAgent: source.Name,
		TargetAgent: target.Name,
	})

	data := agent.HandoffInputData{
		InputHistory:    e.history,
		PreHandoffItems: cloneItems(e.generated[:turnStart]),
		NewItems:        cloneItems(e.generated[turnStart:]),
	}

	filter := hr.handoff.InputFilter
	if filter == nil {
		filter = e.cfg.GlobalInputFilter
	}

	if filter != nil {
		filtered, err := filter(data)
		if err != nil {
			endSpan(err)
			return &ConfigError{Message: fmt.Sprintf("input filter of handoff %q", hr.handoff.ToolName), Err: err, items: e.produced}
		}

		data = filtered
	}

	if hr.handoff.OnHandoff != nil {
		if err := hr.handoff.OnHandoff(e.rc); err != nil {
			endSpan(err)
			return &HookError{Event: "on_handoff_callback", Err: err, items: e.produced}
		}
	}

	if err := e.fireAgentEnd(ctx, turnText); err != nil {
		endSpan(err)
		return err
	}

	// Switch before start/handoff hooks so they observe the new agent.
	e.history = data.InputHistory
	e.generated = append(cloneItems(data.PreHandoffItems), data.NewItems...)
	e.current = target

	if err := e.fireAgentStart(ctx); err != nil {
		endSpan(err)
		return err
	}

	if err := e.fireHandoff(ctx, source, target); err != nil {
		endSpan(err)
		return err
	}

	e.logger.Info("handoff", "from", source.Name, "to", target.Name)

	if e.stream != nil {
		e.stream.emit(ctx, StreamEvent{Type: EventAgentUpdated, Agent: target})
	}

	endSpan(nil)

	return nil
}

func cloneItems(items []item.Item) []item.Item {
	out := make([]item.Item, len(items))
	copy(out, items)
	return out
}

func (e *execution) fireAgentStart(ctx context.Context) error {
	if e.current.Hooks != nil {
		if err := e.current.Hooks.OnStart(ctx, e.rc, e.current); err != nil {
			return &HookError{Event: "on_start", Err: err, items: e.produced}
		}
	}

	if e.cfg.Hooks != nil {
		if err := e.cfg.Hooks.OnAgentStart(ctx, e.rc, e.current); err != nil {
			return &HookError{Event: "on_agent_start", Err: err, items: e.produced}
		}
	}

	return nil
}

func (e *execution) fireAgentEnd(ctx context.Context, output string) error {
	if e.current.Hooks != nil {
		if err := e.current.Hooks.OnEnd(ctx, e.rc, e.current, output); err != nil {
			return &HookError{Event: "on_end", Err: err, items: e.produced}
		}
	}

	if e.cfg.Hooks != nil {
		if err := e.cfg.Hooks.OnAgentEnd(ctx, e.rc, e.current, output); err != nil {
			return &HookError{Event: "on_agent_end", Err: err, items: e.produced}
		}
	}

	return nil
}

func (e *execution) fireHandoff(ctx context.Context, source, target *agent.Agent) error {
	if target.Hooks != nil {
		if err := target.Hooks.OnHandoff(ctx, e.rc, target, source); err != nil {
			return &HookError{Event: "on_handoff", Err: err, items: e.produced}
		}
	}

	if e.cfg.Hooks != nil {
		if err := e.cfg.Hooks.OnHandoff(ctx, e.rc, source, target); err != nil {
			return &HookError{Event: "on_handoff", Err: err, items: e.produced}
		}
	}

	return nil
}

func (e *execution) fireToolStart(ctx context.Context, t tool.Tool) error {
	if e.current.Hooks != nil {
		if err := e.current.Hooks.OnToolStart(ctx, e.rc, e.current, t); err != nil {
			return &HookError{Event: "on_tool_start", Err: err, items: e.produced}
		}
	}

	if e.cfg.Hooks != nil {
		if err := e.cfg.Hooks.OnToolStart(ctx, e.rc, e.current, t); err != nil {
			return &HookError{Event: "on_tool_start", Err: err, items: e.produced}
		}
	}

	return nil
}

func (e *execution) fireToolEnd(ctx context.Context, t tool.Tool, output string) error {
	if e.current.Hooks != nil {
		if err := e.current.Hooks.OnToolEnd(ctx, e.rc, e.current, t, output); err != nil {
			return &HookError{Event: "on_tool_end", Err: err, items: e.produced}
		}
	}

	if e.cfg.Hooks != nil {
		if err := e.cfg.Hooks.OnToolEnd(ctx, e.rc, e.current, t, output); err != nil {
			return &HookError{Event: "on_tool_end", Err: err, items: e.produced}
		}
	}

	return nil
}
