// Package anthropic implements model.Model on top of the Anthropic
// Messages API, including streaming and tool use.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/hupe1980/agentrun/item"
	"github.com/hupe1980/agentrun/model"
)

// Options configure the Anthropic model adapter.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
}

// Model wraps the Anthropic Messages API behind the generic model.Model
// interface.
type Model struct {
	client *anthropic.Client
	opts   Options
}

// NewModel creates an Anthropic model using the official client.
func NewModel(optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}

	client := anthropic.NewClient(clientOpts...)

	return &Model{client: &client, opts: opts}
}

// NewModelFromClient creates an Anthropic model from an existing client.
func NewModelFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Model{client: client, opts: opts}
}

func defaultOptions() Options {
	return Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}
}

// Provider resolves model names to Anthropic models sharing one client.
type Provider struct {
	client *anthropic.Client
}

// NewProvider creates a Provider with a client configured from the
// environment.
func NewProvider() *Provider {
	client := anthropic.NewClient()
	return NewProviderFromClient(&client)
}

// NewProviderFromClient creates a Provider around an existing client.
func NewProviderFromClient(client *anthropic.Client) *Provider {
	return &Provider{client: client}
}

// GetModel implements the model.Provider interface. An empty name yields
// the adapter default.
func (p *Provider) GetModel(name string) (model.Model, error) {
	return NewModelFromClient(p.client, func(o *Options) {
		if name != "" {
			o.Model = anthropic.Model(name)
		}
	}), nil
}

// Generate implements unified streaming / non-streaming generation.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		params := anthropic.MessageNewParams{
			Model:       m.opts.Model,
			Messages:    buildMessages(req.Items),
			MaxTokens:   m.opts.MaxTokens,
			Temperature: anthropic.Float(m.opts.Temperature),
		}

		if req.Settings.Temperature != nil {
			params.Temperature = anthropic.Float(*req.Settings.Temperature)
		}

		if req.Settings.MaxTokens > 0 {
			params.MaxTokens = req.Settings.MaxTokens
		}

		if req.Instructions != "" {
			params.System = []anthropic.TextBlockParam{{Text: req.Instructions}}
		}

		if len(req.Tools) > 0 {
			params.Tools = buildTools(req.Tools)
		}

		if req.Stream {
			m.handleStreaming(ctx, params, out, errCh)
			return
		}

		resp, err := m.client.Messages.New(ctx, params)
		if err != nil {
			errCh <- fmt.Errorf("anthropic api error: %w", err)
			return
		}

		out <- toResponse(resp)
	}()

	return out, errCh
}

// handleStreaming forwards text deltas and emits the accumulated message
// as the terminal response.
func (m *Model) handleStreaming(
	ctx context.Context,
	params anthropic.MessageNewParams,
	out chan<- model.Response,
	errCh chan<- error,
) {
	stream := m.client.Messages.NewStreaming(ctx, params)

	message := anthropic.Message{}

	for stream.Next() {
		event := stream.Current()

		if err := message.Accumulate(event); err != nil {
			errCh <- fmt.Errorf("anthropic accumulate error: %w", err)
			return
		}

		if ev, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent); ok {
			if delta, ok := ev.Delta.AsAny().(anthropic.TextDelta); ok && delta.Text != "" {
				out <- model.Response{
					Partial: true,
					Delta:   delta.Text,
				}
			}
		}
	}

	if err := stream.Err(); err != nil {
		errCh <- fmt.Errorf("anthropic streaming error: %w", err)
		return
	}

	out <- toResponse(&message)
}

func toResponse(resp *anthropic.Message) model.Response {
	var (
		text      string
		toolCalls []model.ToolCall
	)

	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			text += block.AsText().Text
		case "tool_use":
			toolBlock := block.AsToolUse()

			args := ""
			if toolBlock.Input != nil {
				if b, err := json.Marshal(toolBlock.Input); err == nil {
					args = string(b)
				}
			}

			toolCalls = append(toolCalls, model.ToolCall{
				ID:        toolBlock.ID,
				Name:      toolBlock.Name,
				Arguments: args,
			})
		}
	}

	finishReason := "stop"
	if resp.StopReason != "" {
		finishReason = string(resp.StopReason)
	}

	return model.Response{
		ID:           resp.ID,
		Text:         text,
		ToolCalls:    toolCalls,
		FinishReason: finishReason,
		Usage: &model.Usage{
			InputTokens:  int(resp.Usage.InputTokens),
			OutputTokens: int(resp.Usage.OutputTokens),
			TotalTokens:  int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
		},
	}
}

// buildMessages converts the item conversation into Anthropic messages.
// Tool calls stay in the assistant turn as tool_use blocks; their outputs
// follow in a user turn as tool_result blocks, as the API requires.
func buildMessages(items []item.Item) []anthropic.MessageParam {
	var messages []anthropic.MessageParam

	var (
		assistantBlocks []anthropic.ContentBlockParamUnion
		resultBlocks    []anthropic.ContentBlockParamUnion
	)

	flushAssistant := func() {
		if len(assistantBlocks) > 0 {
			messages = append(messages, anthropic.NewAssistantMessage(assistantBlocks...))
			assistantBlocks = nil
		}
	}

	flushResults := func() {
		if len(resultBlocks) > 0 {
			messages = append(messages, anthropic.NewUserMessage(resultBlocks...))
			resultBlocks = nil
		}
	}

	appendToolUse := func(id, name, arguments string) {
		flushResults()

		var input any
		if arguments != "" {
			if err := json.Unmarshal([]byte(arguments), &input); err != nil {
				input = arguments
			}
		}

		assistantBlocks = append(assistantBlocks, anthropic.NewToolUseBlock(id, input, name))
	}

	for _, it := range items {
		switch v := it.(type) {
		case item.MessageItem:
			flushAssistant()
			flushResults()

			switch v.Role {
			case item.RoleAssistant:
				assistantBlocks = append(assistantBlocks, anthropic.NewTextBlock(v.Text))
				flushAssistant()
			case item.RoleSystem:
				// System text is carried via params.System; inline system
				// items degrade to user turns.
				messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(v.Text)))
			default:
				messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(v.Text)))
			}
		case item.ToolCallItem:
			appendToolUse(v.CallID, v.Name, v.Arguments)
		case item.HandoffCallItem:
			appendToolUse(v.CallID, v.Name, v.Arguments)
		case item.ToolCallOutputItem:
			flushAssistant()
			resultBlocks = append(resultBlocks, anthropic.NewToolResultBlock(v.CallID, v.Output, v.IsError))
		case item.HandoffOutputItem:
			flushAssistant()

			payload, _ := json.Marshal(map[string]string{"assistant": v.TargetAgent})
			resultBlocks = append(resultBlocks, anthropic.NewToolResultBlock(v.CallID, string(payload), false))
		}
	}

	flushAssistant()
	flushResults()

	return messages
}

// buildTools converts normalized tool definitions to the Anthropic tool
// format.
func buildTools(tools []model.ToolDefinition) []anthropic.ToolUnionParam {
	anthropicTools := make([]anthropic.ToolUnionParam, len(tools))

	for i, tdef := range tools {
		inputSchema := anthropic.ToolInputSchemaParam{
			Type: constant.Object("object"),
		}

		if tdef.Parameters != nil {
			if properties, ok := tdef.Parameters["properties"]; ok {
				inputSchema.Properties = properties
			}

			switch required := tdef.Parameters["required"].(type) {
			case []string:
				inputSchema.Required = required
			case []any:
				for _, r := range required {
					if s, ok := r.(string); ok {
						inputSchema.Required = append(inputSchema.Required, s)
					}
				}
			}
		}

		anthropicTools[i] = anthropic.ToolUnionParamOfTool(inputSchema, tdef.Name)
	}

	return anthropicTools
}

// Info returns metadata describing this Anthropic model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:          string(m.opts.Model),
		Provider:      "anthropic",
		SupportsTools: true,
	}
}
